package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/firegraph/core"
	"github.com/hupe1980/firegraph/tool"
	"github.com/hupe1980/firegraph/tool/mcp"
)

// ServersFile is the YAML document naming the MCP servers and, optionally,
// overriding the per-role tool allow-list.
//
//	servers:
//	  - name: disaster
//	    command: python
//	    args: [mcp_servers/public_disaster_mcp_server.py]
//	allow_list:
//	  disaster: [getDisasterMessage, getForestFires]
type ServersFile struct {
	Servers   []mcp.ServerConfig     `yaml:"servers"`
	AllowList map[string][]tool.Name `yaml:"allow_list,omitempty"`
}

// LoadServers reads and validates the servers file at path. Unknown keys are
// rejected.
func LoadServers(path string) (*ServersFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, core.NewFailure(core.FailureConfiguration, "load servers", err)
	}

	file, err := DecodeServers(data)
	if err != nil {
		return nil, core.NewFailure(core.FailureConfiguration, "load servers", fmt.Errorf("%s: %w", path, err))
	}

	return file, nil
}

// DecodeServers parses a servers document.
func DecodeServers(data []byte) (*ServersFile, error) {
	var file ServersFile

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("invalid servers YAML: %w", err)
	}

	if len(file.Servers) == 0 {
		return nil, errors.New("no servers configured")
	}

	seen := make(map[string]bool, len(file.Servers))
	for _, s := range file.Servers {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("duplicate server name %q", s.Name)
		}
		seen[s.Name] = true
	}

	for role := range file.AllowList {
		if !knownRole(core.Role(role)) {
			return nil, fmt.Errorf("allow_list: unknown role %q", role)
		}
	}

	return &file, nil
}

// Allow returns the effective allow-list: the defaults with the file's
// per-role overrides applied.
func (f *ServersFile) Allow() tool.AllowList {
	out := make(tool.AllowList, len(tool.DefaultAllowList))
	for role, names := range tool.DefaultAllowList {
		out[role] = append([]tool.Name(nil), names...)
	}

	for role, names := range f.AllowList {
		out[core.Role(role)] = append([]tool.Name(nil), names...)
	}

	return out
}

func knownRole(r core.Role) bool {
	for _, known := range []core.Role{core.RoleNews, core.RoleSocial, core.RoleDisaster, core.RoleLocator, core.RoleSynthesizer} {
		if r == known {
			return true
		}
	}
	return false
}
