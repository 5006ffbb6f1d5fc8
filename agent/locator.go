package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/hupe1980/firegraph/core"
	"github.com/hupe1980/firegraph/logging"
)

// ErrNoLocation is returned when no location tool is bound or it returned nothing usable.
var ErrNoLocation = errors.New("location unavailable")

// LocatorOptions configures a Locator.
type LocatorOptions struct {
	Logger logging.Logger
}

// Locator resolves the user's current address through the tools allowed for
// core.RoleLocator.
type Locator struct {
	tools  ToolSource
	logger logging.Logger
}

// NewLocator creates a Locator backed by tools.
func NewLocator(tools ToolSource, optFns ...func(o *LocatorOptions)) *Locator {
	opts := LocatorOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Locator{tools: tools, logger: logging.ForComponent(opts.Logger, "locator")}
}

// Locate returns the most recent location of the user.
func (l *Locator) Locate(ctx context.Context, _ *core.State) (core.Location, error) {
	tools, err := l.tools.ToolsFor(ctx, core.RoleLocator)
	if err != nil {
		return core.Location{}, fmt.Errorf("tools for locator: %w", err)
	}

	if len(tools) == 0 {
		return core.Location{}, fmt.Errorf("%w: no locator tool bound", ErrNoLocation)
	}

	out, err := tools[0].Call(ctx, map[string]any{})
	if err != nil {
		return core.Location{}, fmt.Errorf("call %s: %w", tools[0].Name(), err)
	}

	loc := ParseLocation(stringify(out))
	if loc.IsZero() {
		return core.Location{}, fmt.Errorf("%w: empty tool result", ErrNoLocation)
	}

	l.logger.Debug("locator.resolved", "address", loc.Address)

	return loc, nil
}

// ParseLocation extracts a location from a tool result. JSON objects with
// address/latitude/longitude (or lat/lng/lon) fields are understood; any other
// non-empty text is taken as the address.
func ParseLocation(raw string) core.Location {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return core.Location{}
	}

	if !gjson.Valid(raw) || !gjson.Parse(raw).IsObject() {
		return core.Location{Address: raw}
	}

	res := gjson.Parse(raw)

	loc := core.Location{
		Address:   firstString(res, "address", "location.address", "formatted_address"),
		Latitude:  firstFloat(res, "latitude", "lat", "location.latitude", "location.lat"),
		Longitude: firstFloat(res, "longitude", "lng", "lon", "location.longitude", "location.lng"),
	}

	return loc
}

func firstString(res gjson.Result, paths ...string) string {
	for _, p := range paths {
		if v := res.Get(p); v.Exists() && v.String() != "" {
			return strings.TrimSpace(v.String())
		}
	}
	return ""
}

func firstFloat(res gjson.Result, paths ...string) float64 {
	for _, p := range paths {
		if v := res.Get(p); v.Exists() {
			return v.Float()
		}
	}
	return 0
}
