package tool

import "github.com/hupe1980/firegraph/core"

// Name is a typed catalog tool name.
type Name string

// Catalog tool names known to the default allow-list.
const (
	GetNaverNews          Name = "get_naver_news"
	Scrape                Name = "scrape"
	GetYonhapNews         Name = "get_yonhap_news"
	GetDisasterMessage    Name = "getDisasterMessage"
	GetForestFires        Name = "getForestFires"
	GetKMAWeatherWarning  Name = "getKMAWeatherWarning"
	SearchVideos          Name = "searchVideos"
	GetVideoDetails       Name = "getVideoDetails"
	GetTranscripts        Name = "getTranscripts"
	GetVideoComments      Name = "getVideoComments"
	GetFireRelatedThreads Name = "get_fire_related_threads_with_replies"
	GetLatestLocation     Name = "get_latest_location"
	SequentialThinking    Name = "sequentialthinking_tools"
)

// AllowList maps each role to the tools it may bind. Order is preserved when
// tools are handed to a worker.
type AllowList map[core.Role][]Name

// DefaultAllowList is the built-in role to tool table.
var DefaultAllowList = AllowList{
	core.RoleNews:        {GetNaverNews, Scrape, GetYonhapNews},
	core.RoleSocial:      {GetVideoDetails, SearchVideos, GetTranscripts, GetVideoComments, GetFireRelatedThreads},
	core.RoleDisaster:    {GetDisasterMessage, GetForestFires, GetKMAWeatherWarning},
	core.RoleLocator:     {GetLatestLocation},
	core.RoleSynthesizer: {SequentialThinking},
}

// Allows reports whether role may use the named tool.
func (a AllowList) Allows(role core.Role, name Name) bool {
	for _, n := range a[role] {
		if n == name {
			return true
		}
	}
	return false
}
