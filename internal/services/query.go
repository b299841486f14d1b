package services

import (
	"strconv"
	"strings"
)

// DefaultSearchYear is used when a search has no filters at all.
const DefaultSearchYear = 2021

// SearchQuery holds the field filters of a track search.
type SearchQuery struct {
	Artist string `json:"artist" form:"artist"`
	Track  string `json:"track" form:"track"`
	Album  string `json:"album" form:"album"`
	Genre  string `json:"genre" form:"genre"`
	Year   string `json:"year" form:"year"`

	// DefaultYear replaces [DefaultSearchYear] for empty queries when set.
	DefaultYear int `json:"-"`
}

// Empty reports whether no filter is set.
func (q SearchQuery) Empty() bool {
	return strings.TrimSpace(q.Artist+q.Track+q.Album+q.Genre+q.Year) == ""
}

// String renders the filters as "artist:X track:Y album:Z genre:G year:N", omitting empty ones.
// An empty query searches by the default year.
func (q SearchQuery) String() string {
	if q.Empty() {
		year := q.DefaultYear
		if year <= 0 {
			year = DefaultSearchYear
		}
		return "year:" + strconv.Itoa(year)
	}

	var parts []string
	for _, f := range []struct{ key, value string }{
		{"artist", q.Artist},
		{"track", q.Track},
		{"album", q.Album},
		{"genre", q.Genre},
		{"year", q.Year},
	} {
		if v := strings.TrimSpace(f.value); v != "" {
			parts = append(parts, f.key+":"+v)
		}
	}
	return strings.Join(parts, " ")
}
