package models

// Artist is a read-only projection of a Spotify artist payload.
//
// When an Artist appears nested inside a Track, the search payload omits
// popularity and genres, so those fields are zero-valued there.
type Artist struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Popularity int      `json:"popularity,omitempty"`
	Genres     []string `json:"genres,omitempty"`
	Href       string   `json:"href"`
	URI        string   `json:"uri"`
}

// Track is a read-only projection of a Spotify track payload.
type Track struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Popularity int      `json:"popularity,omitempty"`
	DurationMS int      `json:"duration_ms"`
	Explicit   bool     `json:"explicit"`
	Artists    []Artist `json:"artists"`
	AlbumName  string   `json:"album_name"`
	Href       string   `json:"href"`
	URI        string   `json:"uri"`
}
