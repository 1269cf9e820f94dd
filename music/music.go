// Package music defines the contract between the game core and the
// listening-history pipeline. The core never talks to the pipeline
// directly; it only sees these two interfaces.
package music

import "context"

type Track struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	ArtistName string `json:"artistName"`
	AlbumName  string `json:"albumName"`
	PreviewURL string `json:"previewUrl,omitempty"`
}

type Artist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TrackStats carries a shared top track together with how often each
// account listened to it.
type TrackStats struct {
	Track
	ListensBy map[string]int `json:"listensBy"`
}

type ArtistStats struct {
	Artist
	ListensBy map[string]int `json:"listensBy"`
}

// SharedTop is the candidate prompt data for a set of accounts. Both
// slices are ordered by cross-user popularity, most popular first.
type SharedTop struct {
	Tracks  []TrackStats
	Artists []ArtistStats
}

// Summary is a ranked listening summary for one account over one period.
type Summary struct {
	Period       string   `json:"period"`
	TopArtists   []Artist `json:"topArtists"`
	TopTracks    []Track  `json:"topTracks"`
	TopGenre     string   `json:"topGenre"`
	TotalMinutes int      `json:"totalMinutes"`
}

type SummaryProvider interface {
	SummaryFor(ctx context.Context, accountID string) (*Summary, error)
}

type PromptProvider interface {
	SharedTop(ctx context.Context, accountIDs []string) (*SharedTop, error)
}
