package music

import "context"

// StaticProvider serves canned listening data so the server can run
// end to end without the ingestion pipeline. Every account sees the
// same catalog with listen counts derived from the account id, which
// is enough to exercise prompts, ties and summaries locally.
type StaticProvider struct{}

var staticTracks = []Track{
	{ID: "t-midnight", Name: "Midnight City", ArtistName: "M83", AlbumName: "Hurry Up, We're Dreaming"},
	{ID: "t-dreams", Name: "Dreams", ArtistName: "Fleetwood Mac", AlbumName: "Rumours"},
	{ID: "t-nikes", Name: "Nikes", ArtistName: "Frank Ocean", AlbumName: "Blonde"},
	{ID: "t-doses", Name: "Doses & Mimosas", ArtistName: "Cherub", AlbumName: "Year of the Caprese"},
	{ID: "t-ribs", Name: "Ribs", ArtistName: "Lorde", AlbumName: "Pure Heroine"},
	{ID: "t-weird", Name: "Weird Fishes", ArtistName: "Radiohead", AlbumName: "In Rainbows"},
	{ID: "t-redbone", Name: "Redbone", ArtistName: "Childish Gambino", AlbumName: "Awaken, My Love!"},
	{ID: "t-vienna", Name: "Vienna", ArtistName: "Billy Joel", AlbumName: "The Stranger"},
	{ID: "t-heat", Name: "Heat Waves", ArtistName: "Glass Animals", AlbumName: "Dreamland"},
	{ID: "t-linger", Name: "Linger", ArtistName: "The Cranberries", AlbumName: "Everybody Else Is Doing It"},
	{ID: "t-plants", Name: "Plantasia", ArtistName: "Mort Garson", AlbumName: "Mother Earth's Plantasia"},
	{ID: "t-myron", Name: "Myron", ArtistName: "Lil Uzi Vert", AlbumName: "Eternal Atake"},
}

var staticArtists = []Artist{
	{ID: "a-m83", Name: "M83"},
	{ID: "a-fleetwood", Name: "Fleetwood Mac"},
	{ID: "a-frank", Name: "Frank Ocean"},
	{ID: "a-lorde", Name: "Lorde"},
	{ID: "a-radiohead", Name: "Radiohead"},
	{ID: "a-gambino", Name: "Childish Gambino"},
}

// seed spreads listen counts across accounts deterministically.
func seed(accountID string, i int) int {
	h := 0
	for _, c := range accountID {
		h = h*31 + int(c)
	}
	if h < 0 {
		h = -h
	}
	return (h+i*7)%90 + 10
}

func (StaticProvider) SharedTop(ctx context.Context, accountIDs []string) (*SharedTop, error) {
	top := &SharedTop{}
	for i, t := range staticTracks {
		stats := TrackStats{Track: t, ListensBy: map[string]int{}}
		for _, id := range accountIDs {
			stats.ListensBy[id] = seed(id, i)
		}
		top.Tracks = append(top.Tracks, stats)
	}
	for i, a := range staticArtists {
		stats := ArtistStats{Artist: a, ListensBy: map[string]int{}}
		for _, id := range accountIDs {
			stats.ListensBy[id] = seed(id, i+len(staticTracks))
		}
		top.Artists = append(top.Artists, stats)
	}
	return top, nil
}

func (StaticProvider) SummaryFor(ctx context.Context, accountID string) (*Summary, error) {
	if accountID == "" {
		return nil, nil
	}
	n := seed(accountID, 3)
	return &Summary{
		Period:       "last-4-weeks",
		TopArtists:   staticArtists[:3],
		TopTracks:    staticTracks[:5],
		TopGenre:     []string{"indie", "pop", "electronic", "rock"}[n%4],
		TotalMinutes: 900 + n*13,
	}, nil
}
