package game

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"auxparty/music"
)

// --- SummaryProvider ---

type MockSummaryProvider struct {
	mock.Mock
}

func (m *MockSummaryProvider) SummaryFor(ctx context.Context, accountID string) (*music.Summary, error) {
	args := m.Called(ctx, accountID)
	summary, _ := args.Get(0).(*music.Summary)
	return summary, args.Error(1)
}

// --- PromptProvider ---

type MockPromptProvider struct {
	mock.Mock
}

func (m *MockPromptProvider) SharedTop(ctx context.Context, accountIDs []string) (*music.SharedTop, error) {
	args := m.Called(ctx, accountIDs)
	top, _ := args.Get(0).(*music.SharedTop)
	return top, args.Error(1)
}

// --- NetworkSession ---

type MockNetworkSession struct {
	mock.Mock
}

func (m *MockNetworkSession) Close(reason string) {
	m.Called(reason)
}

func (m *MockNetworkSession) Write(data []byte) error {
	args := m.Called(data)
	return args.Error(0)
}

func (m *MockNetworkSession) Read() ([]byte, error) {
	args := m.Called()
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockNetworkSession) Ping() error {
	args := m.Called()
	return args.Error(0)
}

// --- test fixture ---

type testGame struct {
	reg        *Registry
	summaries  *MockSummaryProvider
	prompts    *MockPromptProvider
	minigames  *MinigameSet
	broadcasts atomic.Int64
}

func newTestGame(t *testing.T) *testGame {
	t.Helper()
	tg := &testGame{
		reg:       NewRegistry(zerolog.Nop()),
		summaries: &MockSummaryProvider{},
		prompts:   &MockPromptProvider{},
	}
	broadcast := func(room *Room) { tg.broadcasts.Add(1) }
	deps := NewDeps(tg.reg, broadcast, tg.summaries, tg.prompts, zerolog.Nop())
	tg.minigames = RegisterMinigames(deps, zerolog.Nop(), []func(Deps) Minigame{
		NewWhoListenedMost,
		NewHeardle,
		NewGuessTheSummary,
	})
	tg.reg.SetRoundFactories(tg.minigames.RoundFactories())
	return tg
}

func (tg *testGame) game(t *testing.T, id MinigameID) Minigame {
	t.Helper()
	m, ok := tg.minigames.Get(id)
	require.True(t, ok, "minigame %s not registered", id)
	return m
}

// createRoom sets up a room with host "host" and one player per given
// account id, using socket ids p1, p2, ...
func (tg *testGame) createRoom(t *testing.T, accounts ...string) string {
	t.Helper()
	code, err := tg.reg.CreateRoom("host", Profile{DisplayName: "Host"})
	require.NoError(t, err)
	for i, account := range accounts {
		socketID := socketForIndex(i)
		err := tg.reg.JoinRoom(code, socketID, Profile{
			DisplayName: "Player " + socketID,
			AccountID:   account,
		})
		require.NoError(t, err)
	}
	return code
}

func socketForIndex(i int) string {
	return "p" + string(rune('1'+i))
}

// startGameWith locks a plan that puts the given minigame at stage 0.
func (tg *testGame) startGameWith(t *testing.T, code string, first MinigameID) {
	t.Helper()
	plan := []StageConfig{
		{MinigameID: first},
		{MinigameID: MinigameWhoListenedMost},
		{MinigameID: MinigameGuessTheSummary},
	}
	if first == MinigameWhoListenedMost {
		plan[1] = StageConfig{MinigameID: MinigameHeardle}
	}
	require.NoError(t, tg.reg.UpdateStagePlan(code, "host", plan))
	require.NoError(t, tg.reg.StartGame(code, "host"))
}

// inspect runs fn against the live room under the registry lock.
func (tg *testGame) inspect(t *testing.T, code string, fn func(*Room)) {
	t.Helper()
	err := tg.reg.WithRoom(code, func(room *Room) error {
		fn(room)
		return nil
	})
	require.NoError(t, err)
}

func sharedTopFixture(listens map[string]int) *music.SharedTop {
	return &music.SharedTop{
		Tracks: []music.TrackStats{
			{
				Track: music.Track{
					ID:         "track-1",
					Name:       "Midnight City",
					ArtistName: "M83",
					AlbumName:  "Hurry Up, We're Dreaming",
				},
				ListensBy: listens,
			},
			{
				Track: music.Track{
					ID:         "track-2",
					Name:       "Dreams",
					ArtistName: "Fleetwood Mac",
					AlbumName:  "Rumours",
				},
				ListensBy: listens,
			},
		},
		Artists: []music.ArtistStats{
			{
				Artist:    music.Artist{ID: "artist-1", Name: "M83"},
				ListensBy: listens,
			},
		},
	}
}
