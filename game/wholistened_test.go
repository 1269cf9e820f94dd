package game

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func wlmVote(target string) json.RawMessage {
	return json.RawMessage(`{"votedSocketId":"` + target + `"}`)
}

func TestWLM_StartRoundBuildsPoolAndSchedulesTimer(t *testing.T) {
	t.Parallel()
	tg := newTestGame(t)
	code := tg.createRoom(t, "acct-a", "acct-b")
	tg.startGameWith(t, code, MinigameWhoListenedMost)

	tg.prompts.On("SharedTop", mock.Anything, []string{"acct-a", "acct-b"}).
		Return(sharedTopFixture(map[string]int{"acct-a": 10, "acct-b": 4}), nil).Once()

	game := tg.game(t, MinigameWhoListenedMost)
	require.NoError(t, game.StartRound(context.Background(), code, "host"))

	tg.inspect(t, code, func(room *Room) {
		require.NotNil(t, room.wlm)
		require.Len(t, room.wlm.pool, 3, "tracks and artists interleave")
		assert.Equal(t, "track", room.wlm.pool[0].Kind)
		assert.Equal(t, "artist", room.wlm.pool[1].Kind)
		assert.Equal(t, "track", room.wlm.pool[2].Kind)

		round, err := roundFor[*WLMRound](room, 0)
		require.NoError(t, err)
		assert.Equal(t, RoundCollecting, round.Status)
		assert.NotEmpty(t, round.Prompt.SubjectName)
		assert.False(t, room.timerExpiry(0).IsZero(), "round timer armed")
	})
	tg.prompts.AssertExpectations(t)
}

func TestWLM_StartRoundHostOnly(t *testing.T) {
	t.Parallel()
	tg := newTestGame(t)
	code := tg.createRoom(t, "acct-a", "acct-b")
	tg.startGameWith(t, code, MinigameWhoListenedMost)

	game := tg.game(t, MinigameWhoListenedMost)
	err := game.StartRound(context.Background(), code, "p1")
	assert.ErrorIs(t, err, ErrNotHost)
}

func TestWLM_TieAtMaxEveryVoterOfATiedPlayerWins(t *testing.T) {
	t.Parallel()
	tg := newTestGame(t)
	code := tg.createRoom(t, "acct-a", "acct-b")
	tg.startGameWith(t, code, MinigameWhoListenedMost)

	tg.prompts.On("SharedTop", mock.Anything, mock.Anything).
		Return(sharedTopFixture(map[string]int{"acct-a": 10, "acct-b": 10}), nil).Once()

	game := tg.game(t, MinigameWhoListenedMost)
	ctx := context.Background()
	require.NoError(t, game.StartRound(ctx, code, "host"))

	// both players vote for each other; the last answer triggers the
	// early reveal
	require.NoError(t, game.SubmitAnswer(ctx, code, "p1", wlmVote("p2")))
	require.NoError(t, game.SubmitAnswer(ctx, code, "p2", wlmVote("p1")))

	tg.inspect(t, code, func(room *Room) {
		round, err := roundFor[*WLMRound](room, 0)
		require.NoError(t, err)
		assert.Equal(t, RoundRevealed, round.Status)
		require.NotNil(t, round.Results)
		assert.Equal(t, 10, round.Results.MaxListens)
		assert.ElementsMatch(t, []string{"p1", "p2"}, round.Results.Correct)
		assert.ElementsMatch(t, []string{"p1", "p2"}, round.Results.Winners)
		assert.True(t, room.timerExpiry(0).IsZero(), "reveal cancels the timer")
	})

	for _, socketID := range []string{"p1", "p2"} {
		entry := tg.reg.Scoreboard(code, socketID)
		require.NotNil(t, entry, "voter %s must be awarded", socketID)
		assert.Positive(t, entry.Points)
		assert.Equal(t, 1, entry.CorrectAnswers)
	}
}

func TestWLM_VoterForNonTopPlayerGetsNothing(t *testing.T) {
	t.Parallel()
	tg := newTestGame(t)
	code := tg.createRoom(t, "acct-a", "acct-b", "acct-c")
	tg.startGameWith(t, code, MinigameWhoListenedMost)

	tg.prompts.On("SharedTop", mock.Anything, mock.Anything).
		Return(sharedTopFixture(map[string]int{"acct-a": 10, "acct-b": 10, "acct-c": 5}), nil).Once()

	game := tg.game(t, MinigameWhoListenedMost)
	ctx := context.Background()
	require.NoError(t, game.StartRound(ctx, code, "host"))

	require.NoError(t, game.SubmitAnswer(ctx, code, "p1", wlmVote("p3")))
	require.NoError(t, game.SubmitAnswer(ctx, code, "p2", wlmVote("p1")))
	require.NoError(t, game.SubmitAnswer(ctx, code, "p3", wlmVote("p2")))

	tg.inspect(t, code, func(room *Room) {
		round, err := roundFor[*WLMRound](room, 0)
		require.NoError(t, err)
		require.NotNil(t, round.Results)
		assert.ElementsMatch(t, []string{"p1", "p2"}, round.Results.Correct)
		assert.ElementsMatch(t, []string{"p2", "p3"}, round.Results.Winners)
	})

	assert.Nil(t, tg.reg.Scoreboard(code, "p1"), "voting for a non-top listener earns nothing")
	assert.NotNil(t, tg.reg.Scoreboard(code, "p2"))
	assert.NotNil(t, tg.reg.Scoreboard(code, "p3"))
}

func TestWLM_RevealIsIdempotent(t *testing.T) {
	t.Parallel()
	tg := newTestGame(t)
	code := tg.createRoom(t, "acct-a", "acct-b")
	tg.startGameWith(t, code, MinigameWhoListenedMost)

	tg.prompts.On("SharedTop", mock.Anything, mock.Anything).
		Return(sharedTopFixture(map[string]int{"acct-a": 10, "acct-b": 2}), nil).Once()

	game := tg.game(t, MinigameWhoListenedMost)
	ctx := context.Background()
	require.NoError(t, game.StartRound(ctx, code, "host"))
	require.NoError(t, game.SubmitAnswer(ctx, code, "p2", wlmVote("p1")))

	require.NoError(t, game.Reveal(ctx, code, "host"))

	var firstResults []byte
	tg.inspect(t, code, func(room *Room) {
		round, err := roundFor[*WLMRound](room, 0)
		require.NoError(t, err)
		require.Equal(t, RoundRevealed, round.Status)
		firstResults, err = json.Marshal(round.Results)
		require.NoError(t, err)
	})
	pointsAfterFirst := tg.reg.Scoreboard(code, "p2").Points
	broadcastsAfterFirst := tg.broadcasts.Load()

	// second reveal rebroadcasts but never recomputes or re-awards
	require.NoError(t, game.Reveal(ctx, code, "host"))

	tg.inspect(t, code, func(room *Room) {
		round, err := roundFor[*WLMRound](room, 0)
		require.NoError(t, err)
		secondResults, err := json.Marshal(round.Results)
		require.NoError(t, err)
		assert.Equal(t, string(firstResults), string(secondResults))
	})
	assert.Equal(t, pointsAfterFirst, tg.reg.Scoreboard(code, "p2").Points)
	assert.Equal(t, 1, tg.reg.Scoreboard(code, "p2").TotalAwards)
	assert.Greater(t, tg.broadcasts.Load(), broadcastsAfterFirst)
}

func TestWLM_SubmitAfterRevealRejected(t *testing.T) {
	t.Parallel()
	tg := newTestGame(t)
	code := tg.createRoom(t, "acct-a", "acct-b")
	tg.startGameWith(t, code, MinigameWhoListenedMost)

	tg.prompts.On("SharedTop", mock.Anything, mock.Anything).
		Return(sharedTopFixture(map[string]int{"acct-a": 10, "acct-b": 2}), nil).Once()

	game := tg.game(t, MinigameWhoListenedMost)
	ctx := context.Background()
	require.NoError(t, game.StartRound(ctx, code, "host"))
	require.NoError(t, game.Reveal(ctx, code, "host"))

	err := game.SubmitAnswer(ctx, code, "p1", wlmVote("p2"))
	assert.ErrorIs(t, err, ErrRoundRevealed)
}

func TestWLM_SubmitValidation(t *testing.T) {
	t.Parallel()
	tg := newTestGame(t)
	code := tg.createRoom(t, "acct-a", "acct-b")
	tg.startGameWith(t, code, MinigameWhoListenedMost)

	game := tg.game(t, MinigameWhoListenedMost)
	ctx := context.Background()

	t.Run("before any round exists", func(t *testing.T) {
		err := game.SubmitAnswer(ctx, code, "p1", wlmVote("p2"))
		assert.ErrorIs(t, err, ErrRoundNotReady)
	})

	tg.prompts.On("SharedTop", mock.Anything, mock.Anything).
		Return(sharedTopFixture(map[string]int{"acct-a": 3, "acct-b": 1}), nil).Once()
	require.NoError(t, game.StartRound(ctx, code, "host"))

	t.Run("malformed payload", func(t *testing.T) {
		err := game.SubmitAnswer(ctx, code, "p1", json.RawMessage(`{`))
		assert.ErrorIs(t, err, ErrBadRequest)
	})
	t.Run("vote for unknown socket", func(t *testing.T) {
		err := game.SubmitAnswer(ctx, code, "p1", wlmVote("ghost"))
		assert.ErrorIs(t, err, ErrBadRequest)
	})
	t.Run("host is a spectator", func(t *testing.T) {
		err := game.SubmitAnswer(ctx, code, "host", wlmVote("p1"))
		assert.ErrorIs(t, err, ErrNotInRoom)
	})
	t.Run("unknown room", func(t *testing.T) {
		err := game.SubmitAnswer(ctx, "ZZZZ", "p1", wlmVote("p2"))
		assert.ErrorIs(t, err, ErrRoomNotFound)
	})
}

func TestWLM_StaleStateWhenRoomVanishesDuringFetch(t *testing.T) {
	t.Parallel()
	tg := newTestGame(t)
	code := tg.createRoom(t, "acct-a", "acct-b")
	tg.startGameWith(t, code, MinigameWhoListenedMost)

	// the room empties out while the prompt fetch is in flight
	tg.prompts.On("SharedTop", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			_, err := tg.reg.RemovePlayer(code, "p1")
			require.NoError(t, err)
			deleted, err := tg.reg.RemovePlayer(code, "p2")
			require.NoError(t, err)
			require.True(t, deleted)
		}).
		Return(sharedTopFixture(map[string]int{"acct-a": 10, "acct-b": 4}), nil).Once()

	game := tg.game(t, MinigameWhoListenedMost)
	err := game.StartRound(context.Background(), code, "host")
	assert.ErrorIs(t, err, ErrStaleState)
}

func TestWLM_SelectPromptFavorsUnseenWinners(t *testing.T) {
	t.Parallel()
	tg := newTestGame(t)
	code := tg.createRoom(t, "acct-a", "acct-b")

	promptA := wlmPrompt{Kind: "track", SubjectID: "t1", SubjectName: "one", ListensBy: map[string]int{"acct-a": 9, "acct-b": 1}}
	promptB := wlmPrompt{Kind: "track", SubjectID: "t2", SubjectName: "two", ListensBy: map[string]int{"acct-a": 1, "acct-b": 9}}

	tg.inspect(t, code, func(room *Room) {
		state := &wlmRoomState{
			pool:        []wlmPrompt{promptA, promptB},
			used:        make(map[int]bool),
			seenWinners: map[string]bool{"acct-a": true},
		}

		picked, ok := state.selectPrompt(room)
		require.True(t, ok)
		assert.Equal(t, "t2", picked.SubjectID, "skips the prompt whose top listener already won")

		// only winner-stale prompts remain: the seen set resets
		picked, ok = state.selectPrompt(room)
		require.True(t, ok)
		assert.Equal(t, "t1", picked.SubjectID)
		assert.Empty(t, state.seenWinners)

		// pool exhausted: rotation recycles instead of running dry
		picked, ok = state.selectPrompt(room)
		require.True(t, ok)
		assert.Equal(t, "t1", picked.SubjectID)
	})
}
