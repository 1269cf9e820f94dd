package game

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshot_PlayersViewDerivesHostFlag(t *testing.T) {
	t.Parallel()
	tg := newTestGame(t)
	code := tg.createRoom(t, "acct-a", "")

	tg.inspect(t, code, func(room *Room) {
		want := []PlayerView{
			{SocketID: "p1", Name: "Player p1", IsHost: false, HasAccount: true},
			{SocketID: "p2", Name: "Player p2", IsHost: false, HasAccount: false},
		}
		if diff := cmp.Diff(want, playersView(room)); diff != "" {
			t.Errorf("players view mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestSnapshot_HostMigrationReflectedInView(t *testing.T) {
	t.Parallel()
	tg := newTestGame(t)
	code := tg.createRoom(t, "acct-a", "acct-b")

	_, err := tg.reg.RemovePlayer(code, "host")
	require.NoError(t, err)

	tg.inspect(t, code, func(room *Room) {
		want := []PlayerView{
			{SocketID: "p1", Name: "Player p1", IsHost: true, HasAccount: true},
			{SocketID: "p2", Name: "Player p2", IsHost: false, HasAccount: true},
		}
		if diff := cmp.Diff(want, playersView(room)); diff != "" {
			t.Errorf("players view mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestSnapshot_GameStatePayloadShape(t *testing.T) {
	t.Parallel()
	tg := newTestGame(t)
	code := tg.createRoom(t, "acct-a", "acct-b")

	tg.inspect(t, code, func(room *Room) {
		payload := GameStatePayload(room)
		assert.Equal(t, PhaseLobby, payload["phase"])
		assert.Nil(t, payload["currentStageIndex"], "no stage before the plan is locked")
		assert.Nil(t, payload["currentRoundState"])
	})

	tg.startGameWith(t, code, MinigameWhoListenedMost)

	tg.inspect(t, code, func(room *Room) {
		payload := GameStatePayload(room)
		assert.Equal(t, PhaseInGame, payload["phase"])
		assert.Equal(t, 0, payload["currentStageIndex"])

		roundView, ok := payload["currentRoundState"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, true, roundView["placeholder"])
		assert.Equal(t, RoundPending, roundView["status"])
	})
}
