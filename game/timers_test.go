package game

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scheduleForTest(t *testing.T, reg *Registry, code string, stage int, d time.Duration, onExpire func(*Room)) time.Time {
	t.Helper()
	var expiresAt time.Time
	err := reg.Run(func() error {
		room, ok := reg.getRoom(code)
		require.True(t, ok)
		expiresAt = reg.scheduleRoundTimer(room, stage, d, onExpire)
		return nil
	})
	require.NoError(t, err)
	return expiresAt
}

func TestTimers_ReplaceSemantics(t *testing.T) {
	t.Parallel()
	reg := NewRegistry(zerolog.Nop())
	code, _ := reg.CreateRoom("host", Profile{})

	var firstFired, secondFired atomic.Int64
	before := time.Now()
	scheduleForTest(t, reg, code, 0, 20*time.Millisecond, func(*Room) { firstFired.Add(1) })
	expiresAt := scheduleForTest(t, reg, code, 0, 30*time.Millisecond, func(*Room) { secondFired.Add(1) })

	assert.True(t, expiresAt.After(before))

	time.Sleep(120 * time.Millisecond)
	assert.Equal(t, int64(0), firstFired.Load(), "superseded timer must never fire")
	assert.Equal(t, int64(1), secondFired.Load())
}

func TestTimers_ClearIsSafeAndFinal(t *testing.T) {
	t.Parallel()
	reg := NewRegistry(zerolog.Nop())
	code, _ := reg.CreateRoom("host", Profile{})

	var fired atomic.Int64
	scheduleForTest(t, reg, code, 1, 20*time.Millisecond, func(*Room) { fired.Add(1) })

	err := reg.Run(func() error {
		room, _ := reg.getRoom(code)
		reg.clearRoundTimer(room, 1)
		// clearing an empty slot is a no-op
		reg.clearRoundTimer(room, 1)
		reg.clearRoundTimer(room, 7)
		return nil
	})
	require.NoError(t, err)

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, int64(0), fired.Load())
}

func TestTimers_SlotClearedBeforeCallback(t *testing.T) {
	t.Parallel()
	reg := NewRegistry(zerolog.Nop())
	code, _ := reg.CreateRoom("host", Profile{})

	// the callback re-arms the same slot, which only works if the
	// firing timer removed itself first
	var chained atomic.Int64
	scheduleForTest(t, reg, code, 0, 15*time.Millisecond, func(room *Room) {
		assert.Nil(t, room.timers[0], "slot must be empty inside the callback")
		reg.scheduleRoundTimer(room, 0, 15*time.Millisecond, func(*Room) { chained.Add(1) })
	})

	time.Sleep(120 * time.Millisecond)
	assert.Equal(t, int64(1), chained.Load())
}

func TestTimers_RoomDeletionCancels(t *testing.T) {
	t.Parallel()
	reg := NewRegistry(zerolog.Nop())
	code, _ := reg.CreateRoom("host", Profile{})
	require.NoError(t, reg.JoinRoom(code, "p1", Profile{}))

	var fired atomic.Int64
	scheduleForTest(t, reg, code, 0, 25*time.Millisecond, func(*Room) { fired.Add(1) })

	deleted, err := reg.RemovePlayer(code, "p1")
	require.NoError(t, err)
	require.True(t, deleted)

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, int64(0), fired.Load(), "no stale reveal may fire against a discarded room")
}
