package game

import "time"

// scheduleRoundTimer arms the countdown for one (room, stage) slot,
// cancelling whatever was armed there before, and returns the absolute
// expiry so clients can render a countdown off the server's clock.
// Must be called with the registry lock held.
//
// When the timer fires, the callback re-fetches the room by code and
// verifies its slot still holds this exact handle before doing
// anything: a superseded or cleared timer that already left time.AfterFunc
// runs into the identity check and becomes a no-op. The slot is cleared
// before onExpire runs so the callback can immediately arm a
// replacement.
func (g *Registry) scheduleRoundTimer(room *Room, stage int, d time.Duration, onExpire func(*Room)) time.Time {
	g.clearRoundTimer(room, stage)

	code := room.Code
	handle := &roundTimer{expiresAt: time.Now().Add(d)}
	handle.timer = time.AfterFunc(d, func() {
		g.mu.Lock()
		defer g.mu.Unlock()

		current, ok := g.rooms[code]
		if !ok || current.timers[stage] != handle {
			return
		}
		delete(current.timers, stage)
		onExpire(current)
	})
	room.timers[stage] = handle
	return handle.expiresAt
}

// clearRoundTimer cancels and removes the slot. Safe to call when no
// timer exists. Must be called with the registry lock held.
func (g *Registry) clearRoundTimer(room *Room, stage int) {
	handle, ok := room.timers[stage]
	if !ok {
		return
	}
	handle.timer.Stop()
	delete(room.timers, stage)
}

// timerExpiry reports the pending expiry for a slot, zero if none.
func (r *Room) timerExpiry(stage int) time.Time {
	if handle, ok := r.timers[stage]; ok {
		return handle.expiresAt
	}
	return time.Time{}
}
