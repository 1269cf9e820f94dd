package game

// The stage controller keeps one invariant: the active stage index
// always has exactly one round slot, created on demand. Round slots
// for a stage are torn down when the controller advances past it.

// SetRoundFactories installs the per-minigame round factories used by
// the lazy-creation path. Wired once at startup, before any command.
func (g *Registry) SetRoundFactories(factories map[MinigameID]func(*Room) Round) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.roundFactories = factories
}

// ensureRound guarantees the active stage has a round slot. If the
// stage's minigame declines to pre-build one, a generic placeholder is
// installed so clients always have something to render. Lock held.
func (g *Registry) ensureRound(room *Room) {
	if room.Phase != PhaseInGame || room.CurrentStage < 0 || room.CurrentStage >= len(room.StagePlan) {
		return
	}
	if _, exists := room.rounds[room.CurrentStage]; exists {
		return
	}
	cfg := room.StagePlan[room.CurrentStage]
	if factory, ok := g.roundFactories[cfg.MinigameID]; ok && factory != nil {
		if round := factory(room); round != nil {
			room.rounds[room.CurrentStage] = round
			return
		}
	}
	room.rounds[room.CurrentStage] = newPlaceholderRound(cfg.MinigameID)
}

// AdvanceStageOrRound moves the room to its next stage, or completes
// the game when none remains. The old stage's timer is cancelled
// synchronously so no stale reveal can fire against discarded state,
// and the new stage's round slot is deleted to force lazy recreation.
func (g *Registry) AdvanceStageOrRound(code, socketID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	room, ok := g.getRoom(code)
	if !ok {
		return ErrRoomNotFound
	}
	if err := hostOnly(room, socketID); err != nil {
		return err
	}
	if room.Phase != PhaseInGame {
		return ErrNoStageActive
	}

	g.clearRoundTimer(room, room.CurrentStage)

	if room.CurrentStage+1 >= len(room.StagePlan) {
		room.Phase = PhaseCompleted
		g.log.Info().Str("room", code).Msg("game completed")
		return nil
	}

	room.CurrentStage++
	delete(room.rounds, room.CurrentStage)
	g.ensureRound(room)
	g.log.Info().Str("room", code).Int("stage", room.CurrentStage).Msg("stage advanced")
	return nil
}
