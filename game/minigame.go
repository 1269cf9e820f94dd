package game

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"auxparty/music"
)

// Deps is the fixed capability bundle handed to every minigame at
// registration. The room-touching functions must only be called from
// inside Run; Run itself acquires the registry lock, and a handler that
// awaited a collaborator between two Run sections must re-fetch its
// room in the second one before mutating anything.
type Deps struct {
	Run                func(fn func() error) error
	GetRoom            func(code string) (*Room, bool)
	BroadcastGameState func(room *Room)
	ApplyAwards        func(room *Room, grants []AwardGrant)
	ComputeTimeScore   func(startedAt, submittedAt time.Time, hasSubmission bool, opts TimeScoreOpts) int
	ScheduleRoundTimer func(room *Room, stage int, d time.Duration, onExpire func(*Room)) time.Time
	ClearRoundTimer    func(room *Room, stage int)
	Summaries          music.SummaryProvider
	Prompts            music.PromptProvider
	Log                zerolog.Logger
}

// Minigame is the shared contract every game type implements. Adding a
// game type means adding one implementation and one entry to the
// factory list in RegisterMinigames; nothing else changes.
type Minigame interface {
	ID() MinigameID
	// CreateRoundState lets a minigame pre-build a round when its stage
	// becomes active. Returning nil means "wait for an explicit start",
	// and the stage controller installs a placeholder instead.
	CreateRoundState(room *Room) Round
	StartRound(ctx context.Context, code, socketID string) error
	SubmitAnswer(ctx context.Context, code, socketID string, payload json.RawMessage) error
	Reveal(ctx context.Context, code, socketID string) error
}

// MinigameSet is the compile-time registry of game types.
type MinigameSet struct {
	byID map[MinigameID]Minigame
	log  zerolog.Logger
}

// RegisterMinigames builds each minigame against the shared deps
// bundle. Registration is isolated per entry: one panicking constructor
// is logged and skipped, the rest still register.
func RegisterMinigames(deps Deps, log zerolog.Logger, factories []func(Deps) Minigame) *MinigameSet {
	set := &MinigameSet{
		byID: make(map[MinigameID]Minigame),
		log:  log.With().Str("component", "minigames").Logger(),
	}
	for _, factory := range factories {
		set.registerOne(deps, factory)
	}
	return set
}

func (s *MinigameSet) registerOne(deps Deps, factory func(Deps) Minigame) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Msg("minigame registration failed, skipping")
		}
	}()
	m := factory(deps)
	if m == nil {
		return
	}
	if _, dup := s.byID[m.ID()]; dup {
		s.log.Error().Str("minigame", string(m.ID())).Msg("duplicate minigame id, skipping")
		return
	}
	s.byID[m.ID()] = m
	s.log.Info().Str("minigame", string(m.ID())).Msg("minigame registered")
}

func (s *MinigameSet) Get(id MinigameID) (Minigame, bool) {
	m, ok := s.byID[id]
	return m, ok
}

// RoundFactories exposes the per-minigame round factories for the
// stage controller's lazy-creation path.
func (s *MinigameSet) RoundFactories() map[MinigameID]func(*Room) Round {
	factories := make(map[MinigameID]func(*Room) Round, len(s.byID))
	for id, m := range s.byID {
		factories[id] = m.CreateRoundState
	}
	return factories
}

// NewDeps wires the capability bundle over a registry and a broadcast
// sink. broadcast is invoked with the registry lock held and must not
// block.
func NewDeps(g *Registry, broadcast func(*Room), summaries music.SummaryProvider, prompts music.PromptProvider, log zerolog.Logger) Deps {
	return Deps{
		Run:                g.Run,
		GetRoom:            g.getRoom,
		BroadcastGameState: broadcast,
		ApplyAwards:        applyAwards,
		ComputeTimeScore:   ComputeTimeScore,
		ScheduleRoundTimer: g.scheduleRoundTimer,
		ClearRoundTimer:    g.clearRoundTimer,
		Summaries:          summaries,
		Prompts:            prompts,
		Log:                log,
	}
}

// activeStage validates that the caller's command targets the minigame
// currently scheduled in the room's active stage.
func activeStage(room *Room, id MinigameID) (int, error) {
	if room.Phase != PhaseInGame || room.CurrentStage < 0 || room.CurrentStage >= len(room.StagePlan) {
		return 0, ErrNoStageActive
	}
	if room.StagePlan[room.CurrentStage].MinigameID != id {
		return 0, ErrNoStageActive
	}
	return room.CurrentStage, nil
}

// roundFor fetches the live round of the given variant type for the
// active stage. Placeholders and foreign variants read as "not ready".
func roundFor[T Round](room *Room, stage int) (T, error) {
	var zero T
	round, ok := room.rounds[stage]
	if !ok {
		return zero, ErrRoundNotReady
	}
	typed, ok := round.(T)
	if !ok {
		return zero, ErrRoundNotReady
	}
	return typed, nil
}

func hostOnly(room *Room, socketID string) error {
	if !room.IsHost(socketID) {
		return ErrNotHost
	}
	return nil
}

func collaboratorError(log zerolog.Logger, op string, err error) error {
	log.Error().Err(err).Str("op", op).Msg("collaborator call failed")
	return fmt.Errorf("%w: %s", ErrServer, op)
}
