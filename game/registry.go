package game

import (
	"sync"

	"github.com/rs/zerolog"
)

// Registry is the authoritative owner of every live room. All command
// handlers funnel through its lock, which models the single-threaded
// handler execution the protocol assumes: a handler body is atomic
// unless it explicitly releases the lock to await a collaborator, and
// any handler that does so must re-fetch its room afterwards.
type Registry struct {
	mu             sync.Mutex
	rooms          map[string]*Room
	roundFactories map[MinigameID]func(*Room) Round
	log            zerolog.Logger
}

func NewRegistry(log zerolog.Logger) *Registry {
	return &Registry{
		rooms: make(map[string]*Room),
		log:   log.With().Str("component", "rooms").Logger(),
	}
}

// Run executes fn with the registry lock held. Minigame handlers use it
// to get the same atomicity command handlers have, and to re-validate
// state when resuming after an awaited external call.
func (g *Registry) Run(fn func() error) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return fn()
}

// getRoom is the lock-held lookup every other component goes through.
func (g *Registry) getRoom(code string) (*Room, bool) {
	room, ok := g.rooms[code]
	return room, ok
}

func (g *Registry) RoomCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.rooms)
}

// CreateRoom allocates a fresh room with the caller as host. The host
// is a spectator-controller by product policy, so they are not inserted
// into the player list.
func (g *Registry) CreateRoom(socketID string, profile Profile) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	code := g.uniqueRoomCode()
	room := &Room{
		Code:         code,
		HostSocketID: socketID,
		Phase:        PhaseLobby,
		StagePlan:    defaultStagePlan(),
		CurrentStage: -1,
		rounds:       make(map[int]Round),
		scoreboard:   make(map[string]*ScoreboardEntry),
		timers:       make(map[int]*roundTimer),
		heardle:      make(map[int]*heardlePool),
	}
	g.rooms[code] = room
	g.log.Info().Str("room", code).Str("socket", socketID).Msg("room created")
	return code, nil
}

func playerName(profile Profile) string {
	if profile.DisplayName != "" {
		return profile.DisplayName
	}
	return "Anonymous"
}

// JoinRoom inserts the caller into the room, overwriting any existing
// entry for the same connection identity (reconnects land here too).
func (g *Registry) JoinRoom(code, socketID string, profile Profile) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	room, ok := g.getRoom(code)
	if !ok {
		return ErrRoomNotFound
	}
	entry := &Player{
		SocketID:  socketID,
		Name:      playerName(profile),
		AccountID: profile.AccountID,
		Avatar:    profile.Avatar,
	}
	for i, p := range room.players {
		if p.SocketID == socketID {
			room.players[i] = entry
			return nil
		}
	}
	room.players = append(room.players, entry)
	return nil
}

// RemovePlayer drops the identity from the room, migrating the host
// role if needed and deleting the room once its player set is empty.
// Answers the departing identity submitted to in-flight rounds are
// purged so reveal tallies stay consistent.
func (g *Registry) RemovePlayer(code, socketID string) (deleted bool, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.removePlayerLocked(code, socketID)
}

func (g *Registry) removePlayerLocked(code, socketID string) (bool, error) {
	room, ok := g.getRoom(code)
	if !ok {
		return false, ErrRoomNotFound
	}

	for i, p := range room.players {
		if p.SocketID == socketID {
			room.players = append(room.players[:i], room.players[i+1:]...)
			break
		}
	}
	for _, round := range room.rounds {
		if round.Core().Status != RoundRevealed {
			round.DropAnswers(socketID)
		}
	}

	if len(room.players) == 0 {
		g.deleteRoomLocked(room)
		return true, nil
	}
	if room.HostSocketID == socketID {
		room.HostSocketID = room.players[0].SocketID
		g.log.Info().Str("room", code).Str("socket", room.HostSocketID).Msg("host migrated")
	}
	return false, nil
}

func (g *Registry) deleteRoomLocked(room *Room) {
	for stage := range room.timers {
		g.clearRoundTimer(room, stage)
	}
	delete(g.rooms, room.Code)
	g.log.Info().Str("room", room.Code).Msg("room deleted")
}

// UpdateProfile propagates a display-name/avatar change to every room
// the identity currently occupies, not just the most recent one.
// It returns the affected room codes so the caller can broadcast.
func (g *Registry) UpdateProfile(socketID string, displayName, avatar string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	var affected []string
	for code, room := range g.rooms {
		for _, p := range room.players {
			if p.SocketID != socketID {
				continue
			}
			if displayName != "" {
				p.Name = displayName
			}
			if avatar != "" {
				p.Avatar = avatar
			}
			affected = append(affected, code)
		}
	}
	return affected
}

// EnterStageConfig moves a lobby into stage-plan editing.
func (g *Registry) EnterStageConfig(code, socketID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	room, ok := g.getRoom(code)
	if !ok {
		return ErrRoomNotFound
	}
	if !room.IsHost(socketID) {
		return ErrNotHost
	}
	room.Phase = PhaseStageConfig
	return nil
}

// UpdateStagePlan replaces the plan. Anything that is not exactly
// StageCount entries is rejected and the existing plan stays untouched.
func (g *Registry) UpdateStagePlan(code, socketID string, plan []StageConfig) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	room, ok := g.getRoom(code)
	if !ok {
		return ErrRoomNotFound
	}
	if !room.IsHost(socketID) {
		return ErrNotHost
	}
	if len(plan) != StageCount {
		return ErrInvalidStagePlan
	}
	normalized := make([]StageConfig, StageCount)
	for i, cfg := range plan {
		cfg.Index = i
		if !validMinigameID(cfg.MinigameID) {
			return ErrInvalidStagePlan
		}
		normalized[i] = cfg
	}
	room.StagePlan = normalized
	room.Phase = PhaseStageConfig
	return nil
}

// StartGame locks the plan and enters the first stage with a clean
// scoreboard and timer bucket.
func (g *Registry) StartGame(code, socketID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	room, ok := g.getRoom(code)
	if !ok {
		return ErrRoomNotFound
	}
	if !room.IsHost(socketID) {
		return ErrNotHost
	}
	if room.Phase == PhaseInGame || len(room.StagePlan) != StageCount {
		return ErrCantStart
	}
	for stage := range room.timers {
		g.clearRoundTimer(room, stage)
	}
	room.Phase = PhaseInGame
	room.CurrentStage = 0
	room.scoreboard = make(map[string]*ScoreboardEntry)
	room.rounds = make(map[int]Round)
	room.wlm = nil
	room.heardle = make(map[int]*heardlePool)
	g.ensureRound(room)
	g.log.Info().Str("room", code).Msg("game started")
	return nil
}

func validMinigameID(id MinigameID) bool {
	switch id {
	case MinigameWhoListenedMost, MinigameHeardle, MinigameGuessTheSummary:
		return true
	}
	return false
}
