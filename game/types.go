package game

import (
	"time"
)

type Phase string

const (
	PhaseLobby       Phase = "lobby"
	PhaseStageConfig Phase = "stageConfig"
	PhaseInGame      Phase = "inGame"
	PhaseCompleted   Phase = "completed"
)

type MinigameID string

const (
	MinigameWhoListenedMost MinigameID = "whoListenedMost"
	MinigameHeardle         MinigameID = "heardle"
	MinigameGuessTheSummary MinigameID = "guessTheSummary"
)

// StageCount is fixed by product: a party is always three stages.
const StageCount = 3

type StageConfig struct {
	Index         int            `json:"index"`
	MinigameID    MinigameID     `json:"minigameId"`
	CustomOptions map[string]any `json:"customOptions,omitempty"`
}

// Profile is what a connection tells us about itself.
type Profile struct {
	DisplayName string
	AccountID   string // empty for guests
	Avatar      string
}

type Player struct {
	SocketID  string
	Name      string
	AccountID string
	Avatar    string
}

type Award struct {
	Points int            `json:"points"`
	Reason string         `json:"reason"`
	Meta   map[string]any `json:"meta,omitempty"`
	At     time.Time      `json:"at"`
}

type ScoreboardEntry struct {
	Points         int     `json:"points"`
	TotalAwards    int     `json:"totalAwards"`
	CorrectAnswers int     `json:"correctAnswers"`
	Awards         []Award `json:"awards"` // most recent first, capped
}

// maxAwardHistory bounds the per-player award list kept for UI attribution.
const maxAwardHistory = 50

type roundTimer struct {
	timer     *time.Timer
	expiresAt time.Time
}

// Room is owned by the Registry. Nothing outside the game package holds
// a *Room across a suspension point; handlers re-fetch by code after any
// awaited external call.
type Room struct {
	Code         string
	HostSocketID string
	Phase        Phase
	StagePlan    []StageConfig // always StageCount entries
	CurrentStage int           // -1 until the plan is locked

	players    []*Player // join order; host is not a player
	rounds     map[int]Round
	scoreboard map[string]*ScoreboardEntry
	timers     map[int]*roundTimer

	// per-room minigame pools, built lazily
	wlm     *wlmRoomState
	heardle map[int]*heardlePool
}

func defaultStagePlan() []StageConfig {
	return []StageConfig{
		{Index: 0, MinigameID: MinigameWhoListenedMost},
		{Index: 1, MinigameID: MinigameHeardle},
		{Index: 2, MinigameID: MinigameGuessTheSummary},
	}
}

func (r *Room) Player(socketID string) (*Player, bool) {
	for _, p := range r.players {
		if p.SocketID == socketID {
			return p, true
		}
	}
	return nil, false
}

func (r *Room) Players() []*Player {
	return r.players
}

func (r *Room) IsHost(socketID string) bool {
	return socketID != "" && r.HostSocketID == socketID
}

// CurrentStageConfig returns nil when no stage is active.
func (r *Room) CurrentStageConfig() *StageConfig {
	if r.Phase != PhaseInGame && r.Phase != PhaseCompleted {
		return nil
	}
	if r.CurrentStage < 0 || r.CurrentStage >= len(r.StagePlan) {
		return nil
	}
	cfg := r.StagePlan[r.CurrentStage]
	return &cfg
}

// CurrentRound returns the round slot for the active stage, nil if none.
func (r *Room) CurrentRound() Round {
	if r.Phase != PhaseInGame || r.CurrentStage < 0 {
		return nil
	}
	return r.rounds[r.CurrentStage]
}

// accountIDs collects the linked accounts of the current players,
// skipping guests. Join order is preserved.
func (r *Room) accountIDs() []string {
	ids := make([]string, 0, len(r.players))
	for _, p := range r.players {
		if p.AccountID != "" {
			ids = append(ids, p.AccountID)
		}
	}
	return ids
}
