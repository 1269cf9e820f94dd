package game

import (
	"time"

	"github.com/google/uuid"
)

type RoundStatus string

const (
	// RoundPending exists for rounds whose prompt is still being fetched
	// and for the generic placeholder the stage controller installs.
	RoundPending    RoundStatus = "pending"
	RoundCollecting RoundStatus = "collecting"
	RoundRevealed   RoundStatus = "revealed"
)

// RoundCore carries the fields every minigame round shares. Each
// minigame embeds it in its own strongly typed round struct.
type RoundCore struct {
	ID         string
	MinigameID MinigameID
	Status     RoundStatus
	StartedAt  time.Time
	RevealedAt time.Time
}

func newRoundCore(id MinigameID, status RoundStatus) RoundCore {
	return RoundCore{
		ID:         uuid.NewString(),
		MinigameID: id,
		Status:     status,
	}
}

// Round is the tagged union over the per-minigame round variants.
type Round interface {
	Core() *RoundCore
	// PublicView builds the client-facing state for this round. It is
	// responsible for withholding anything that would spoil an
	// unrevealed round (the summary owner, the hidden Heardle track).
	PublicView(room *Room) map[string]any
	// DropAnswers removes everything a departing player submitted so
	// tallies stay consistent.
	DropAnswers(socketID string)
}

func (c *RoundCore) Core() *RoundCore { return c }

func (c *RoundCore) baseView() map[string]any {
	view := map[string]any{
		"roundId":    c.ID,
		"minigameId": c.MinigameID,
		"status":     c.Status,
	}
	if !c.StartedAt.IsZero() {
		view["startedAt"] = c.StartedAt.UnixMilli()
	}
	if !c.RevealedAt.IsZero() {
		view["revealedAt"] = c.RevealedAt.UnixMilli()
	}
	return view
}

// PlaceholderRound is what clients render between a stage becoming
// active and the host starting the stage's real round.
type PlaceholderRound struct {
	RoundCore
	Message string
}

func newPlaceholderRound(id MinigameID) *PlaceholderRound {
	return &PlaceholderRound{
		RoundCore: newRoundCore(id, RoundPending),
		Message:   "coming soon",
	}
}

func (p *PlaceholderRound) PublicView(room *Room) map[string]any {
	view := p.baseView()
	view["placeholder"] = true
	view["message"] = p.Message
	return view
}

func (p *PlaceholderRound) DropAnswers(socketID string) {}
