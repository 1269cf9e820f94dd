package game

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"auxparty/music"
)

const summaryRoundDuration = 30 * time.Second

type summaryVote struct {
	VotedSocketID string
	At            time.Time
}

type SummaryResults struct {
	OwnerSocketID string            `json:"ownerSocketId"`
	OwnerName     string            `json:"ownerName"`
	Votes         map[string]string `json:"votes"` // voter -> voted
	Winners       []string          `json:"winners"`
}

// SummaryRound starts out pending while the owner's listening summary
// is fetched, then collects "whose summary is this?" votes.
type SummaryRound struct {
	RoundCore
	OwnerSocketID string
	Summary       *music.Summary
	votes         map[string]summaryVote
	Results       *SummaryResults
}

func (r *SummaryRound) DropAnswers(socketID string) {
	delete(r.votes, socketID)
}

func (r *SummaryRound) PublicView(room *Room) map[string]any {
	view := r.baseView()
	if r.Summary != nil {
		view["summary"] = r.Summary
	}
	voted := make([]string, 0, len(r.votes))
	for socketID := range r.votes {
		voted = append(voted, socketID)
	}
	view["votedBy"] = voted
	view["expiresAt"] = unixMilliOrNil(room.timerExpiry(room.CurrentStage))

	// the owner is the answer; it stays hidden until reveal
	if r.Status == RoundRevealed && r.Results != nil {
		view["ownerSocketId"] = r.OwnerSocketID
		if owner, ok := room.Player(r.OwnerSocketID); ok {
			view["ownerProfile"] = map[string]any{"name": owner.Name, "avatar": owner.Avatar}
		}
		view["results"] = r.Results
	} else {
		view["ownerSocketId"] = nil
		view["ownerProfile"] = nil
	}
	return view
}

type guessTheSummary struct {
	deps Deps
}

func NewGuessTheSummary(d Deps) Minigame {
	return &guessTheSummary{deps: d}
}

func (m *guessTheSummary) ID() MinigameID { return MinigameGuessTheSummary }

func (m *guessTheSummary) CreateRoundState(room *Room) Round { return nil }

func (m *guessTheSummary) StartRound(ctx context.Context, code, socketID string) error {
	var pendingID string
	var candidates []Player

	err := m.deps.Run(func() error {
		room, ok := m.deps.GetRoom(code)
		if !ok {
			return ErrRoomNotFound
		}
		if err := hostOnly(room, socketID); err != nil {
			return err
		}
		stage, err := activeStage(room, m.ID())
		if err != nil {
			return err
		}

		for _, p := range room.Players() {
			if p.AccountID != "" {
				candidates = append(candidates, *p)
			}
		}
		if len(candidates) == 0 {
			return ErrNoEligibleData
		}

		// hold the slot while the summary fetch is in flight
		pending := &SummaryRound{
			RoundCore: newRoundCore(m.ID(), RoundPending),
			votes:     make(map[string]summaryVote),
		}
		pendingID = pending.ID
		m.deps.ClearRoundTimer(room, stage)
		room.rounds[stage] = pending
		m.deps.BroadcastGameState(room)
		return nil
	})
	if err != nil {
		return err
	}

	rand.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})

	// Try candidates in shuffled order, skipping anyone whose summary
	// fetch fails or comes back empty. Each fetch is a suspension
	// point, so the room state gets re-validated per attempt.
	for _, candidate := range candidates {
		summary, err := m.deps.Summaries.SummaryFor(ctx, candidate.AccountID)
		if err != nil {
			m.deps.Log.Warn().Err(err).Str("room", code).Msg("summary fetch failed, skipping candidate")
			continue
		}
		if summary == nil {
			continue
		}

		var installed bool
		err = m.deps.Run(func() error {
			room, round, stage, err := m.pendingRound(code, pendingID)
			if err != nil {
				return err
			}
			if _, stillHere := room.Player(candidate.SocketID); !stillHere {
				return nil // owner left during the fetch, try the next one
			}
			round.OwnerSocketID = candidate.SocketID
			round.Summary = summary
			round.Status = RoundCollecting
			round.StartedAt = time.Now()

			roundID := round.ID
			m.deps.ScheduleRoundTimer(room, stage, summaryRoundDuration, func(current *Room) {
				live, err := roundFor[*SummaryRound](current, stage)
				if err != nil || live.ID != roundID {
					return
				}
				m.revealLocked(current, stage, live)
			})
			m.deps.BroadcastGameState(room)
			installed = true
			return nil
		})
		if err != nil {
			return err
		}
		if installed {
			return nil
		}
	}

	// nobody produced a usable summary; tear the pending slot down
	m.deps.Run(func() error {
		room, _, stage, err := m.pendingRound(code, pendingID)
		if err != nil {
			return nil
		}
		room.rounds[stage] = newPlaceholderRound(m.ID())
		m.deps.BroadcastGameState(room)
		return nil
	})
	return ErrNoEligibleData
}

// pendingRound re-fetches the room after a suspension and confirms the
// pending round installed at start is still the live one.
func (m *guessTheSummary) pendingRound(code, pendingID string) (*Room, *SummaryRound, int, error) {
	room, ok := m.deps.GetRoom(code)
	if !ok {
		return nil, nil, 0, ErrStaleState
	}
	stage, err := activeStage(room, m.ID())
	if err != nil {
		return nil, nil, 0, ErrStaleState
	}
	round, err := roundFor[*SummaryRound](room, stage)
	if err != nil || round.ID != pendingID || round.Status != RoundPending {
		return nil, nil, 0, ErrStaleState
	}
	return room, round, stage, nil
}

type summaryVotePayload struct {
	VotedSocketID string `json:"votedSocketId"`
}

func (m *guessTheSummary) SubmitAnswer(ctx context.Context, code, socketID string, payload json.RawMessage) error {
	var body summaryVotePayload
	if err := json.Unmarshal(payload, &body); err != nil || body.VotedSocketID == "" {
		return ErrBadRequest
	}

	return m.deps.Run(func() error {
		room, ok := m.deps.GetRoom(code)
		if !ok {
			return ErrRoomNotFound
		}
		stage, err := activeStage(room, m.ID())
		if err != nil {
			return err
		}
		round, err := roundFor[*SummaryRound](room, stage)
		if err != nil {
			return err
		}
		switch round.Status {
		case RoundPending:
			return ErrRoundNotReady
		case RoundRevealed:
			return ErrRoundRevealed
		}
		if _, isPlayer := room.Player(socketID); !isPlayer {
			return ErrNotInRoom
		}
		if _, isTarget := room.Player(body.VotedSocketID); !isTarget {
			return ErrBadRequest
		}

		round.votes[socketID] = summaryVote{VotedSocketID: body.VotedSocketID, At: time.Now()}
		m.deps.BroadcastGameState(room)

		if len(round.votes) >= len(room.Players()) {
			m.revealLocked(room, stage, round)
		}
		return nil
	})
}

func (m *guessTheSummary) Reveal(ctx context.Context, code, socketID string) error {
	return m.deps.Run(func() error {
		room, ok := m.deps.GetRoom(code)
		if !ok {
			return ErrRoomNotFound
		}
		if err := hostOnly(room, socketID); err != nil {
			return err
		}
		stage, err := activeStage(room, m.ID())
		if err != nil {
			return err
		}
		round, err := roundFor[*SummaryRound](room, stage)
		if err != nil {
			return err
		}
		if round.Status == RoundPending {
			return ErrRoundNotReady
		}
		m.revealLocked(room, stage, round)
		return nil
	})
}

func (m *guessTheSummary) revealLocked(room *Room, stage int, round *SummaryRound) {
	if round.Status == RoundRevealed {
		m.deps.BroadcastGameState(room)
		return
	}
	m.deps.ClearRoundTimer(room, stage)

	ownerName := ""
	if owner, ok := room.Player(round.OwnerSocketID); ok {
		ownerName = owner.Name
	}
	results := &SummaryResults{
		OwnerSocketID: round.OwnerSocketID,
		OwnerName:     ownerName,
		Votes:         make(map[string]string),
	}

	var grants []AwardGrant
	for voter, vote := range round.votes {
		results.Votes[voter] = vote.VotedSocketID
		if vote.VotedSocketID != round.OwnerSocketID {
			continue
		}
		results.Winners = append(results.Winners, voter)
		points := m.deps.ComputeTimeScore(round.StartedAt, vote.At, true, TimeScoreOpts{})
		grants = append(grants, AwardGrant{
			SocketID: voter,
			Points:   points,
			Reason:   "correct",
			Meta: map[string]any{
				"minigame": m.ID(),
				"owner":    ownerName,
			},
		})
	}

	round.Results = results
	round.Status = RoundRevealed
	round.RevealedAt = time.Now()
	m.deps.ApplyAwards(room, grants)
	m.deps.BroadcastGameState(room)
}
