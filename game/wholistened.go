package game

import (
	"context"
	"encoding/json"
	"time"

	"auxparty/music"
)

const wlmRoundDuration = 20 * time.Second

// wlmPrompt is one "who listened to this the most?" subject.
type wlmPrompt struct {
	Kind        string         `json:"kind"` // track | artist
	SubjectID   string         `json:"subjectId"`
	SubjectName string         `json:"subjectName"`
	Detail      string         `json:"detail,omitempty"` // artist name for track prompts
	ListensBy   map[string]int `json:"-"`                // accountID -> listen count
}

// wlmRoomState is the per-room prompt pool, built once from the shared
// top tracks/artists of the players present at first start.
type wlmRoomState struct {
	pool        []wlmPrompt
	used        map[int]bool
	seenWinners map[string]bool // accounts that already topped a prompt
}

type wlmAnswer struct {
	VotedSocketID string
	At            time.Time
}

type WLMResults struct {
	MaxListens int            `json:"maxListens"`
	Listens    map[string]int `json:"listens"` // socketID -> listen count
	Correct    []string       `json:"correct"` // players tied at the max
	Winners    []string       `json:"winners"` // voters who picked a correct player
}

type WLMRound struct {
	RoundCore
	Prompt  wlmPrompt
	answers map[string]wlmAnswer
	Results *WLMResults
}

func (r *WLMRound) DropAnswers(socketID string) {
	delete(r.answers, socketID)
}

func (r *WLMRound) PublicView(room *Room) map[string]any {
	view := r.baseView()
	view["prompt"] = r.Prompt
	answered := make([]string, 0, len(r.answers))
	for socketID := range r.answers {
		answered = append(answered, socketID)
	}
	view["answeredBy"] = answered
	view["expiresAt"] = unixMilliOrNil(room.timerExpiry(room.CurrentStage))
	if r.Status == RoundRevealed && r.Results != nil {
		view["results"] = r.Results
	}
	return view
}

func unixMilliOrNil(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UnixMilli()
}

type whoListenedMost struct {
	deps Deps
}

func NewWhoListenedMost(d Deps) Minigame {
	return &whoListenedMost{deps: d}
}

func (m *whoListenedMost) ID() MinigameID { return MinigameWhoListenedMost }

// Rounds need a prompt fetch, so there is nothing useful to pre-build
// when the stage activates.
func (m *whoListenedMost) CreateRoundState(room *Room) Round { return nil }

func (m *whoListenedMost) StartRound(ctx context.Context, code, socketID string) error {
	var accountIDs []string
	poolReady := false

	err := m.deps.Run(func() error {
		room, ok := m.deps.GetRoom(code)
		if !ok {
			return ErrRoomNotFound
		}
		if err := hostOnly(room, socketID); err != nil {
			return err
		}
		if _, err := activeStage(room, m.ID()); err != nil {
			return err
		}
		if room.wlm != nil {
			poolReady = true
			return m.startWithPool(room)
		}
		accountIDs = room.accountIDs()
		return nil
	})
	if err != nil || poolReady {
		return err
	}
	if len(accountIDs) == 0 {
		return ErrNoEligibleData
	}

	// Suspension point: the room can move on or disappear while the
	// prompt data is being fetched.
	top, err := m.deps.Prompts.SharedTop(ctx, accountIDs)
	if err != nil {
		return collaboratorError(m.deps.Log, "sharedTop", err)
	}
	if top == nil || (len(top.Tracks) == 0 && len(top.Artists) == 0) {
		return ErrNoEligibleData
	}

	return m.deps.Run(func() error {
		room, ok := m.deps.GetRoom(code)
		if !ok {
			return ErrStaleState
		}
		if err := hostOnly(room, socketID); err != nil {
			return err
		}
		if _, err := activeStage(room, m.ID()); err != nil {
			return ErrStaleState
		}
		if room.wlm == nil {
			room.wlm = buildWLMPool(top)
		}
		return m.startWithPool(room)
	})
}

// startWithPool selects a prompt and installs a fresh collecting round.
// Lock held.
func (m *whoListenedMost) startWithPool(room *Room) error {
	stage := room.CurrentStage
	prompt, ok := room.wlm.selectPrompt(room)
	if !ok {
		return ErrNoEligibleData
	}

	round := &WLMRound{
		RoundCore: newRoundCore(m.ID(), RoundCollecting),
		Prompt:    prompt,
		answers:   make(map[string]wlmAnswer),
	}
	round.StartedAt = time.Now()

	m.deps.ClearRoundTimer(room, stage)
	room.rounds[stage] = round

	roundID := round.ID
	m.deps.ScheduleRoundTimer(room, stage, wlmRoundDuration, func(current *Room) {
		live, err := roundFor[*WLMRound](current, stage)
		if err != nil || live.ID != roundID {
			return
		}
		m.revealLocked(current, stage, live)
	})

	m.deps.BroadcastGameState(room)
	return nil
}

// buildWLMPool interleaves track and artist prompts round-robin.
func buildWLMPool(top *music.SharedTop) *wlmRoomState {
	state := &wlmRoomState{
		used:        make(map[int]bool),
		seenWinners: make(map[string]bool),
	}
	for i := 0; i < len(top.Tracks) || i < len(top.Artists); i++ {
		if i < len(top.Tracks) {
			t := top.Tracks[i]
			state.pool = append(state.pool, wlmPrompt{
				Kind:        "track",
				SubjectID:   t.ID,
				SubjectName: t.Name,
				Detail:      t.ArtistName,
				ListensBy:   t.ListensBy,
			})
		}
		if i < len(top.Artists) {
			a := top.Artists[i]
			state.pool = append(state.pool, wlmPrompt{
				Kind:        "artist",
				SubjectID:   a.ID,
				SubjectName: a.Name,
				ListensBy:   a.ListensBy,
			})
		}
	}
	return state
}

// selectPrompt prefers a prompt whose top listener has not already won
// one in this room. When no winner-diverse choice remains the seen set
// resets and selection falls back to plain unseen-prompt rotation.
func (s *wlmRoomState) selectPrompt(room *Room) (wlmPrompt, bool) {
	if len(s.pool) == 0 {
		return wlmPrompt{}, false
	}

	candidates := make([]int, 0, len(s.pool))
	for i := range s.pool {
		if !s.used[i] {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		// pool exhausted, recycle
		s.used = make(map[int]bool)
		for i := range s.pool {
			candidates = append(candidates, i)
		}
	}

	pick := -1
	for _, i := range candidates {
		if top := s.pool[i].topListener(room); top == "" || !s.seenWinners[top] {
			pick = i
			break
		}
	}
	if pick < 0 {
		s.seenWinners = make(map[string]bool)
		pick = candidates[0]
	}

	s.used[pick] = true
	return s.pool[pick], true
}

// topListener returns the account with the highest listen count among
// the room's current players, using join order to break ties.
func (p wlmPrompt) topListener(room *Room) string {
	best := ""
	bestCount := -1
	for _, player := range room.Players() {
		if player.AccountID == "" {
			continue
		}
		if count := p.ListensBy[player.AccountID]; count > bestCount {
			best = player.AccountID
			bestCount = count
		}
	}
	return best
}

type wlmSubmitPayload struct {
	VotedSocketID string `json:"votedSocketId"`
}

func (m *whoListenedMost) SubmitAnswer(ctx context.Context, code, socketID string, payload json.RawMessage) error {
	var body wlmSubmitPayload
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
		round, err := roundFor[*WLMRound](room, stage)
		if err != nil {
			return err
		}
		if round.Status == RoundRevealed {
			return ErrRoundRevealed
		}
		if _, isPlayer := room.Player(socketID); !isPlayer {
			return ErrNotInRoom
		}
		if _, isTarget := room.Player(body.VotedSocketID); !isTarget {
			return ErrBadRequest
		}

		// resubmission overwrites the previous vote
		round.answers[socketID] = wlmAnswer{VotedSocketID: body.VotedSocketID, At: time.Now()}
		m.deps.BroadcastGameState(room)

		if len(round.answers) >= len(room.Players()) {
			m.revealLocked(room, stage, round)
		}
		return nil
	})
}

func (m *whoListenedMost) Reveal(ctx context.Context, code, socketID string) error {
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
		round, err := roundFor[*WLMRound](room, stage)
		if err != nil {
			return err
		}
		m.revealLocked(room, stage, round)
		return nil
	})
}

// revealLocked freezes the round outcome. Idempotent: a second call
// rebroadcasts the already-computed results without recomputing or
// re-awarding. Lock held.
func (m *whoListenedMost) revealLocked(room *Room, stage int, round *WLMRound) {
	if round.Status == RoundRevealed {
		m.deps.BroadcastGameState(room)
		return
	}
	m.deps.ClearRoundTimer(room, stage)

	results := &WLMResults{Listens: make(map[string]int)}
	for _, player := range room.Players() {
		count := 0
		if player.AccountID != "" {
			count = round.Prompt.ListensBy[player.AccountID]
		}
		results.Listens[player.SocketID] = count
		if count > results.MaxListens {
			results.MaxListens = count
		}
	}
	correct := make(map[string]bool)
	for _, player := range room.Players() {
		if results.Listens[player.SocketID] == results.MaxListens {
			results.Correct = append(results.Correct, player.SocketID)
			correct[player.SocketID] = true
		}
	}

	var grants []AwardGrant
	for voter, answer := range round.answers {
		if !correct[answer.VotedSocketID] {
			continue
		}
		results.Winners = append(results.Winners, voter)
		points := m.deps.ComputeTimeScore(round.StartedAt, answer.At, true, TimeScoreOpts{})
		grants = append(grants, AwardGrant{
			SocketID: voter,
			Points:   points,
			Reason:   "correct",
			Meta: map[string]any{
				"minigame": m.ID(),
				"subject":  round.Prompt.SubjectName,
			},
		})
	}

	// remember who topped this prompt so the next selection favors a
	// different winner
	for socketID := range correct {
		if player, ok := room.Player(socketID); ok && player.AccountID != "" {
			room.wlm.seenWinners[player.AccountID] = true
		}
	}

	round.Results = results
	round.Status = RoundRevealed
	round.RevealedAt = time.Now()
	m.deps.ApplyAwards(room, grants)
	m.deps.BroadcastGameState(room)
}
