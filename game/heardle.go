package game

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"auxparty/music"
)

// Snippet ladder: each entry is how much of the song plays, paired with
// the max points a correct guess at that snippet can earn.
var (
	heardleSnippetLengths = []time.Duration{
		500 * time.Millisecond,
		1 * time.Second,
		3 * time.Second,
		7 * time.Second,
		12 * time.Second,
		17 * time.Second,
	}
	heardleTierMaxPoints = []int{1200, 1000, 850, 700, 600, 500}
)

const (
	heardleGuessWindow = 60 * time.Second
	heardleMinPoints   = 25
	heardleStageCap    = 10 // songs per stage before NO_SONGS_REMAINING
)

// Guess outcomes, in precedence order.
const (
	heardleCorrect     = "correct"
	heardleAlbumMatch  = "album_match"
	heardleArtistMatch = "artist_match"
	heardleWrong       = "wrong"
)

// heardlePool is one stage's song queue, shared top songs ordered by
// cross-user popularity, consumed without replacement until exhausted
// and then recycled.
type heardlePool struct {
	tracks []music.Track
	next   int
	played int
}

func (p *heardlePool) take() (music.Track, bool) {
	if len(p.tracks) == 0 || p.played >= heardleStageCap {
		return music.Track{}, false
	}
	track := p.tracks[p.next%len(p.tracks)]
	p.next++
	p.played++
	return track, true
}

type heardleGuess struct {
	SnippetIndex int       `json:"snippetIndex"`
	TrackID      string    `json:"trackId"`
	TrackName    string    `json:"trackName"`
	ArtistName   string    `json:"artistName"`
	AlbumName    string    `json:"albumName"`
	Outcome      string    `json:"outcome"`
	Points       int       `json:"points"`
	At           time.Time `json:"at"`
}

type HeardleWinner struct {
	SocketID     string `json:"socketId"`
	SnippetIndex int    `json:"snippetIndex"`
	Points       int    `json:"points"`
}

type HeardleResults struct {
	Track   music.Track              `json:"track"`
	Winners []HeardleWinner          `json:"winners"`
	Guesses map[string][]heardleGuess `json:"guesses"`
}

type HeardleRound struct {
	RoundCore
	Track            music.Track
	SnippetIndex     int
	SnippetStartedAt time.Time
	guesses          map[string][]heardleGuess
	correct          map[string]heardleGuess
	Results          *HeardleResults
}

func (r *HeardleRound) DropAnswers(socketID string) {
	delete(r.guesses, socketID)
	delete(r.correct, socketID)
}

func (r *HeardleRound) hasGuessedSnippet(socketID string, snippet int) bool {
	for _, guess := range r.guesses[socketID] {
		if guess.SnippetIndex == snippet {
			return true
		}
	}
	return false
}

func (r *HeardleRound) PublicView(room *Room) map[string]any {
	view := r.baseView()
	view["snippetIndex"] = r.SnippetIndex
	view["snippetLengthsMs"] = snippetLengthsMs()
	view["expiresAt"] = unixMilliOrNil(room.timerExpiry(room.CurrentStage))

	if r.Status == RoundRevealed && r.Results != nil {
		view["guesses"] = r.guesses
		view["results"] = r.Results
		view["track"] = r.Track
	} else {
		// a correct guess names the hidden song, so pre-reveal views
		// carry outcomes and points only; the preview URL is all the
		// client needs to play snippets
		view["guesses"] = redactGuesses(r.guesses)
		view["previewUrl"] = r.Track.PreviewURL
	}
	return view
}

// redactGuesses strips everything players typed from the shared guess
// histories, leaving outcome, points and timing.
func redactGuesses(guesses map[string][]heardleGuess) map[string][]heardleGuess {
	out := make(map[string][]heardleGuess, len(guesses))
	for socketID, list := range guesses {
		redacted := make([]heardleGuess, len(list))
		for i, g := range list {
			g.TrackID = ""
			g.TrackName = ""
			g.ArtistName = ""
			g.AlbumName = ""
			redacted[i] = g
		}
		out[socketID] = redacted
	}
	return out
}

func snippetLengthsMs() []int64 {
	lengths := make([]int64, len(heardleSnippetLengths))
	for i, d := range heardleSnippetLengths {
		lengths[i] = d.Milliseconds()
	}
	return lengths
}

type heardle struct {
	deps Deps
}

func NewHeardle(d Deps) Minigame {
	return &heardle{deps: d}
}

func (m *heardle) ID() MinigameID { return MinigameHeardle }

func (m *heardle) CreateRoundState(room *Room) Round { return nil }

func (m *heardle) StartRound(ctx context.Context, code, socketID string) error {
	var accountIDs []string
	started := false

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
		if room.heardle[stage] != nil {
			started = true
			return m.startFromPool(room, stage)
		}
		accountIDs = room.accountIDs()
		return nil
	})
	if err != nil || started {
		return err
	}
	if len(accountIDs) == 0 {
		return ErrNoEligibleData
	}

	top, err := m.deps.Prompts.SharedTop(ctx, accountIDs)
	if err != nil {
		return collaboratorError(m.deps.Log, "sharedTop", err)
	}
	if top == nil || len(top.Tracks) == 0 {
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
		stage, err := activeStage(room, m.ID())
		if err != nil {
			return ErrStaleState
		}
		if room.heardle[stage] == nil {
			pool := &heardlePool{}
			for _, stats := range top.Tracks {
				pool.tracks = append(pool.tracks, stats.Track)
			}
			room.heardle[stage] = pool
		}
		return m.startFromPool(room, stage)
	})
}

// startFromPool draws the next song and installs a fresh round at
// snippet zero. Lock held.
func (m *heardle) startFromPool(room *Room, stage int) error {
	track, ok := room.heardle[stage].take()
	if !ok {
		return ErrNoSongsRemaining
	}

	now := time.Now()
	round := &HeardleRound{
		RoundCore:        newRoundCore(m.ID(), RoundCollecting),
		Track:            track,
		SnippetIndex:     0,
		SnippetStartedAt: now,
		guesses:          make(map[string][]heardleGuess),
		correct:          make(map[string]heardleGuess),
	}
	round.StartedAt = now

	m.deps.ClearRoundTimer(room, stage)
	room.rounds[stage] = round
	m.armSnippetTimer(room, stage, round)
	m.deps.BroadcastGameState(room)
	return nil
}

func (m *heardle) armSnippetTimer(room *Room, stage int, round *HeardleRound) {
	roundID := round.ID
	snippet := round.SnippetIndex
	m.deps.ScheduleRoundTimer(room, stage, heardleGuessWindow, func(current *Room) {
		live, err := roundFor[*HeardleRound](current, stage)
		if err != nil || live.ID != roundID || live.SnippetIndex != snippet {
			return
		}
		m.advanceLocked(current, stage, live)
	})
}

type heardleGuessPayload struct {
	TrackID    string `json:"trackId"`
	TrackName  string `json:"trackName"`
	ArtistName string `json:"artistName"`
	AlbumName  string `json:"albumName"`
}

func (m *heardle) SubmitAnswer(ctx context.Context, code, socketID string, payload json.RawMessage) error {
	var body heardleGuessPayload
	if err := json.Unmarshal(payload, &body); err != nil {
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
		round, err := roundFor[*HeardleRound](room, stage)
		if err != nil {
			return err
		}
		if round.Status == RoundRevealed {
			return ErrRoundRevealed
		}
		if _, isPlayer := room.Player(socketID); !isPlayer {
			return ErrNotInRoom
		}
		if _, done := round.correct[socketID]; done {
			return ErrAlreadyCorrect
		}
		if round.hasGuessedSnippet(socketID, round.SnippetIndex) {
			return ErrAlreadyGuessed
		}

		guess := heardleGuess{
			SnippetIndex: round.SnippetIndex,
			TrackID:      body.TrackID,
			TrackName:    body.TrackName,
			ArtistName:   body.ArtistName,
			AlbumName:    body.AlbumName,
			Outcome:      evaluateHeardleGuess(round.Track, body),
			At:           time.Now(),
		}
		if guess.Outcome == heardleCorrect {
			guess.Points = heardleSnippetScore(round.SnippetIndex, round.SnippetStartedAt, guess.At)
			round.correct[socketID] = guess
		}
		round.guesses[socketID] = append(round.guesses[socketID], guess)
		m.deps.BroadcastGameState(room)

		if m.everyoneDoneWithSnippet(room, round) {
			m.advanceLocked(room, stage, round)
		}
		return nil
	})
}

// evaluateHeardleGuess scores one guess attempt. An exact track-id
// match is correct no matter what else matches; otherwise an album
// name match outranks an artist match, which outranks wrong.
func evaluateHeardleGuess(track music.Track, body heardleGuessPayload) string {
	if body.TrackID != "" && body.TrackID == track.ID {
		return heardleCorrect
	}
	if namesEqual(body.AlbumName, track.AlbumName) {
		return heardleAlbumMatch
	}
	if namesEqual(body.ArtistName, track.ArtistName) {
		return heardleArtistMatch
	}
	return heardleWrong
}

// namesEqual compares case-folded, whitespace-collapsed names.
func namesEqual(a, b string) bool {
	return a != "" && b != "" && normalizeName(a) == normalizeName(b)
}

func normalizeName(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// heardleSnippetScore decays linearly from the snippet's tier max to
// the floor across the guess window.
func heardleSnippetScore(snippet int, snippetStart, guessedAt time.Time) int {
	if snippet >= len(heardleTierMaxPoints) {
		snippet = len(heardleTierMaxPoints) - 1
	}
	maxPoints := float64(heardleTierMaxPoints[snippet])
	elapsed := guessedAt.Sub(snippetStart)
	if elapsed < 0 {
		elapsed = 0
	}
	fraction := float64(elapsed) / float64(heardleGuessWindow)
	if fraction > 1 {
		fraction = 1
	}
	points := maxPoints - fraction*(maxPoints-heardleMinPoints)
	if points < heardleMinPoints {
		return heardleMinPoints
	}
	return int(points)
}

// everyoneDoneWithSnippet reports whether every current player has
// either already guessed the song or used up their attempt for the
// current snippet.
func (m *heardle) everyoneDoneWithSnippet(room *Room, round *HeardleRound) bool {
	players := room.Players()
	if len(players) == 0 {
		return false
	}
	for _, p := range players {
		if _, done := round.correct[p.SocketID]; done {
			continue
		}
		if !round.hasGuessedSnippet(p.SocketID, round.SnippetIndex) {
			return false
		}
	}
	return true
}

func (m *heardle) everyoneCorrect(room *Room, round *HeardleRound) bool {
	players := room.Players()
	if len(players) == 0 {
		return false
	}
	for _, p := range players {
		if _, done := round.correct[p.SocketID]; !done {
			return false
		}
	}
	return true
}

// advanceLocked moves to the next snippet, or reveals when the ladder
// is exhausted or nobody is left guessing. Timer expiry and the
// everyone-guessed fast path both land here. Lock held.
func (m *heardle) advanceLocked(room *Room, stage int, round *HeardleRound) {
	if round.Status == RoundRevealed {
		return
	}
	if m.everyoneCorrect(room, round) || round.SnippetIndex+1 >= len(heardleSnippetLengths) {
		m.revealLocked(room, stage, round)
		return
	}
	round.SnippetIndex++
	round.SnippetStartedAt = time.Now()
	m.armSnippetTimer(room, stage, round)
	m.deps.BroadcastGameState(room)
}

func (m *heardle) Reveal(ctx context.Context, code, socketID string) error {
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
		round, err := roundFor[*HeardleRound](room, stage)
		if err != nil {
			return err
		}
		m.revealLocked(room, stage, round)
		return nil
	})
}

func (m *heardle) revealLocked(room *Room, stage int, round *HeardleRound) {
	if round.Status == RoundRevealed {
		m.deps.BroadcastGameState(room)
		return
	}
	m.deps.ClearRoundTimer(room, stage)

	results := &HeardleResults{Track: round.Track, Guesses: round.guesses}
	var grants []AwardGrant
	for socketID, winning := range round.correct {
		results.Winners = append(results.Winners, HeardleWinner{
			SocketID:     socketID,
			SnippetIndex: winning.SnippetIndex,
			Points:       winning.Points,
		})
		grants = append(grants, AwardGrant{
			SocketID: socketID,
			Points:   winning.Points,
			Reason:   "correct",
			Meta: map[string]any{
				"minigame":     m.ID(),
				"snippetIndex": winning.SnippetIndex,
				"track":        round.Track.Name,
			},
		})
	}

	round.Results = results
	round.Status = RoundRevealed
	round.RevealedAt = time.Now()
	m.deps.ApplyAwards(room, grants)
	m.deps.BroadcastGameState(room)
}
