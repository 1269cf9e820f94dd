package game

import "time"

// TimeScoreOpts tunes the linear answer-speed decay. Decay is the
// number of points lost per elapsed millisecond.
type TimeScoreOpts struct {
	MaxPoints int
	MinPoints int
	Decay     float64
}

var defaultTimeScore = TimeScoreOpts{
	MaxPoints: 1000,
	MinPoints: 10,
	Decay:     0.05,
}

func (o TimeScoreOpts) orDefaults() TimeScoreOpts {
	if o.MaxPoints == 0 {
		o.MaxPoints = defaultTimeScore.MaxPoints
	}
	if o.MinPoints == 0 {
		o.MinPoints = defaultTimeScore.MinPoints
	}
	if o.Decay == 0 {
		o.Decay = defaultTimeScore.Decay
	}
	return o
}

// ComputeTimeScore awards faster answers more points, decaying linearly
// from MaxPoints and flooring at MinPoints. A winner with no recorded
// submission time still gets MinPoints: anyone being awarded at all
// gets credit for participating.
func ComputeTimeScore(startedAt, submittedAt time.Time, hasSubmission bool, opts TimeScoreOpts) int {
	opts = opts.orDefaults()
	if !hasSubmission || submittedAt.Before(startedAt) {
		return opts.MinPoints
	}
	elapsed := float64(submittedAt.Sub(startedAt).Milliseconds())
	points := float64(opts.MaxPoints) - opts.Decay*elapsed
	if points < float64(opts.MinPoints) {
		return opts.MinPoints
	}
	return int(points)
}

// AwardGrant is one point award produced by a reveal.
type AwardGrant struct {
	SocketID string
	Points   int
	Reason   string
	Meta     map[string]any
}

// applyAwards folds reveal awards into the room scoreboard, creating
// entries on first award and keeping a bounded most-recent-first
// history for UI attribution. Empty or malformed grants are skipped,
// never an error. Must be called with the registry lock held.
func applyAwards(room *Room, grants []AwardGrant) {
	now := time.Now()
	for _, grant := range grants {
		if grant.SocketID == "" {
			continue
		}
		entry, ok := room.scoreboard[grant.SocketID]
		if !ok {
			entry = &ScoreboardEntry{}
			room.scoreboard[grant.SocketID] = entry
		}
		entry.Points += grant.Points
		entry.TotalAwards++
		if grant.Reason == "correct" {
			entry.CorrectAnswers++
		}
		award := Award{Points: grant.Points, Reason: grant.Reason, Meta: grant.Meta, At: now}
		entry.Awards = append([]Award{award}, entry.Awards...)
		if len(entry.Awards) > maxAwardHistory {
			entry.Awards = entry.Awards[:maxAwardHistory]
		}
	}
}
