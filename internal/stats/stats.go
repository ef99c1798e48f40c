// Package stats derives per-identity statistics and the leaderboard from
// the full token set. Everything here is a fold over in-memory tokens:
// no I/O, no cache, recomputed on every read so results are always
// consistent with the ledger. The fold absorbs per-record faults: one
// corrupt row reduces the numbers, it never breaks the dashboard.
package stats

import (
	"time"

	"merita.org/internal/identity"
	"merita.org/internal/ledger"
	"merita.org/internal/obs"
)

// LevelStep is the cumulative accepted amount required per level.
const LevelStep = 1_000_000

// Level is a pure function of the cumulative total, recomputed and
// never stored.
type Level struct {
	Level     int     `json:"level"`
	Progress  float64 `json:"progress"`
	Remaining int64   `json:"remaining"`
}

// LevelFor computes level, percentage progress within the level, and the
// amount remaining to the next level.
func LevelFor(cumulative int64) Level {
	if cumulative < 0 {
		cumulative = 0
	}
	lvl := int(cumulative/LevelStep) + 1
	return Level{
		Level:     lvl,
		Progress:  float64(cumulative%LevelStep) / LevelStep * 100,
		Remaining: int64(lvl)*LevelStep - cumulative,
	}
}

// Snapshot is the per-identity view the dashboard renders.
type Snapshot struct {
	Received            int64  `json:"received"`
	Pending             int64  `json:"pending"`
	PendingCount        int    `json:"pending_count"`
	LatestPendingSender string `json:"latest_pending_sender,omitempty"`
	Given               int64  `json:"given"`
	Cumulative          int64  `json:"cumulative"`
	Today               int64  `json:"today"`
	ThisWeek            int64  `json:"this_week"`
	Level               Level  `json:"level"`
}

// Compute folds the token set into a snapshot for the identity. The
// roster must belong to the batch being viewed; it feeds the
// linked-name matching signal. Malformed rows are counted, logged and
// skipped. Compute never fails: on an internal fault it returns a
// zeroed snapshot, because partial data beats a crashed view.
func Compute(tokens []ledger.Token, id identity.Identity, roster []ledger.BatchMember, now time.Time) (snap Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			obs.AggregationSkip("stats")
			obs.LogSkip("stats", "fold panic", map[string]any{"panic": r})
			snap = Snapshot{Level: LevelFor(0)}
		}
	}()

	linked := identity.LinkedNames(roster, id)
	dayStart := startOfDay(now)
	weekStart := startOfWeek(now)

	var (
		latestPendingAt   time.Time
		latestPendingSeen bool
	)
	for _, t := range tokens {
		if !t.Valid() {
			obs.AggregationSkip("stats")
			obs.LogSkip("stats", "invalid token", map[string]any{"token_id": t.ID})
			continue
		}

		if identity.IsRecipient(t, id, linked) {
			switch t.Status {
			case ledger.StatusPending:
				snap.Pending += t.Amount
				snap.PendingCount++
				// explicit max-by-created-at: "latest" must not depend
				// on the caller's list order, and an empty sender name
				// must not look like the unset state
				if !latestPendingSeen || t.CreatedAt.After(latestPendingAt) {
					snap.LatestPendingSender = t.SenderName
					latestPendingAt = t.CreatedAt
					latestPendingSeen = true
				}
			case ledger.StatusAccepted:
				snap.Received += t.Amount
				snap.Cumulative += t.Amount
				if !t.CreatedAt.IsZero() {
					if !t.CreatedAt.Before(dayStart) {
						snap.Today += t.Amount
					}
					if !t.CreatedAt.Before(weekStart) {
						snap.ThisWeek += t.Amount
					}
				}
			}
		}

		// independent of the recipient fold: a token counts toward the
		// sender's given total no matter whose view this is
		if identity.IsSender(t, id) {
			snap.Given += t.Amount
		}
	}

	snap.Level = LevelFor(snap.Cumulative)
	return snap
}

// startOfDay returns midnight of the calendar day containing now, in
// now's location.
func startOfDay(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, now.Location())
}

// startOfWeek returns midnight of the most recent Sunday.
func startOfWeek(now time.Time) time.Time {
	return startOfDay(now).AddDate(0, 0, -int(now.Weekday()))
}
