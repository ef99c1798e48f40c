package stats

import (
	"sort"
	"strings"

	"merita.org/internal/ledger"
	"merita.org/internal/obs"
)

// leaderboardSize caps the ranking at the top entries the dashboard shows.
const leaderboardSize = 8

// Entry is one ranked leaderboard row.
type Entry struct {
	Rank  int    `json:"rank"`
	Name  string `json:"name"`
	Total int64  `json:"total"`
}

// Leaderboard groups valid tokens by trimmed receiver name and ranks the
// summed amounts. Pending tokens count too: the board rewards being
// recognized, not confirmed receipt. Ties keep encounter order.
func Leaderboard(tokens []ledger.Token) (entries []Entry) {
	defer func() {
		if r := recover(); r != nil {
			obs.AggregationSkip("leaderboard")
			obs.LogSkip("leaderboard", "fold panic", map[string]any{"panic": r})
			entries = []Entry{}
		}
	}()

	totals := make(map[string]int64)
	order := make([]string, 0)
	for _, t := range tokens {
		if !t.Valid() {
			obs.AggregationSkip("leaderboard")
			obs.LogSkip("leaderboard", "invalid token", map[string]any{"token_id": t.ID})
			continue
		}
		name := strings.TrimSpace(t.ReceiverName)
		if name == "" {
			continue
		}
		if _, seen := totals[name]; !seen {
			order = append(order, name)
		}
		totals[name] += t.Amount
	}

	sort.SliceStable(order, func(i, j int) bool {
		return totals[order[i]] > totals[order[j]]
	})
	if len(order) > leaderboardSize {
		order = order[:leaderboardSize]
	}

	entries = make([]Entry, len(order))
	for i, name := range order {
		entries[i] = Entry{Rank: i + 1, Name: name, Total: totals[name]}
	}
	return entries
}
