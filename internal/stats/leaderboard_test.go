package stats

import (
	"fmt"
	"testing"

	"merita.org/internal/ledger"
)

func TestLeaderboardGroupsByTrimmedName(t *testing.T) {
	tokens := []ledger.Token{
		{ID: 1, ReceiverName: "Kim", Amount: 100, Status: ledger.StatusAccepted},
		{ID: 2, ReceiverName: "  Kim  ", Amount: 200, Status: ledger.StatusPending},
		{ID: 3, ReceiverName: "Alex", Amount: 250, Status: ledger.StatusAccepted},
	}

	entries := Leaderboard(tokens)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Name != "Kim" || entries[0].Total != 300 || entries[0].Rank != 1 {
		t.Fatalf("unexpected first entry: %+v", entries[0])
	}
	if entries[1].Name != "Alex" || entries[1].Total != 250 || entries[1].Rank != 2 {
		t.Fatalf("unexpected second entry: %+v", entries[1])
	}
}

func TestLeaderboardCountsPending(t *testing.T) {
	tokens := []ledger.Token{
		{ID: 1, ReceiverName: "Kim", Amount: 500, Status: ledger.StatusPending},
	}
	entries := Leaderboard(tokens)
	if len(entries) != 1 || entries[0].Total != 500 {
		t.Fatalf("pending tokens must count: %+v", entries)
	}
}

func TestLeaderboardSkipsInvalidAndNameless(t *testing.T) {
	tokens := []ledger.Token{
		{ID: 0, ReceiverName: "Ghost", Amount: 9999, Status: ledger.StatusAccepted},
		{ID: 1, ReceiverName: "   ", Amount: 9999, Status: ledger.StatusAccepted},
		{ID: 2, ReceiverName: "Kim", Amount: 100, Status: ledger.StatusAccepted},
	}
	entries := Leaderboard(tokens)
	if len(entries) != 1 || entries[0].Name != "Kim" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}

func TestLeaderboardTopEight(t *testing.T) {
	var tokens []ledger.Token
	for i := 1; i <= 12; i++ {
		tokens = append(tokens, ledger.Token{
			ID:           int64(i),
			ReceiverName: fmt.Sprintf("member-%02d", i),
			Amount:       int64(i * 100),
			Status:       ledger.StatusAccepted,
		})
	}

	entries := Leaderboard(tokens)
	if len(entries) != 8 {
		t.Fatalf("expected 8 entries, got %d", len(entries))
	}
	if entries[0].Name != "member-12" || entries[0].Total != 1200 {
		t.Fatalf("unexpected leader: %+v", entries[0])
	}
	if entries[7].Name != "member-05" || entries[7].Rank != 8 {
		t.Fatalf("unexpected last entry: %+v", entries[7])
	}
}

func TestLeaderboardTiesKeepEncounterOrder(t *testing.T) {
	tokens := []ledger.Token{
		{ID: 1, ReceiverName: "First", Amount: 100, Status: ledger.StatusAccepted},
		{ID: 2, ReceiverName: "Second", Amount: 100, Status: ledger.StatusAccepted},
	}
	entries := Leaderboard(tokens)
	if entries[0].Name != "First" || entries[1].Name != "Second" {
		t.Fatalf("tie order not stable: %+v", entries)
	}
}

func TestLeaderboardEmpty(t *testing.T) {
	if entries := Leaderboard(nil); len(entries) != 0 {
		t.Fatalf("expected empty leaderboard, got %+v", entries)
	}
}
