package ledger

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCreateTokenStampsPending(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	tok, err := s.CreateToken(ctx, CreateTokenInput{
		BatchID:      1,
		FromUserID:   "u1",
		SenderName:   "Sender",
		ReceiverName: "  Kim  ",
		Amount:       30000,
		Category:     "insight",
	})
	if err != nil {
		t.Fatal(err)
	}
	if tok.Status != StatusPending {
		t.Fatalf("expected pending, got %s", tok.Status)
	}
	if tok.ReceiverName != "Kim" {
		t.Fatalf("receiver name not trimmed: %q", tok.ReceiverName)
	}
	if tok.ID <= 0 {
		t.Fatalf("expected positive id, got %d", tok.ID)
	}
}

func TestCreateTokenValidation(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	if _, err := s.CreateToken(ctx, CreateTokenInput{BatchID: 1, ReceiverName: "   ", Amount: 100}); !errors.Is(err, ErrEmptyReceiver) {
		t.Fatalf("expected ErrEmptyReceiver, got %v", err)
	}
	if _, err := s.CreateToken(ctx, CreateTokenInput{BatchID: 1, ReceiverName: "Kim", Amount: 0}); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := s.CreateToken(ctx, CreateTokenInput{BatchID: 1, ReceiverName: "Kim", Amount: -5}); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestCreateTokenSanitizesEmail(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	tok, _ := s.CreateToken(ctx, CreateTokenInput{
		BatchID: 1, ReceiverName: "Kim", Amount: 100, ReceiverEmail: " KIM@Example.COM ",
	})
	if tok.ReceiverEmail != "kim@example.com" {
		t.Fatalf("email not lower-cased: %q", tok.ReceiverEmail)
	}

	tok, _ = s.CreateToken(ctx, CreateTokenInput{
		BatchID: 1, ReceiverName: "Kim", Amount: 100, ReceiverEmail: "not-an-email",
	})
	if tok.ReceiverEmail != "" {
		t.Fatalf("malformed email should be discarded, got %q", tok.ReceiverEmail)
	}
}

func TestAcceptTokenIsTerminalAndTolerated(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	tok, _ := s.CreateToken(ctx, CreateTokenInput{BatchID: 1, ReceiverName: "Kim", Amount: 100})

	first, err := s.AcceptToken(ctx, tok.ID)
	if err != nil {
		t.Fatal(err)
	}
	if first.Status != StatusAccepted {
		t.Fatalf("expected accepted, got %s", first.Status)
	}

	// second accept is a tolerated no-op style update
	second, err := s.AcceptToken(ctx, tok.ID)
	if err != nil {
		t.Fatalf("second accept must not error: %v", err)
	}
	if second.Status != StatusAccepted {
		t.Fatalf("expected accepted, got %s", second.Status)
	}
}

func TestAcceptTokenNotFound(t *testing.T) {
	s := NewInMemory()
	if _, err := s.AcceptToken(context.Background(), 404); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListTokensNewestFirstAndBatchScoped(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		tick := now.Add(time.Duration(i) * time.Minute)
		s.SetClock(func() time.Time { return tick })
		if _, err := s.CreateToken(ctx, CreateTokenInput{BatchID: 1, ReceiverName: "Kim", Amount: int64(100 + i)}); err != nil {
			t.Fatal(err)
		}
	}
	s.SetClock(func() time.Time { return now })
	if _, err := s.CreateToken(ctx, CreateTokenInput{BatchID: 2, ReceiverName: "Sam", Amount: 999}); err != nil {
		t.Fatal(err)
	}

	list, err := s.ListTokens(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 tokens for batch 1, got %d", len(list))
	}
	for i := 1; i < len(list); i++ {
		if list[i].CreatedAt.After(list[i-1].CreatedAt) {
			t.Fatal("tokens not newest-first")
		}
	}

	all, _ := s.ListTokens(ctx, 0)
	if len(all) != 4 {
		t.Fatalf("expected 4 tokens total, got %d", len(all))
	}
}

func TestRenameMemberRepairsSoftLinkedTokens(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	m := s.AddMember(BatchMember{FolderID: 1, Name: "A", Email: "a@example.com", UserID: "u7"})
	s.AddMember(BatchMember{FolderID: 1, Name: "Zed", Email: "z@example.com"})

	byEmail, _ := s.CreateToken(ctx, CreateTokenInput{BatchID: 1, ReceiverName: "A", ReceiverEmail: "A@Example.com", Amount: 100})
	byUserID, _ := s.CreateToken(ctx, CreateTokenInput{BatchID: 1, ReceiverName: "A", ToUserID: "u7", Amount: 100})
	byLegacyID, _ := s.CreateToken(ctx, CreateTokenInput{BatchID: 1, ReceiverName: "A", ToUserID: "1", Amount: 100})
	untouched, _ := s.CreateToken(ctx, CreateTokenInput{BatchID: 1, ReceiverName: "Zed", ReceiverEmail: "z@example.com", Amount: 100})
	otherBatch, _ := s.CreateToken(ctx, CreateTokenInput{BatchID: 2, ReceiverName: "A", ReceiverEmail: "a@example.com", Amount: 100})

	if _, err := s.RenameMember(ctx, m.ID, "B"); err != nil {
		t.Fatal(err)
	}

	for _, id := range []int64{byEmail.ID, byUserID.ID, byLegacyID.ID} {
		tok, _ := s.GetToken(ctx, id)
		if tok.ReceiverName != "B" {
			t.Fatalf("token %d not repaired: %q", id, tok.ReceiverName)
		}
	}
	tok, _ := s.GetToken(ctx, untouched.ID)
	if tok.ReceiverName != "Zed" {
		t.Fatalf("unrelated token renamed: %q", tok.ReceiverName)
	}
	tok, _ = s.GetToken(ctx, otherBatch.ID)
	if tok.ReceiverName != "A" {
		t.Fatalf("rename leaked across batches: %q", tok.ReceiverName)
	}
}

func TestRenameMemberValidation(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	m := s.AddMember(BatchMember{FolderID: 1, Name: "A"})

	if _, err := s.RenameMember(ctx, m.ID, "   "); !errors.Is(err, ErrEmptyName) {
		t.Fatalf("expected ErrEmptyName, got %v", err)
	}
	if _, err := s.RenameMember(ctx, 404, "B"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestClaimMember(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	m := s.AddMember(BatchMember{FolderID: 1, Name: "Kim", Email: "kim@example.com"})

	claimed, err := s.ClaimMember(ctx, m.ID, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if claimed.UserID != "u1" {
		t.Fatalf("expected linked user, got %q", claimed.UserID)
	}

	// re-claiming with the same account is fine
	if _, err := s.ClaimMember(ctx, m.ID, "u1"); err != nil {
		t.Fatalf("idempotent claim failed: %v", err)
	}
	// a different account cannot take over the link
	if _, err := s.ClaimMember(ctx, m.ID, "u2"); !errors.Is(err, ErrAlreadyClaimed) {
		t.Fatalf("expected ErrAlreadyClaimed, got %v", err)
	}
}
