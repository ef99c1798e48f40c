package accept

import (
	"context"
	"errors"
	"testing"

	"merita.org/internal/identity"
	"merita.org/internal/ledger"
)

var kim = identity.Identity{ID: "u1", Email: "kim@example.com", FirstName: "Kim", LastName: "Park"}

func TestAcceptAsRecipient(t *testing.T) {
	store := ledger.NewInMemory()
	svc := NewService(store)
	ctx := context.Background()

	tok, err := store.CreateToken(ctx, ledger.CreateTokenInput{
		BatchID:       1,
		ReceiverName:  "Kim",
		ReceiverEmail: "kim@example.com",
		Amount:        30_000,
	})
	if err != nil {
		t.Fatal(err)
	}

	accepted, err := svc.Accept(ctx, tok.ID, kim)
	if err != nil {
		t.Fatal(err)
	}
	if accepted.Status != ledger.StatusAccepted {
		t.Fatalf("status = %q, want accepted", accepted.Status)
	}
}

func TestAcceptForbiddenForNonRecipient(t *testing.T) {
	store := ledger.NewInMemory()
	svc := NewService(store)
	ctx := context.Background()

	tok, _ := store.CreateToken(ctx, ledger.CreateTokenInput{
		BatchID:       1,
		ReceiverName:  "Alex",
		ReceiverEmail: "alex@example.com",
		Amount:        100,
	})

	if _, err := svc.Accept(ctx, tok.ID, kim); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	// The token stays pending when authorization fails.
	got, _ := store.GetToken(ctx, tok.ID)
	if got.Status != ledger.StatusPending {
		t.Fatalf("status = %q, want pending", got.Status)
	}
}

func TestAcceptNotFound(t *testing.T) {
	svc := NewService(ledger.NewInMemory())
	if _, err := svc.Accept(context.Background(), 404, kim); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAcceptByDirectUserLink(t *testing.T) {
	store := ledger.NewInMemory()
	svc := NewService(store)
	ctx := context.Background()

	tok, _ := store.CreateToken(ctx, ledger.CreateTokenInput{
		BatchID:      1,
		ReceiverName: "someone",
		ToUserID:     "u1",
		Amount:       100,
	})

	if _, err := svc.Accept(ctx, tok.ID, kim); err != nil {
		t.Fatalf("direct user link should authorize: %v", err)
	}
}

func TestAcceptByLinkedRosterName(t *testing.T) {
	store := ledger.NewInMemory()
	svc := NewService(store)
	ctx := context.Background()

	store.AddMember(ledger.BatchMember{FolderID: 1, Name: "Kimmy", Email: "kim@example.com"})
	tok, _ := store.CreateToken(ctx, ledger.CreateTokenInput{
		BatchID:      1,
		ReceiverName: "Kimmy",
		Amount:       100,
	})

	if _, err := svc.Accept(ctx, tok.ID, kim); err != nil {
		t.Fatalf("roster-linked name should authorize: %v", err)
	}

	// The same nickname in a different batch must not authorize.
	other, _ := store.CreateToken(ctx, ledger.CreateTokenInput{
		BatchID:      2,
		ReceiverName: "Kimmy",
		Amount:       100,
	})
	if _, err := svc.Accept(ctx, other.ID, kim); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden across batches, got %v", err)
	}
}

func TestAcceptReplayStaysAccepted(t *testing.T) {
	store := ledger.NewInMemory()
	svc := NewService(store)
	ctx := context.Background()

	tok, _ := store.CreateToken(ctx, ledger.CreateTokenInput{
		BatchID:       1,
		ReceiverName:  "Kim",
		ReceiverEmail: "kim@example.com",
		Amount:        100,
	})

	if _, err := svc.Accept(ctx, tok.ID, kim); err != nil {
		t.Fatal(err)
	}
	again, err := svc.Accept(ctx, tok.ID, kim)
	if err != nil {
		t.Fatalf("replayed accept should succeed: %v", err)
	}
	if again.Status != ledger.StatusAccepted {
		t.Fatalf("status = %q, want accepted", again.Status)
	}

	// Authorization still runs on the replay.
	alex := identity.Identity{ID: "u2", Email: "alex@example.com", FirstName: "Alex"}
	if _, err := svc.Accept(ctx, tok.ID, alex); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden on replay by stranger, got %v", err)
	}
}
