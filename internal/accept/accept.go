// Package accept orchestrates the one-shot token acceptance transition:
// look the token up, check the caller is its recipient, then delegate
// the state change to the ledger. The ledger tolerates re-accepting an
// accepted token; the authorization check here runs on every call.
package accept

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"merita.org/internal/audit"
	"merita.org/internal/identity"
	"merita.org/internal/ledger"
	"merita.org/internal/obs"
)

// ErrForbidden is returned when the caller is not the token's recipient.
var ErrForbidden = errors.New("you can only accept tokens sent to you")

// Service wires the ledger and the identity matcher.
type Service struct {
	store ledger.Service
}

// NewService constructs the acceptance workflow.
func NewService(store ledger.Service) *Service {
	return &Service{store: store}
}

// Accept performs the pending -> accepted transition for the requesting
// identity. Because acceptance is a single-row update keyed by primary
// id, two concurrent calls converge to the same terminal state.
func (s *Service) Accept(ctx context.Context, tokenID int64, id identity.Identity) (ledger.Token, error) {
	t, err := s.store.GetToken(ctx, tokenID)
	if err != nil {
		return ledger.Token{}, err
	}

	// The linked-name signal is scoped to the token's own batch so a
	// roster name never matches across batches.
	roster, err := s.store.ListMembers(ctx, t.BatchID)
	if err != nil {
		return ledger.Token{}, fmt.Errorf("load roster: %w", err)
	}
	linked := identity.LinkedNames(roster, id)

	directLink := t.ToUserID != "" && t.ToUserID == id.ID
	if !identity.IsRecipient(t, id, linked) && !directLink {
		return ledger.Token{}, ErrForbidden
	}

	wasPending := t.Status == ledger.StatusPending

	updated, err := s.store.AcceptToken(ctx, tokenID)
	if err != nil {
		return ledger.Token{}, err
	}

	if wasPending {
		obs.TokenAccepted()
	}
	_ = audit.LogEvent(ctx, "token.accept", map[string]any{
		"token_id":  strconv.FormatInt(tokenID, 10),
		"batch_id":  strconv.FormatInt(t.BatchID, 10),
		"amount":    strconv.FormatInt(t.Amount, 10),
		"replayed":  !wasPending,
		"recipient": id.ID,
	})
	return updated, nil
}
