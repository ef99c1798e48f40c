// Package identity resolves which account a token's soft-linked
// recipient (and denormalized sender) refers to. Matching is a pure
// function over explicit arguments so it stays trivially unit-testable:
// the requesting identity and the batch roster are always passed in,
// never read from ambient state.
package identity

import (
	"strings"

	"merita.org/internal/ledger"
)

// Identity is an authenticated account as supplied by the external auth
// subsystem. Empty strings stand for absent fields.
type Identity struct {
	ID        string `json:"id"`
	Email     string `json:"email,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// FullName returns "First Last" with either part optional.
func (id Identity) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(id.FirstName) + " " + strings.TrimSpace(id.LastName))
}

// nameCandidates are the labels a free-text name field may carry for
// this identity. Used by the last-resort matching rule.
func nameCandidates(id Identity) []string {
	out := make([]string, 0, 4)
	for _, c := range []string{id.FirstName, id.Email, id.ID, id.FullName()} {
		if strings.TrimSpace(c) != "" {
			out = append(out, c)
		}
	}
	return out
}

// LinkedNames collects the lower-cased roster names of members whose
// email matches the identity. Callers must pass the roster of a single
// batch: a name match must never contaminate across batches.
func LinkedNames(members []ledger.BatchMember, id Identity) map[string]struct{} {
	email := strings.ToLower(strings.TrimSpace(id.Email))
	if email == "" {
		return nil
	}
	var set map[string]struct{}
	for _, m := range members {
		if m.Email == "" || strings.ToLower(m.Email) != email {
			continue
		}
		if set == nil {
			set = make(map[string]struct{})
		}
		set[strings.ToLower(strings.TrimSpace(m.Name))] = struct{}{}
	}
	return set
}

// IsRecipient reports whether the token's recipient resolves to the
// identity. Signals are tried in fixed priority order: the verified
// email is authoritative, the direct user link next, and free-text name
// matches last because names are not unique across a batch.
func IsRecipient(t ledger.Token, id Identity, linkedNames map[string]struct{}) bool {
	if !t.Valid() {
		return false
	}

	// 1. verified email
	if t.ReceiverEmail != "" && id.Email != "" && strings.EqualFold(t.ReceiverEmail, id.Email) {
		return true
	}
	// 2. direct user link
	if t.ToUserID != "" && t.ToUserID == id.ID {
		return true
	}
	// 3. roster names linked to the identity's email
	name := strings.ToLower(strings.TrimSpace(t.ReceiverName))
	if name != "" {
		if _, ok := linkedNames[name]; ok {
			return true
		}
	}
	// 4. free-text label match
	for _, c := range nameCandidates(id) {
		if strings.EqualFold(t.ReceiverName, c) {
			return true
		}
	}
	return false
}

// IsSender reports whether the token was sent by the identity. The
// sender name is denormalized at creation and never re-synced, so the
// name signal here carries weaker guarantees than the hard user link.
func IsSender(t ledger.Token, id Identity) bool {
	if !t.Valid() {
		return false
	}
	if t.FromUserID != "" && t.FromUserID == id.ID {
		return true
	}
	for _, c := range nameCandidates(id) {
		if strings.EqualFold(t.SenderName, c) {
			return true
		}
	}
	return false
}
