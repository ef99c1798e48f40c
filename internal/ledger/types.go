package ledger

import (
	"errors"
	"strings"
	"time"
)

// Status is the token lifecycle state. The only transition is
// pending -> accepted; there is no rejection or cancellation.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
)

// Token is one recognition-of-value ledger entry. The sender is
// hard-linked through FromUserID; the recipient is a soft description
// (ReceiverName / ReceiverEmail / optional ToUserID) because a token may
// target a roster member who has not claimed an account yet. Collapsing
// the recipient to a foreign key would lose that ability.
type Token struct {
	ID            int64     `json:"id"`
	BatchID       int64     `json:"batch_id"`
	FromUserID    string    `json:"from_user_id"`
	ToUserID      string    `json:"to_user_id,omitempty"`
	SenderName    string    `json:"sender_name"`
	ReceiverName  string    `json:"receiver_name"`
	ReceiverEmail string    `json:"receiver_email,omitempty"`
	Amount        int64     `json:"amount"`
	Category      string    `json:"category"`
	Message       string    `json:"message"`
	Status        Status    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

// Valid reports whether the row is usable by matching and aggregation.
// Rows with a non-positive id are malformed and must never crash a
// derived computation; callers skip them.
func (t Token) Valid() bool {
	return t.ID > 0
}

// BatchMember is a roster entry inside one batch ("folder"). UserID is
// empty until the member claims a linked account.
type BatchMember struct {
	ID       int64  `json:"id"`
	FolderID int64  `json:"folder_id"`
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	UserID   string `json:"user_id,omitempty"`
}

var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidAmount  = errors.New("invalid amount (must be > 0)")
	ErrEmptyReceiver  = errors.New("receiver name is required")
	ErrEmptyName      = errors.New("name is required")
	ErrInvalidUser    = errors.New("user id is required")
	ErrAlreadyClaimed = errors.New("member already linked to an account")
)

// CreateTokenInput carries the sender-supplied fields for a new token.
type CreateTokenInput struct {
	BatchID       int64  `json:"batch_id"`
	FromUserID    string `json:"from_user_id"`
	ToUserID      string `json:"to_user_id"`
	SenderName    string `json:"sender_name"`
	ReceiverName  string `json:"receiver_name"`
	ReceiverEmail string `json:"receiver_email"`
	Amount        int64  `json:"amount"`
	Category      string `json:"category"`
	Message       string `json:"message"`
}

// Sanitize normalizes the input and enforces creation invariants:
// the receiver name is trimmed and must be non-empty, the amount must be
// positive, and the receiver email is lower-cased or discarded when it
// does not look like an address. Downstream matching and display depend
// on the non-empty receiver label.
func (in CreateTokenInput) Sanitize() (CreateTokenInput, error) {
	in.ReceiverName = strings.TrimSpace(in.ReceiverName)
	if in.ReceiverName == "" {
		return CreateTokenInput{}, ErrEmptyReceiver
	}
	if in.Amount <= 0 {
		return CreateTokenInput{}, ErrInvalidAmount
	}
	email := strings.ToLower(strings.TrimSpace(in.ReceiverEmail))
	if !strings.Contains(email, "@") {
		email = ""
	}
	in.ReceiverEmail = email
	in.FromUserID = strings.TrimSpace(in.FromUserID)
	in.ToUserID = strings.TrimSpace(in.ToUserID)
	in.SenderName = strings.TrimSpace(in.SenderName)
	return in, nil
}
