package ledger

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Service defines token ledger and batch roster operations.
//
// ListTokens returns tokens newest-first. Derived views no longer depend
// on that order for correctness, but it is the documented read contract
// and what clients render.
type Service interface {
	CreateToken(ctx context.Context, in CreateTokenInput) (Token, error)
	GetToken(ctx context.Context, id int64) (Token, error)
	// AcceptToken transitions pending -> accepted. Accepting an already
	// accepted token is a tolerated no-op; authorization for who may call
	// this lives in the acceptance workflow, not here.
	AcceptToken(ctx context.Context, id int64) (Token, error)
	// ListTokens returns tokens for one batch, or all tokens when
	// batchID is zero, newest-first.
	ListTokens(ctx context.Context, batchID int64) ([]Token, error)

	GetMember(ctx context.Context, id int64) (BatchMember, error)
	ListMembers(ctx context.Context, batchID int64) ([]BatchMember, error)
	// RenameMember changes the roster name and repairs the denormalized
	// receiver_name on every token that soft-links to the member within
	// its batch (legacy member-id link, email link, claimed-user link).
	RenameMember(ctx context.Context, id int64, newName string) (BatchMember, error)
	// ClaimMember links an unlinked roster entry to an account.
	ClaimMember(ctx context.Context, id int64, userID string) (BatchMember, error)
}

// InMemory implements Service with in-process concurrency safety. Used by
// tests and when no database is configured.
type InMemory struct {
	mu      sync.RWMutex
	nextTok int64
	nextMem int64
	tokens  map[int64]*Token
	members map[int64]*BatchMember
	now     func() time.Time
}

// NewInMemory creates an empty ledger.
func NewInMemory() *InMemory {
	return &InMemory{
		tokens:  make(map[int64]*Token),
		members: make(map[int64]*BatchMember),
		now:     time.Now,
	}
}

// SetClock overrides the time source, for tests.
func (s *InMemory) SetClock(fn func() time.Time) {
	if fn != nil {
		s.now = fn
	}
}

func (s *InMemory) CreateToken(ctx context.Context, in CreateTokenInput) (Token, error) {
	in, err := in.Sanitize()
	if err != nil {
		return Token{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextTok++
	t := &Token{
		ID:            s.nextTok,
		BatchID:       in.BatchID,
		FromUserID:    in.FromUserID,
		ToUserID:      in.ToUserID,
		SenderName:    in.SenderName,
		ReceiverName:  in.ReceiverName,
		ReceiverEmail: in.ReceiverEmail,
		Amount:        in.Amount,
		Category:      in.Category,
		Message:       in.Message,
		Status:        StatusPending,
		CreatedAt:     s.now().UTC(),
	}
	s.tokens[t.ID] = t
	return *t, nil
}

func (s *InMemory) GetToken(ctx context.Context, id int64) (Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tokens[id]
	if !ok {
		return Token{}, ErrNotFound
	}
	return *t, nil
}

func (s *InMemory) AcceptToken(ctx context.Context, id int64) (Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[id]
	if !ok {
		return Token{}, ErrNotFound
	}
	t.Status = StatusAccepted
	return *t, nil
}

func (s *InMemory) ListTokens(ctx context.Context, batchID int64) ([]Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]Token, 0, len(s.tokens))
	for _, t := range s.tokens {
		if batchID != 0 && t.BatchID != batchID {
			continue
		}
		res = append(res, *t)
	}
	// newest-first, id as tie-break for equal timestamps
	sort.Slice(res, func(i, j int) bool {
		if res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].ID > res[j].ID
		}
		return res[i].CreatedAt.After(res[j].CreatedAt)
	})
	return res, nil
}

// AddMember seeds a roster entry. Batch management proper is external;
// tests and the in-memory mode need a way to populate the roster.
func (s *InMemory) AddMember(m BatchMember) BatchMember {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextMem++
	if m.ID == 0 {
		m.ID = s.nextMem
	}
	m.Email = strings.ToLower(strings.TrimSpace(m.Email))
	cp := m
	s.members[m.ID] = &cp
	return m
}

func (s *InMemory) GetMember(ctx context.Context, id int64) (BatchMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.members[id]
	if !ok {
		return BatchMember{}, ErrNotFound
	}
	return *m, nil
}

func (s *InMemory) ListMembers(ctx context.Context, batchID int64) ([]BatchMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]BatchMember, 0, len(s.members))
	for _, m := range s.members {
		if batchID != 0 && m.FolderID != batchID {
			continue
		}
		res = append(res, *m)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

func (s *InMemory) RenameMember(ctx context.Context, id int64, newName string) (BatchMember, error) {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return BatchMember{}, ErrEmptyName
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[id]
	if !ok {
		return BatchMember{}, ErrNotFound
	}
	m.Name = newName

	// Repair the denormalized receiver label on every token that
	// soft-links to this member. Each predicate converges to the same
	// final string, so order does not matter.
	legacyID := strconv.FormatInt(m.ID, 10)
	for _, t := range s.tokens {
		if t.BatchID != m.FolderID {
			continue
		}
		switch {
		case t.ToUserID == legacyID,
			m.Email != "" && strings.EqualFold(t.ReceiverEmail, m.Email),
			m.UserID != "" && t.ToUserID == m.UserID:
			t.ReceiverName = newName
		}
	}
	return *m, nil
}

func (s *InMemory) ClaimMember(ctx context.Context, id int64, userID string) (BatchMember, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return BatchMember{}, ErrInvalidUser
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[id]
	if !ok {
		return BatchMember{}, ErrNotFound
	}
	if m.UserID != "" && m.UserID != userID {
		return BatchMember{}, ErrAlreadyClaimed
	}
	m.UserID = userID
	return *m, nil
}
