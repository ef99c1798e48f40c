package pg

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"merita.org/internal/ledger"
)

// Store implements ledger.Service on PostgreSQL. Every mutation is a
// single-statement atomic update keyed by primary id; the rename repair
// cascade is the one multi-statement path and is built from idempotent
// statements that are safe to retry and interleave.
type Store struct {
	db *sql.DB
}

var _ ledger.Service = (*Store)(nil)

const (
	cascadeAttempts = 3
	cascadeBackoff  = 200 * time.Millisecond
)

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing connection, used by tests.
func NewWithDB(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

const tokenColumns = `id, batch_id, from_user_id, coalesce(to_user_id,''), sender_name,
	receiver_name, coalesce(receiver_email,''), amount, category, message, status, created_at`

func scanToken(row interface{ Scan(...any) error }) (ledger.Token, error) {
	var t ledger.Token
	err := row.Scan(&t.ID, &t.BatchID, &t.FromUserID, &t.ToUserID, &t.SenderName,
		&t.ReceiverName, &t.ReceiverEmail, &t.Amount, &t.Category, &t.Message, &t.Status, &t.CreatedAt)
	return t, err
}

func (s *Store) CreateToken(ctx context.Context, in ledger.CreateTokenInput) (ledger.Token, error) {
	in, err := in.Sanitize()
	if err != nil {
		return ledger.Token{}, err
	}

	row := s.db.QueryRowContext(ctx, `
		insert into tokens(batch_id, from_user_id, to_user_id, sender_name,
			receiver_name, receiver_email, amount, category, message, status)
		values ($1,$2,nullif($3,''),$4,$5,nullif($6,''),$7,$8,$9,'pending')
		returning `+tokenColumns,
		in.BatchID, in.FromUserID, in.ToUserID, in.SenderName,
		in.ReceiverName, in.ReceiverEmail, in.Amount, in.Category, in.Message)
	return scanToken(row)
}

func (s *Store) GetToken(ctx context.Context, id int64) (ledger.Token, error) {
	row := s.db.QueryRowContext(ctx, `select `+tokenColumns+` from tokens where id=$1`, id)
	t, err := scanToken(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Token{}, ledger.ErrNotFound
	}
	if err != nil {
		return ledger.Token{}, err
	}
	return t, nil
}

func (s *Store) AcceptToken(ctx context.Context, id int64) (ledger.Token, error) {
	// Accepting an accepted token rewrites the same terminal value, so
	// concurrent calls converge without coordination.
	row := s.db.QueryRowContext(ctx, `
		update tokens set status='accepted' where id=$1
		returning `+tokenColumns, id)
	t, err := scanToken(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Token{}, ledger.ErrNotFound
	}
	if err != nil {
		return ledger.Token{}, err
	}
	return t, nil
}

func (s *Store) ListTokens(ctx context.Context, batchID int64) ([]ledger.Token, error) {
	// newest-first is the documented read contract
	rows, err := s.db.QueryContext(ctx, `
		select `+tokenColumns+` from tokens
		where ($1 = 0 or batch_id = $1)
		order by created_at desc, id desc
	`, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []ledger.Token
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

const memberColumns = `id, folder_id, name, coalesce(email,''), coalesce(user_id,'')`

func scanMember(row interface{ Scan(...any) error }) (ledger.BatchMember, error) {
	var m ledger.BatchMember
	err := row.Scan(&m.ID, &m.FolderID, &m.Name, &m.Email, &m.UserID)
	return m, err
}

func (s *Store) GetMember(ctx context.Context, id int64) (ledger.BatchMember, error) {
	row := s.db.QueryRowContext(ctx, `select `+memberColumns+` from batch_members where id=$1`, id)
	m, err := scanMember(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.BatchMember{}, ledger.ErrNotFound
	}
	if err != nil {
		return ledger.BatchMember{}, err
	}
	return m, nil
}

func (s *Store) ListMembers(ctx context.Context, batchID int64) ([]ledger.BatchMember, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+memberColumns+` from batch_members
		where ($1 = 0 or folder_id = $1)
		order by id asc
	`, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []ledger.BatchMember
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

func (s *Store) RenameMember(ctx context.Context, id int64, newName string) (ledger.BatchMember, error) {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return ledger.BatchMember{}, ledger.ErrEmptyName
	}

	row := s.db.QueryRowContext(ctx, `
		update batch_members set name=$2 where id=$1
		returning `+memberColumns, id, newName)
	m, err := scanMember(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.BatchMember{}, ledger.ErrNotFound
	}
	if err != nil {
		return ledger.BatchMember{}, err
	}

	// Repair the denormalized receiver label. A transiently failed
	// cascade is an acceptable state (the name converges on retry) but
	// must never be abandoned, hence the bounded retry.
	if err := s.retryCascade(ctx, func() error {
		return s.repairReceiverNames(ctx, m)
	}); err != nil {
		return ledger.BatchMember{}, err
	}
	return m, nil
}

// repairReceiverNames rewrites receiver_name on every token in the
// member's batch that soft-links to the member: by the legacy string
// form of the member id, by email, or by the claimed user id. Each
// statement is idempotent and order-independent.
func (s *Store) repairReceiverNames(ctx context.Context, m ledger.BatchMember) error {
	legacyID := strconv.FormatInt(m.ID, 10)
	if _, err := s.db.ExecContext(ctx, `
		update tokens set receiver_name=$3
		where batch_id=$1 and to_user_id=$2
	`, m.FolderID, legacyID, m.Name); err != nil {
		return err
	}
	if m.Email != "" {
		if _, err := s.db.ExecContext(ctx, `
			update tokens set receiver_name=$3
			where batch_id=$1 and lower(receiver_email)=lower($2)
		`, m.FolderID, m.Email, m.Name); err != nil {
			return err
		}
	}
	if m.UserID != "" {
		if _, err := s.db.ExecContext(ctx, `
			update tokens set receiver_name=$3
			where batch_id=$1 and to_user_id=$2
		`, m.FolderID, m.UserID, m.Name); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) retryCascade(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < cascadeAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(cascadeBackoff):
			}
		}
		if err = fn(); err == nil {
			return nil
		}
	}
	return err
}

func (s *Store) ClaimMember(ctx context.Context, id int64, userID string) (ledger.BatchMember, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ledger.BatchMember{}, ledger.ErrInvalidUser
	}

	// single-statement claim: only unlinked (or re-claiming) rows match
	row := s.db.QueryRowContext(ctx, `
		update batch_members set user_id=$2
		where id=$1 and (user_id is null or user_id='' or user_id=$2)
		returning `+memberColumns, id, userID)
	m, err := scanMember(row)
	if errors.Is(err, sql.ErrNoRows) {
		// distinguish a missing row from an already linked one
		if _, lookupErr := s.GetMember(ctx, id); lookupErr == nil {
			return ledger.BatchMember{}, ledger.ErrAlreadyClaimed
		}
		return ledger.BatchMember{}, ledger.ErrNotFound
	}
	if err != nil {
		return ledger.BatchMember{}, err
	}
	return m, nil
}
