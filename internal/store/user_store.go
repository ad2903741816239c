package store

import (
	"context"
	"time"
)

// UserStore owns the local point balance. Every mutation is a single
// conditional SQL statement; application code never reads a balance and
// writes it back.
type UserStore struct {
	db DB
}

func NewUserStore(db DB) *UserStore {
	return &UserStore{db: db}
}

type User struct {
	ID            int64      `db:"id"`
	Username      string     `db:"username"`
	FullName      string     `db:"full_name"`
	Balance       int64      `db:"balance"`
	Blocked       bool       `db:"blocked"`
	InviteCount   int        `db:"invite_count"`
	LastCheckinAt *time.Time `db:"last_checkin_at"`
	CreatedAt     time.Time  `db:"created_at"`
}

func (s *UserStore) GetByID(ctx context.Context, userID int64) (User, error) {
	var row User
	err := s.db.GetContext(ctx, &row, `
		SELECT id, username, full_name, balance, blocked, invite_count, last_checkin_at, created_at
		FROM users
		WHERE id = $1
	`, userID)
	if err != nil {
		return User{}, err
	}
	return row, nil
}

func (s *UserStore) Exists(ctx context.Context, userID int64) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, userID)
	return exists, err
}

func (s *UserStore) IsBlocked(ctx context.Context, userID int64) (bool, error) {
	var blocked bool
	err := s.db.GetContext(ctx, &blocked, `SELECT blocked FROM users WHERE id = $1`, userID)
	return blocked, err
}

func (s *UserStore) GetBalance(ctx context.Context, userID int64) (int64, error) {
	var balance int64
	err := s.db.GetContext(ctx, &balance, `SELECT balance FROM users WHERE id = $1`, userID)
	return balance, err
}

// Credit adds amount unconditionally. Used for rewards.
func (s *UserStore) Credit(ctx context.Context, tx Execer, userID, amount int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE users
		SET balance = balance + $1, updated_at = NOW()
		WHERE id = $2
	`, amount, userID)
	return err
}

// Debit subtracts amount only when the balance covers it. The check and
// the decrement are one statement so two concurrent debits cannot both
// pass a stale balance read; the returned row count decides the outcome.
func (s *UserStore) Debit(ctx context.Context, tx Execer, userID, amount int64) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE users
		SET balance = balance - $1, updated_at = NOW()
		WHERE id = $2 AND balance >= $1
	`, amount, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
