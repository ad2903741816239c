package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"time"
)

// BindTokenStore owns the one-time tokens that carry a user id through the
// OAuth redirect as the `state` parameter.
type BindTokenStore struct {
	db DB
}

func NewBindTokenStore(db DB) *BindTokenStore {
	return &BindTokenStore{db: db}
}

// Issue creates a fresh random token for the user, valid for ttl.
func (s *BindTokenStore) Issue(ctx context.Context, userID int64, ttl time.Duration) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	token := hex.EncodeToString(buf)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bind_tokens (token, user_id, expires_at)
		VALUES ($1, $2, $3)
	`, token, userID, time.Now().UTC().Add(ttl))
	if err != nil {
		return "", err
	}
	return token, nil
}

// Claim marks the token consumed and returns its owner. The conditional
// UPDATE is the only guard: of any number of concurrent claims on the
// same value, exactly one sees a row and every other caller gets false.
// Unknown, expired, and already-consumed tokens are indistinguishable to
// the caller on purpose.
func (s *BindTokenStore) Claim(ctx context.Context, token string) (int64, bool, error) {
	var userID int64
	err := s.db.GetContext(ctx, &userID, `
		UPDATE bind_tokens
		SET consumed_at = NOW()
		WHERE token = $1 AND consumed_at IS NULL AND expires_at > NOW()
		RETURNING user_id
	`, token)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return userID, true, nil
}

// PurgeExpired removes tokens that can never be claimed again. Called
// opportunistically; correctness never depends on it.
func (s *BindTokenStore) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM bind_tokens
		WHERE consumed_at IS NOT NULL OR expires_at <= NOW()
	`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
