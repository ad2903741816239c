package store

import (
	"context"

	"github.com/google/uuid"
)

// JournalStore records every balance movement next to the movement itself,
// inside the same transaction, so the history and the balance cannot
// disagree after a crash.
type JournalStore struct {
	db DB
}

func NewJournalStore(db DB) *JournalStore {
	return &JournalStore{db: db}
}

type journalRow struct {
	ID        string `db:"id"`
	UserID    int64  `db:"user_id"`
	Amount    int64  `db:"amount"`
	Reason    string `db:"reason"`
	Detail    string `db:"detail"`
	CreatedAt any    `db:"created_at"`
}

func (s *JournalStore) Record(ctx context.Context, tx Execer, userID, amount int64, reason, detail string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO point_entries (id, user_id, amount, reason, detail)
		VALUES ($1, $2, $3, $4, $5)
	`, uuid.NewString(), userID, amount, reason, detail)
	return err
}

func (s *JournalStore) List(ctx context.Context, limit, offset int) ([]map[string]any, error) {
	var rows []journalRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, user_id, amount, reason, detail, created_at
		FROM point_entries
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	entries := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, map[string]any{
			"id":         row.ID,
			"user_id":    row.UserID,
			"amount":     row.Amount,
			"reason":     row.Reason,
			"detail":     row.Detail,
			"created_at": row.CreatedAt,
		})
	}
	return entries, nil
}
