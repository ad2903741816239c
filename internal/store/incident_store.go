package store

import (
	"context"

	"github.com/google/uuid"
)

// IncidentStore keeps the cases where the site credited points but the
// local debit failed afterwards. These are operator work items, not user
// errors: nothing retries them automatically and nothing deletes them.
type IncidentStore struct {
	db DB
}

func NewIncidentStore(db DB) *IncidentStore {
	return &IncidentStore{db: db}
}

type incidentRow struct {
	ID          string `db:"id"`
	UserID      int64  `db:"user_id"`
	OpenID      string `db:"openid"`
	LocalAmount int64  `db:"local_amount"`
	SiteAmount  int64  `db:"site_amount"`
	Detail      string `db:"detail"`
	CreatedAt   any    `db:"created_at"`
}

func (s *IncidentStore) Record(ctx context.Context, userID int64, openID string, localAmount, siteAmount int64, detail string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reconciliation_incidents (id, user_id, openid, local_amount, site_amount, detail)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.NewString(), userID, openID, localAmount, siteAmount, detail)
	return err
}

func (s *IncidentStore) List(ctx context.Context, limit, offset int) ([]map[string]any, error) {
	var rows []incidentRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, user_id, openid, local_amount, site_amount, detail, created_at
		FROM reconciliation_incidents
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	incidents := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		incidents = append(incidents, map[string]any{
			"id":           row.ID,
			"user_id":      row.UserID,
			"openid":       row.OpenID,
			"local_amount": row.LocalAmount,
			"site_amount":  row.SiteAmount,
			"detail":       row.Detail,
			"created_at":   row.CreatedAt,
		})
	}
	return incidents, nil
}
