package store

import (
	"context"
	"errors"
	"time"

	"github.com/lib/pq"
)

var (
	// ErrUserAlreadyLinked means the local user already holds a link.
	ErrUserAlreadyLinked = errors.New("user already linked")
	// ErrOpenIDTaken means the site account is linked to a different user.
	ErrOpenIDTaken = errors.New("site account already linked elsewhere")
)

// LinkStore owns the 1:1 mapping between a local user and a site account.
// Both sides of the pair are unique keys; Bind is a single INSERT so the
// "link if neither side is bound" decision happens in the database, never
// as a check followed by an insert.
type LinkStore struct {
	db DB
}

func NewLinkStore(db DB) *LinkStore {
	return &LinkStore{db: db}
}

type IdentityLink struct {
	UserID    int64     `db:"user_id"`
	OpenID    string    `db:"openid"`
	SiteName  string    `db:"site_name"`
	CreatedAt time.Time `db:"created_at"`
}

func (s *LinkStore) GetByUser(ctx context.Context, userID int64) (IdentityLink, error) {
	var row IdentityLink
	err := s.db.GetContext(ctx, &row, `
		SELECT user_id, openid, site_name, created_at
		FROM identity_links
		WHERE user_id = $1
	`, userID)
	if err != nil {
		return IdentityLink{}, err
	}
	return row, nil
}

func (s *LinkStore) GetByOpenID(ctx context.Context, openID string) (IdentityLink, error) {
	var row IdentityLink
	err := s.db.GetContext(ctx, &row, `
		SELECT user_id, openid, site_name, created_at
		FROM identity_links
		WHERE openid = $1
	`, openID)
	if err != nil {
		return IdentityLink{}, err
	}
	return row, nil
}

// Bind inserts the link. A primary-key violation means this user is
// already linked; a violation on the openid unique index means another
// user got the site account first. First writer wins either way.
func (s *LinkStore) Bind(ctx context.Context, tx Execer, userID int64, openID, siteName string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO identity_links (user_id, openid, site_name)
		VALUES ($1, $2, $3)
	`, userID, openID, siteName)
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		if pqErr.Constraint == "identity_links_openid_key" {
			return ErrOpenIDTaken
		}
		return ErrUserAlreadyLinked
	}
	return err
}
