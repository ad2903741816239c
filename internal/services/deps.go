package services

import (
	"context"
	"time"

	"sproutbot/internal/oauth"
	"sproutbot/internal/site"
	"sproutbot/internal/store"
	"sproutbot/internal/websocket"
)

type UserStore interface {
	GetByID(ctx context.Context, userID int64) (store.User, error)
	GetBalance(ctx context.Context, userID int64) (int64, error)
	Credit(ctx context.Context, tx store.Execer, userID, amount int64) error
	Debit(ctx context.Context, tx store.Execer, userID, amount int64) (int64, error)
}

type LinkStore interface {
	GetByUser(ctx context.Context, userID int64) (store.IdentityLink, error)
	Bind(ctx context.Context, tx store.Execer, userID int64, openID, siteName string) error
}

type BindTokenStore interface {
	Issue(ctx context.Context, userID int64, ttl time.Duration) (string, error)
	Claim(ctx context.Context, token string) (int64, bool, error)
}

type JournalStore interface {
	Record(ctx context.Context, tx store.Execer, userID, amount int64, reason, detail string) error
}

type IncidentStore interface {
	Record(ctx context.Context, userID int64, openID string, localAmount, siteAmount int64, detail string) error
}

type OAuthClient interface {
	AuthorizeURL(state string) string
	ExchangeCode(ctx context.Context, code string) (string, error)
	FetchUserInfo(ctx context.Context, accessToken string) (oauth.UserInfo, error)
}

type PointsGateway interface {
	AddPoints(ctx context.Context, openID string, points int64, desc string) (site.CreditResult, error)
	FetchProfile(ctx context.Context, openID string) (site.Profile, error)
}

// Notifier is the chat platform's outbound message API. Calls are
// fire-and-forget: a failure is logged by the caller and never changes the
// outcome of the transaction that triggered it.
type Notifier interface {
	SendMessage(userID int64, text string) error
}

type BalanceHub interface {
	Broadcast(update websocket.BalanceUpdate)
}
