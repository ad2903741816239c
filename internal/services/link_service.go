package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"sproutbot/internal/config"
	"sproutbot/internal/db"
	"sproutbot/internal/store"
	"sproutbot/internal/websocket"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

// LinkService drives the identity-linking flow: issuing the one-time bind
// token on the chat side and completing the OAuth callback on the HTTP
// side. A callback attempt ends in exactly one of two ledger states:
// nothing happened, or the user is linked and credited.
type LinkService struct {
	txRunner db.TxRunner
	cfg      config.Config
	users    UserStore
	links    LinkStore
	tokens   BindTokenStore
	journal  JournalStore
	oauth    OAuthClient
	notifier Notifier
	hub      BalanceHub
	log      *logrus.Logger
}

func NewLinkService(txRunner db.TxRunner, cfg config.Config, users UserStore, links LinkStore, tokens BindTokenStore, journal JournalStore, oauthClient OAuthClient, notifier Notifier, hub BalanceHub, log *logrus.Logger) *LinkService {
	return &LinkService{
		txRunner: txRunner,
		cfg:      cfg,
		users:    users,
		links:    links,
		tokens:   tokens,
		journal:  journal,
		oauth:    oauthClient,
		notifier: notifier,
		hub:      hub,
		log:      log,
	}
}

// BeginLink issues a fresh bind token for the user and returns the site
// authorize URL carrying it as the OAuth state. Fails without issuing a
// token if the user is unknown, blocked, or already linked.
func (s *LinkService) BeginLink(ctx context.Context, userID int64) (string, error) {
	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotRegistered
	}
	if err != nil {
		return "", err
	}
	if user.Blocked {
		return "", ErrBlocked
	}
	if _, err := s.links.GetByUser(ctx, userID); err == nil {
		return "", ErrAlreadyLinked
	} else if !errors.Is(err, sql.ErrNoRows) {
		return "", err
	}
	if !s.cfg.OAuthReady() {
		s.log.Warn("bind requested but oauth config is incomplete")
		return "", ErrConfigNotReady
	}
	token, err := s.tokens.Issue(ctx, userID, s.cfg.BindTokenTTL)
	if err != nil {
		return "", err
	}
	return s.oauth.AuthorizeURL(token), nil
}

type LinkResult struct {
	UserID   int64
	SiteName string
	Reward   int64
	Balance  int64
}

// CompleteLink handles the OAuth redirect. The state token is consumed on
// the first step regardless of how the rest goes; a failed attempt always
// needs a fresh /bind. No ledger or link state is written until every
// remote call has succeeded, and the link plus its reward commit in one
// transaction.
func (s *LinkService) CompleteLink(ctx context.Context, code, state string) (LinkResult, error) {
	userID, ok, err := s.tokens.Claim(ctx, state)
	if err != nil {
		return LinkResult{}, err
	}
	if !ok {
		return LinkResult{}, ErrTokenInvalid
	}

	if _, err := s.links.GetByUser(ctx, userID); err == nil {
		return LinkResult{}, ErrAlreadyLinked
	} else if !errors.Is(err, sql.ErrNoRows) {
		return LinkResult{}, err
	}

	accessToken, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		s.log.WithError(err).WithField("user_id", userID).Error("authorization code exchange failed")
		return LinkResult{}, err
	}
	info, err := s.oauth.FetchUserInfo(ctx, accessToken)
	if err != nil {
		s.log.WithError(err).WithField("user_id", userID).Error("userinfo fetch failed")
		return LinkResult{}, err
	}

	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.links.Bind(ctx, tx, userID, info.OpenID, info.Name); err != nil {
			return err
		}
		if err := s.users.Credit(ctx, tx, userID, s.cfg.BindReward); err != nil {
			return err
		}
		return s.journal.Record(ctx, tx, userID, s.cfg.BindReward, "bind_reward", "site account linked: "+info.OpenID)
	})
	if errors.Is(err, store.ErrOpenIDTaken) {
		return LinkResult{}, ErrLinkConflict
	}
	if errors.Is(err, store.ErrUserAlreadyLinked) {
		return LinkResult{}, ErrAlreadyLinked
	}
	if err != nil {
		return LinkResult{}, err
	}

	balance, err := s.users.GetBalance(ctx, userID)
	if err != nil {
		// Credit committed; the display value is best-effort.
		s.log.WithError(err).WithField("user_id", userID).Warn("balance read after bind failed")
		balance = -1
	}

	s.log.WithFields(logrus.Fields{"user_id": userID, "openid": info.OpenID}).Info("site account linked")
	s.hub.Broadcast(websocket.BalanceUpdate{UserID: userID, Balance: balance, Delta: s.cfg.BindReward, Reason: "bind_reward"})
	s.notifyLinked(userID, info.Name, balance)

	return LinkResult{UserID: userID, SiteName: info.Name, Reward: s.cfg.BindReward, Balance: balance}, nil
}

// notifyLinked tells the user in chat that the link landed. The credit has
// already committed, so a delivery failure is logged and dropped.
func (s *LinkService) notifyLinked(userID int64, siteName string, balance int64) {
	name := ""
	if siteName != "" {
		name = fmt.Sprintf(" (%s)", siteName)
	}
	text := fmt.Sprintf(
		"🎉 Link complete!\n\n🌱 Your chat account is now tied to your site account%s\n🎁 Bind reward: +%d points\n💰 Current balance: %d points\n\nUse /exchange to convert points to site points.",
		name, s.cfg.BindReward, balance,
	)
	if err := s.notifier.SendMessage(userID, text); err != nil {
		s.log.WithError(err).WithField("user_id", userID).Warn("bind notification failed")
	}
}
