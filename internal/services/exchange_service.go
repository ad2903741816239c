package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"sproutbot/internal/config"
	"sproutbot/internal/db"
	"sproutbot/internal/websocket"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

// ExchangeService moves points from the local ledger to the site's ledger.
// The site is credited first: if that call fails nothing has changed and
// the user can simply retry, whereas debiting first could destroy local
// value with no site credit ever issued.
type ExchangeService struct {
	txRunner  db.TxRunner
	cfg       config.Config
	users     UserStore
	links     LinkStore
	journal   JournalStore
	incidents IncidentStore
	gateway   PointsGateway
	hub       BalanceHub
	log       *logrus.Logger
}

func NewExchangeService(txRunner db.TxRunner, cfg config.Config, users UserStore, links LinkStore, journal JournalStore, incidents IncidentStore, gateway PointsGateway, hub BalanceHub, log *logrus.Logger) *ExchangeService {
	return &ExchangeService{
		txRunner:  txRunner,
		cfg:       cfg,
		users:     users,
		links:     links,
		journal:   journal,
		incidents: incidents,
		gateway:   gateway,
		hub:       hub,
		log:       log,
	}
}

type ExchangeResult struct {
	Debited          int64
	SitePoints       int64
	Balance          int64
	SiteBalance      int64
	SiteBalanceKnown bool
}

// Quote returns the data the usage message needs: current balance and the
// configured rate and cap.
func (s *ExchangeService) Quote(ctx context.Context, userID int64) (balance, rate, max int64, err error) {
	balance, err = s.users.GetBalance(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, 0, ErrNotRegistered
	}
	if err != nil {
		return 0, 0, 0, err
	}
	return balance, s.cfg.ExchangeRate, s.cfg.ExchangeMax, nil
}

func (s *ExchangeService) Exchange(ctx context.Context, userID, amount int64) (ExchangeResult, error) {
	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return ExchangeResult{}, ErrNotRegistered
	}
	if err != nil {
		return ExchangeResult{}, err
	}
	if user.Blocked {
		return ExchangeResult{}, ErrBlocked
	}
	link, err := s.links.GetByUser(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return ExchangeResult{}, ErrNotLinked
	}
	if err != nil {
		return ExchangeResult{}, err
	}
	if amount <= 0 {
		return ExchangeResult{}, ErrInvalidAmount
	}
	if amount > s.cfg.ExchangeMax {
		return ExchangeResult{}, ErrAmountTooLarge
	}
	// Early rejection only; the debit below re-checks atomically.
	if user.Balance < amount {
		return ExchangeResult{}, ErrInsufficientFunds
	}
	if !s.cfg.OAuthReady() {
		s.log.Warn("exchange requested but oauth config is incomplete")
		return ExchangeResult{}, ErrConfigNotReady
	}

	sitePoints := amount / s.cfg.ExchangeRate
	desc := fmt.Sprintf("bot exchange (%d bot points)", amount)

	// Remote first. On failure nothing local has moved.
	credit, err := s.gateway.AddPoints(ctx, link.OpenID, sitePoints, desc)
	if err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{"user_id": userID, "amount": amount}).Error("site credit failed")
		return ExchangeResult{}, err
	}

	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		rows, err := s.users.Debit(ctx, tx, userID, amount)
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrInsufficientFunds
		}
		return s.journal.Record(ctx, tx, userID, -amount, "exchange", desc)
	})
	if err != nil {
		// The site already credited. Record the divergence for an operator
		// and do not try to claw the site points back.
		s.log.WithError(err).WithFields(logrus.Fields{
			"user_id":     userID,
			"openid":      link.OpenID,
			"amount":      amount,
			"site_points": sitePoints,
		}).Error("local debit failed after site credit, ledgers diverged")
		if recErr := s.incidents.Record(ctx, userID, link.OpenID, amount, sitePoints, err.Error()); recErr != nil {
			s.log.WithError(recErr).Error("failed to persist reconciliation incident")
		}
		return ExchangeResult{}, ErrReconciliation
	}

	balance, err := s.users.GetBalance(ctx, userID)
	if err != nil {
		s.log.WithError(err).WithField("user_id", userID).Warn("balance read after exchange failed")
		balance = user.Balance - amount
	}
	s.hub.Broadcast(websocket.BalanceUpdate{UserID: userID, Balance: balance, Delta: -amount, Reason: "exchange"})

	return ExchangeResult{
		Debited:          amount,
		SitePoints:       sitePoints,
		Balance:          balance,
		SiteBalance:      credit.Points,
		SiteBalanceKnown: credit.Known,
	}, nil
}
