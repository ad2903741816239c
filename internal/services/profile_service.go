package services

import (
	"context"
	"database/sql"
	"errors"

	"sproutbot/internal/config"
	"sproutbot/internal/site"
	"sproutbot/internal/store"

	"github.com/sirupsen/logrus"
)

// ProfileService assembles the /me view: local account data plus, for
// linked users, the site-side profile. The site call is display-only and
// best-effort; its failure hides the site section instead of failing the
// command.
type ProfileService struct {
	cfg     config.Config
	users   UserStore
	links   LinkStore
	gateway PointsGateway
	log     *logrus.Logger
}

func NewProfileService(cfg config.Config, users UserStore, links LinkStore, gateway PointsGateway, log *logrus.Logger) *ProfileService {
	return &ProfileService{cfg: cfg, users: users, links: links, gateway: gateway, log: log}
}

type MeSummary struct {
	User        store.User
	Linked      bool
	SiteProfile *site.Profile
}

func (s *ProfileService) Me(ctx context.Context, userID int64) (MeSummary, error) {
	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return MeSummary{}, ErrNotRegistered
	}
	if err != nil {
		return MeSummary{}, err
	}

	summary := MeSummary{User: user}
	link, err := s.links.GetByUser(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return summary, nil
	}
	if err != nil {
		return MeSummary{}, err
	}
	summary.Linked = true

	if s.cfg.OAuthReady() {
		profile, err := s.gateway.FetchProfile(ctx, link.OpenID)
		if err != nil {
			s.log.WithError(err).WithField("user_id", userID).Warn("site profile fetch failed")
		} else {
			summary.SiteProfile = &profile
		}
	}
	return summary, nil
}

func (s *ProfileService) Balance(ctx context.Context, userID int64) (int64, error) {
	balance, err := s.users.GetBalance(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotRegistered
	}
	return balance, err
}
