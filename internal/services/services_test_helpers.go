package services

import (
	"context"
	"io"
	"time"

	"sproutbot/internal/config"
	"sproutbot/internal/oauth"
	"sproutbot/internal/site"
	"sproutbot/internal/store"
	"sproutbot/internal/websocket"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

func testConfig() config.Config {
	return config.Config{
		OAuthClientID:     "abc",
		OAuthClientSecret: "s3cr3t",
		OAuthBaseURL:      "https://site.example/api",
		OAuthRedirectURI:  "https://bot.example/oauth/callback",
		BindReward:        120,
		ExchangeRate:      1,
		ExchangeMax:       10000,
		BindTokenTTL:      10 * time.Minute,
	}
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

type fakeTxRunner struct {
	err error
}

func (f fakeTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	if f.err != nil {
		return f.err
	}
	return fn(nil)
}

type stubUserStore struct {
	getByIDFn    func(ctx context.Context, userID int64) (store.User, error)
	getBalanceFn func(ctx context.Context, userID int64) (int64, error)
	creditFn     func(ctx context.Context, tx store.Execer, userID, amount int64) error
	debitFn      func(ctx context.Context, tx store.Execer, userID, amount int64) (int64, error)
}

func (s stubUserStore) GetByID(ctx context.Context, userID int64) (store.User, error) {
	if s.getByIDFn == nil {
		return store.User{ID: userID}, nil
	}
	return s.getByIDFn(ctx, userID)
}

func (s stubUserStore) GetBalance(ctx context.Context, userID int64) (int64, error) {
	if s.getBalanceFn == nil {
		return 0, nil
	}
	return s.getBalanceFn(ctx, userID)
}

func (s stubUserStore) Credit(ctx context.Context, tx store.Execer, userID, amount int64) error {
	if s.creditFn == nil {
		return nil
	}
	return s.creditFn(ctx, tx, userID, amount)
}

func (s stubUserStore) Debit(ctx context.Context, tx store.Execer, userID, amount int64) (int64, error) {
	if s.debitFn == nil {
		return 1, nil
	}
	return s.debitFn(ctx, tx, userID, amount)
}

type stubLinkStore struct {
	getByUserFn func(ctx context.Context, userID int64) (store.IdentityLink, error)
	bindFn      func(ctx context.Context, tx store.Execer, userID int64, openID, siteName string) error
}

func (s stubLinkStore) GetByUser(ctx context.Context, userID int64) (store.IdentityLink, error) {
	return s.getByUserFn(ctx, userID)
}

func (s stubLinkStore) Bind(ctx context.Context, tx store.Execer, userID int64, openID, siteName string) error {
	if s.bindFn == nil {
		return nil
	}
	return s.bindFn(ctx, tx, userID, openID, siteName)
}

type stubTokenStore struct {
	issueFn func(ctx context.Context, userID int64, ttl time.Duration) (string, error)
	claimFn func(ctx context.Context, token string) (int64, bool, error)
}

func (s stubTokenStore) Issue(ctx context.Context, userID int64, ttl time.Duration) (string, error) {
	if s.issueFn == nil {
		return "tok-1", nil
	}
	return s.issueFn(ctx, userID, ttl)
}

func (s stubTokenStore) Claim(ctx context.Context, token string) (int64, bool, error) {
	if s.claimFn == nil {
		return 0, false, nil
	}
	return s.claimFn(ctx, token)
}

type stubJournalStore struct {
	recordFn func(ctx context.Context, tx store.Execer, userID, amount int64, reason, detail string) error
}

func (s stubJournalStore) Record(ctx context.Context, tx store.Execer, userID, amount int64, reason, detail string) error {
	if s.recordFn == nil {
		return nil
	}
	return s.recordFn(ctx, tx, userID, amount, reason, detail)
}

type stubIncidentStore struct {
	recordFn func(ctx context.Context, userID int64, openID string, localAmount, siteAmount int64, detail string) error
}

func (s stubIncidentStore) Record(ctx context.Context, userID int64, openID string, localAmount, siteAmount int64, detail string) error {
	if s.recordFn == nil {
		return nil
	}
	return s.recordFn(ctx, userID, openID, localAmount, siteAmount, detail)
}

type stubOAuthClient struct {
	authorizeURLFn  func(state string) string
	exchangeCodeFn  func(ctx context.Context, code string) (string, error)
	fetchUserInfoFn func(ctx context.Context, accessToken string) (oauth.UserInfo, error)
}

func (s stubOAuthClient) AuthorizeURL(state string) string {
	if s.authorizeURLFn == nil {
		return "https://site.example/api/authorize?state=" + state
	}
	return s.authorizeURLFn(state)
}

func (s stubOAuthClient) ExchangeCode(ctx context.Context, code string) (string, error) {
	if s.exchangeCodeFn == nil {
		return "at-1", nil
	}
	return s.exchangeCodeFn(ctx, code)
}

func (s stubOAuthClient) FetchUserInfo(ctx context.Context, accessToken string) (oauth.UserInfo, error) {
	if s.fetchUserInfoFn == nil {
		return oauth.UserInfo{OpenID: "wp-9", Name: "Sprout"}, nil
	}
	return s.fetchUserInfoFn(ctx, accessToken)
}

type stubGateway struct {
	addPointsFn    func(ctx context.Context, openID string, points int64, desc string) (site.CreditResult, error)
	fetchProfileFn func(ctx context.Context, openID string) (site.Profile, error)
}

func (s stubGateway) AddPoints(ctx context.Context, openID string, points int64, desc string) (site.CreditResult, error) {
	if s.addPointsFn == nil {
		return site.CreditResult{}, nil
	}
	return s.addPointsFn(ctx, openID, points, desc)
}

func (s stubGateway) FetchProfile(ctx context.Context, openID string) (site.Profile, error) {
	if s.fetchProfileFn == nil {
		return site.Profile{}, nil
	}
	return s.fetchProfileFn(ctx, openID)
}

type stubNotifier struct {
	sendFn func(userID int64, text string) error
	sent   []string
}

func (s *stubNotifier) SendMessage(userID int64, text string) error {
	s.sent = append(s.sent, text)
	if s.sendFn == nil {
		return nil
	}
	return s.sendFn(userID, text)
}

type stubHub struct {
	updates []websocket.BalanceUpdate
}

func (s *stubHub) Broadcast(update websocket.BalanceUpdate) {
	s.updates = append(s.updates, update)
}
