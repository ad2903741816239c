package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"sproutbot/internal/oauth"
	"sproutbot/internal/store"
)

func noLink(ctx context.Context, userID int64) (store.IdentityLink, error) {
	return store.IdentityLink{}, sql.ErrNoRows
}

func TestBeginLinkIssuesTokenAndBuildsURL(t *testing.T) {
	ctx := context.Background()
	issued := false
	tokens := stubTokenStore{
		issueFn: func(_ context.Context, userID int64, ttl time.Duration) (string, error) {
			if userID != 42 {
				t.Fatalf("unexpected user: %d", userID)
			}
			if ttl != 10*time.Minute {
				t.Fatalf("unexpected ttl: %v", ttl)
			}
			issued = true
			return "tok-1", nil
		},
	}
	svc := NewLinkService(fakeTxRunner{}, testConfig(), stubUserStore{}, stubLinkStore{getByUserFn: noLink}, tokens, stubJournalStore{}, stubOAuthClient{}, &stubNotifier{}, &stubHub{}, testLogger())
	url, err := svc.BeginLink(ctx, 42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !issued {
		t.Fatalf("expected a token to be issued")
	}
	if !strings.Contains(url, "state=tok-1") {
		t.Fatalf("authorize URL must carry the token as state: %s", url)
	}
}

func TestBeginLinkRejectsAlreadyLinked(t *testing.T) {
	ctx := context.Background()
	links := stubLinkStore{
		getByUserFn: func(_ context.Context, userID int64) (store.IdentityLink, error) {
			return store.IdentityLink{UserID: userID, OpenID: "wp-9"}, nil
		},
	}
	tokens := stubTokenStore{
		issueFn: func(_ context.Context, _ int64, _ time.Duration) (string, error) {
			t.Fatalf("no token may be issued for a linked user")
			return "", nil
		},
	}
	svc := NewLinkService(fakeTxRunner{}, testConfig(), stubUserStore{}, links, tokens, stubJournalStore{}, stubOAuthClient{}, &stubNotifier{}, &stubHub{}, testLogger())
	if _, err := svc.BeginLink(ctx, 42); !errors.Is(err, ErrAlreadyLinked) {
		t.Fatalf("expected ErrAlreadyLinked, got %v", err)
	}
}

func TestBeginLinkRejectsBlockedAndUnregistered(t *testing.T) {
	ctx := context.Background()
	blocked := stubUserStore{
		getByIDFn: func(_ context.Context, userID int64) (store.User, error) {
			return store.User{ID: userID, Blocked: true}, nil
		},
	}
	svc := NewLinkService(fakeTxRunner{}, testConfig(), blocked, stubLinkStore{getByUserFn: noLink}, stubTokenStore{}, stubJournalStore{}, stubOAuthClient{}, &stubNotifier{}, &stubHub{}, testLogger())
	if _, err := svc.BeginLink(ctx, 42); !errors.Is(err, ErrBlocked) {
		t.Fatalf("expected ErrBlocked, got %v", err)
	}

	missing := stubUserStore{
		getByIDFn: func(_ context.Context, userID int64) (store.User, error) {
			return store.User{}, sql.ErrNoRows
		},
	}
	svc = NewLinkService(fakeTxRunner{}, testConfig(), missing, stubLinkStore{getByUserFn: noLink}, stubTokenStore{}, stubJournalStore{}, stubOAuthClient{}, &stubNotifier{}, &stubHub{}, testLogger())
	if _, err := svc.BeginLink(ctx, 42); !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("expected ErrNotRegistered, got %v", err)
	}
}

func TestBeginLinkConfigNotReady(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.OAuthClientID = ""
	svc := NewLinkService(fakeTxRunner{}, cfg, stubUserStore{}, stubLinkStore{getByUserFn: noLink}, stubTokenStore{}, stubJournalStore{}, stubOAuthClient{}, &stubNotifier{}, &stubHub{}, testLogger())
	if _, err := svc.BeginLink(ctx, 42); !errors.Is(err, ErrConfigNotReady) {
		t.Fatalf("expected ErrConfigNotReady, got %v", err)
	}
}

func TestCompleteLinkHappyPath(t *testing.T) {
	ctx := context.Background()
	tokens := stubTokenStore{
		claimFn: func(_ context.Context, token string) (int64, bool, error) {
			if token != "tok-1" {
				t.Fatalf("unexpected token: %s", token)
			}
			return 42, true, nil
		},
	}
	var credited int64
	users := stubUserStore{
		creditFn: func(_ context.Context, _ store.Execer, userID, amount int64) error {
			if userID != 42 {
				t.Fatalf("unexpected user: %d", userID)
			}
			credited = amount
			return nil
		},
		getBalanceFn: func(_ context.Context, _ int64) (int64, error) { return 140, nil },
	}
	var bound string
	links := stubLinkStore{
		getByUserFn: noLink,
		bindFn: func(_ context.Context, _ store.Execer, userID int64, openID, siteName string) error {
			bound = openID
			return nil
		},
	}
	notifier := &stubNotifier{}
	hub := &stubHub{}
	svc := NewLinkService(fakeTxRunner{}, testConfig(), users, links, tokens, stubJournalStore{}, stubOAuthClient{}, notifier, hub, testLogger())

	result, err := svc.CompleteLink(ctx, "code-1", "tok-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bound != "wp-9" {
		t.Fatalf("expected link to wp-9, got %q", bound)
	}
	if credited != 120 {
		t.Fatalf("expected bind reward 120, got %d", credited)
	}
	if result.Balance != 140 || result.Reward != 120 || result.SiteName != "Sprout" {
		t.Fatalf("unexpected result: %#v", result)
	}
	if len(notifier.sent) != 1 {
		t.Fatalf("expected one notification, got %d", len(notifier.sent))
	}
	if len(hub.updates) != 1 || hub.updates[0].Delta != 120 {
		t.Fatalf("unexpected hub updates: %#v", hub.updates)
	}
}

func TestCompleteLinkInvalidState(t *testing.T) {
	ctx := context.Background()
	svc := NewLinkService(fakeTxRunner{}, testConfig(), stubUserStore{}, stubLinkStore{getByUserFn: noLink}, stubTokenStore{}, stubJournalStore{}, stubOAuthClient{}, &stubNotifier{}, &stubHub{}, testLogger())
	if _, err := svc.CompleteLink(ctx, "code-1", "bogus"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestCompleteLinkTokenConsumedEvenWhenExchangeFails(t *testing.T) {
	ctx := context.Background()
	claims := 0
	tokens := stubTokenStore{
		claimFn: func(_ context.Context, token string) (int64, bool, error) {
			claims++
			if claims > 1 {
				return 0, false, nil
			}
			return 42, true, nil
		},
	}
	oauthClient := stubOAuthClient{
		exchangeCodeFn: func(_ context.Context, _ string) (string, error) {
			return "", &oauth.RemoteError{Op: "token", Status: 500, Body: "boom"}
		},
	}
	users := stubUserStore{
		creditFn: func(_ context.Context, _ store.Execer, _, _ int64) error {
			t.Fatalf("no credit may happen on a failed exchange")
			return nil
		},
	}
	links := stubLinkStore{
		getByUserFn: noLink,
		bindFn: func(_ context.Context, _ store.Execer, _ int64, _, _ string) error {
			t.Fatalf("no link may be written on a failed exchange")
			return nil
		},
	}
	svc := NewLinkService(fakeTxRunner{}, testConfig(), users, links, tokens, stubJournalStore{}, oauthClient, &stubNotifier{}, &stubHub{}, testLogger())

	var remoteErr *oauth.RemoteError
	if _, err := svc.CompleteLink(ctx, "code-1", "tok-1"); !errors.As(err, &remoteErr) {
		t.Fatalf("expected remote error, got %v", err)
	}
	// The token was consumed by the failed attempt; a second callback with
	// the same state must fail as invalid.
	if _, err := svc.CompleteLink(ctx, "code-1", "tok-1"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid on reuse, got %v", err)
	}
}

func TestCompleteLinkConflict(t *testing.T) {
	ctx := context.Background()
	tokens := stubTokenStore{
		claimFn: func(_ context.Context, _ string) (int64, bool, error) { return 42, true, nil },
	}
	links := stubLinkStore{
		getByUserFn: noLink,
		bindFn: func(_ context.Context, _ store.Execer, _ int64, _, _ string) error {
			return store.ErrOpenIDTaken
		},
	}
	users := stubUserStore{
		creditFn: func(_ context.Context, _ store.Execer, _, _ int64) error {
			t.Fatalf("no credit on a conflicting link")
			return nil
		},
	}
	svc := NewLinkService(fakeTxRunner{}, testConfig(), users, links, tokens, stubJournalStore{}, stubOAuthClient{}, &stubNotifier{}, &stubHub{}, testLogger())
	if _, err := svc.CompleteLink(ctx, "code-1", "tok-1"); !errors.Is(err, ErrLinkConflict) {
		t.Fatalf("expected ErrLinkConflict, got %v", err)
	}
}

func TestCompleteLinkNotificationFailureDoesNotFailLink(t *testing.T) {
	ctx := context.Background()
	tokens := stubTokenStore{
		claimFn: func(_ context.Context, _ string) (int64, bool, error) { return 42, true, nil },
	}
	notifier := &stubNotifier{
		sendFn: func(_ int64, _ string) error { return errors.New("chat api down") },
	}
	svc := NewLinkService(fakeTxRunner{}, testConfig(), stubUserStore{}, stubLinkStore{getByUserFn: noLink}, tokens, stubJournalStore{}, stubOAuthClient{}, notifier, &stubHub{}, testLogger())
	if _, err := svc.CompleteLink(ctx, "code-1", "tok-1"); err != nil {
		t.Fatalf("notification failure must not fail the link: %v", err)
	}
}
