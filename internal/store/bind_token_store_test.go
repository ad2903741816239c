package store

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"
)

func TestBindTokenStoreIssue(t *testing.T) {
	ctx := context.Background()
	var insertedToken string
	store := NewBindTokenStore(stubDB{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "INSERT INTO bind_tokens") {
				t.Fatalf("unexpected query: %s", query)
			}
			insertedToken = args[0].(string)
			if args[1] != int64(42) {
				t.Fatalf("unexpected user id: %#v", args[1])
			}
			return stubResult{rows: 1}, nil
		},
	})
	token, err := store.Issue(ctx, 42, 10*time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(token) != 64 {
		t.Fatalf("expected 32 random bytes hex encoded, got %q", token)
	}
	if token != insertedToken {
		t.Fatalf("returned token differs from stored token")
	}
}

func TestBindTokenStoreIssueUniqueTokens(t *testing.T) {
	ctx := context.Background()
	store := NewBindTokenStore(stubDB{})
	first, err := store.Issue(ctx, 42, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := store.Issue(ctx, 42, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first == second {
		t.Fatalf("two issued tokens must not collide")
	}
}

func TestBindTokenStoreClaim(t *testing.T) {
	ctx := context.Background()
	store := NewBindTokenStore(stubDB{
		getFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "consumed_at IS NULL") || !strings.Contains(query, "expires_at > NOW()") {
				t.Fatalf("claim must be a conditional test-and-set, got: %s", query)
			}
			*dest.(*int64) = 42
			return nil
		},
	})
	userID, ok, err := store.Claim(ctx, "tok")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || userID != 42 {
		t.Fatalf("expected owner 42, got %d ok=%v", userID, ok)
	}
}

func TestBindTokenStoreClaimConsumedOrExpired(t *testing.T) {
	ctx := context.Background()
	store := NewBindTokenStore(stubDB{
		getFn: func(_ context.Context, dest any, query string, args ...any) error {
			return sql.ErrNoRows
		},
	})
	_, ok, err := store.Claim(ctx, "tok")
	if err != nil {
		t.Fatalf("dead token is not an error: %v", err)
	}
	if ok {
		t.Fatalf("dead token must not yield an owner")
	}
}
