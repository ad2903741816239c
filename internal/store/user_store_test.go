package store

import (
	"context"
	"database/sql"
	"strings"
	"testing"
)

func TestUserStoreCredit(t *testing.T) {
	ctx := context.Background()
	store := NewUserStore(stubDB{})
	executed := false
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "balance = balance + $1") {
				t.Fatalf("credit must be an atomic increment, got: %s", query)
			}
			if args[0] != int64(120) || args[1] != int64(42) {
				t.Fatalf("unexpected args: %#v", args)
			}
			executed = true
			return stubResult{rows: 1}, nil
		},
	}
	if err := store.Credit(ctx, execer, 42, 120); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !executed {
		t.Fatalf("expected update")
	}
}

func TestUserStoreDebitConditional(t *testing.T) {
	ctx := context.Background()
	store := NewUserStore(stubDB{})
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "balance >= $1") {
				t.Fatalf("debit must check and apply in one statement, got: %s", query)
			}
			return stubResult{rows: 0}, nil
		},
	}
	rows, err := store.Debit(ctx, execer, 42, 99999)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rows != 0 {
		t.Fatalf("over-balance debit must affect no rows, got %d", rows)
	}
}

func TestUserStoreGetByID(t *testing.T) {
	ctx := context.Background()
	store := NewUserStore(stubDB{
		getFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "FROM users") {
				t.Fatalf("unexpected query: %s", query)
			}
			*dest.(*User) = User{ID: 42, Balance: 500, Blocked: false}
			return nil
		},
	})
	user, err := store.GetByID(ctx, 42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.ID != 42 || user.Balance != 500 {
		t.Fatalf("unexpected user: %#v", user)
	}
}
