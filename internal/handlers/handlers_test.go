package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"sproutbot/internal/auth"
	"sproutbot/internal/config"
	"sproutbot/internal/services"
	"sproutbot/internal/websocket"
)

type stubLinker struct {
	result    services.LinkResult
	err       error
	calls     int
	lastCode  string
	lastState string
}

func (s *stubLinker) CompleteLink(_ context.Context, code, state string) (services.LinkResult, error) {
	s.calls++
	s.lastCode = code
	s.lastState = state
	return s.result, s.err
}

type stubLister struct {
	rows []map[string]any
	err  error
}

func (s *stubLister) List(_ context.Context, _, _ int) ([]map[string]any, error) {
	return s.rows, s.err
}

func testHandler(linker *stubLinker) *Handler {
	log := logrus.New()
	log.SetOutput(io.Discard)
	cfg := config.Config{
		AllowedOrigins:    "*",
		OperatorJWTSecret: "test-secret",
	}
	return New(cfg, linker, &stubLister{}, &stubLister{}, websocket.NewHub(), log)
}

func TestOAuthCallbackSuccess(t *testing.T) {
	linker := &stubLinker{result: services.LinkResult{UserID: 7, SiteName: "Sprout", Reward: 120, Balance: 140}}
	h := testHandler(linker)

	req := httptest.NewRequest(http.MethodGet, "/oauth/callback?code=c-1&state=tok-1", nil)
	rec := httptest.NewRecorder()
	h.OAuthCallback(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("expected html response, got %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Link complete") {
		t.Fatalf("expected success page, got %q", body)
	}
	if !strings.Contains(body, "+120 points") {
		t.Fatalf("expected reward in page, got %q", body)
	}
	if linker.lastCode != "c-1" || linker.lastState != "tok-1" {
		t.Fatalf("unexpected forwarded params: code=%q state=%q", linker.lastCode, linker.lastState)
	}
}

func TestOAuthCallbackMissingParams(t *testing.T) {
	cases := []string{
		"/oauth/callback",
		"/oauth/callback?code=c-1",
		"/oauth/callback?state=tok-1",
	}
	for _, target := range cases {
		linker := &stubLinker{}
		h := testHandler(linker)

		req := httptest.NewRequest(http.MethodGet, target, nil)
		rec := httptest.NewRecorder()
		h.OAuthCallback(rec, req)

		if linker.calls != 0 {
			t.Fatalf("%s: link flow should not run without both params", target)
		}
		if !strings.Contains(rec.Body.String(), "Link failed") {
			t.Fatalf("%s: expected failure page", target)
		}
	}
}

func TestOAuthCallbackErrorPages(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"expired token", services.ErrTokenInvalid, "expired or was already used"},
		{"already linked", services.ErrAlreadyLinked, "already linked to a site account"},
		{"openid conflict", services.ErrLinkConflict, "different chat account"},
		{"remote failure", errors.New("token endpoint returned 502"), "try again"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := testHandler(&stubLinker{err: tc.err})

			req := httptest.NewRequest(http.MethodGet, "/oauth/callback?code=c-1&state=tok-1", nil)
			rec := httptest.NewRecorder()
			h.OAuthCallback(rec, req)

			body := rec.Body.String()
			if !strings.Contains(body, "Link failed") {
				t.Fatalf("expected failure page, got %q", body)
			}
			if !strings.Contains(body, tc.want) {
				t.Fatalf("expected %q in page, got %q", tc.want, body)
			}
		})
	}
}

func TestAdminEndpointsRequireToken(t *testing.T) {
	h := testHandler(&stubLinker{})
	router := h.Routes()

	for _, target := range []string{"/admin/incidents", "/admin/journal"} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401 without token, got %d", target, rec.Code)
		}
	}
}

func TestAdminIncidentsWithToken(t *testing.T) {
	h := testHandler(&stubLinker{})
	h.incidents = &stubLister{rows: []map[string]any{{"user_id": int64(7), "site_amount": int64(300)}}}
	router := h.Routes()

	token, err := auth.NewToken("test-secret", "ops", time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/admin/incidents", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "incidents") {
		t.Fatalf("expected incidents payload, got %q", rec.Body.String())
	}
}

func TestWSBalancesRejectsMissingToken(t *testing.T) {
	h := testHandler(&stubLinker{})

	req := httptest.NewRequest(http.MethodGet, "/ws/balances", nil)
	rec := httptest.NewRecorder()
	h.WSBalances(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestWSBalancesRejectsBadToken(t *testing.T) {
	h := testHandler(&stubLinker{})

	req := httptest.NewRequest(http.MethodGet, "/ws/balances?token=garbage", nil)
	rec := httptest.NewRecorder()
	h.WSBalances(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	h := testHandler(&stubLinker{})
	router := h.Routes()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
