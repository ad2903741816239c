// Package site talks to the website's signed points API. Requests carry a
// keyed digest instead of the shared secret; the site recomputes the same
// digest to authenticate the caller.
package site

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const maxResponseBodyBytes = 1 << 20

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Config struct {
	AppID      string
	Secret     string
	BaseURL    string
	Timeout    time.Duration
	HTTPClient HTTPDoer
}

type Gateway struct {
	cfg        Config
	httpClient HTTPDoer
}

func New(cfg Config) *Gateway {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Gateway{cfg: cfg, httpClient: httpClient}
}

// RemoteError mirrors oauth.RemoteError for the points API.
type RemoteError struct {
	Op     string
	Status int
	Body   string
	Err    error
}

func (e *RemoteError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("site %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("site %s: status %d: %s", e.Op, e.Status, e.Body)
}

func (e *RemoteError) Unwrap() error { return e.Err }

type CreditResult struct {
	// Points is the site-side balance echoed by the API. Not every site
	// version returns it, so Known gates the display.
	Points int64
	Known  bool
}

type Profile struct {
	DisplayName string `json:"display_name"`
	InviteCount int64  `json:"invite_count"`
}

// AddPoints credits the site account. The caller has not touched the local
// ledger yet; on any error here nothing has changed anywhere.
func (g *Gateway) AddPoints(ctx context.Context, openID string, points int64, desc string) (CreditResult, error) {
	form := url.Values{
		"appid":  {g.cfg.AppID},
		"openid": {openID},
		"amount": {strconv.FormatInt(points, 10)},
		"desc":   {desc},
		"sign":   {SignPoints(g.cfg.AppID, openID, points, g.cfg.Secret)},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+"/points/add", strings.NewReader(form.Encode()))
	if err != nil {
		return CreditResult{}, &RemoteError{Op: "points/add", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	status, body, err := g.do(req)
	if err != nil {
		return CreditResult{}, &RemoteError{Op: "points/add", Err: err}
	}
	if status != http.StatusOK {
		return CreditResult{}, &RemoteError{Op: "points/add", Status: status, Body: truncate(body)}
	}
	var payload struct {
		Points *int64 `json:"points"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		// The credit went through; only the echo is unreadable.
		return CreditResult{}, nil
	}
	if payload.Points == nil {
		return CreditResult{}, nil
	}
	return CreditResult{Points: *payload.Points, Known: true}, nil
}

// FetchProfile reads the site-side profile for display.
func (g *Gateway) FetchProfile(ctx context.Context, openID string) (Profile, error) {
	params := url.Values{
		"appid":  {g.cfg.AppID},
		"openid": {openID},
		"sign":   {SignProfile(g.cfg.AppID, openID, g.cfg.Secret)},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.cfg.BaseURL+"/user/profile?"+params.Encode(), nil)
	if err != nil {
		return Profile{}, &RemoteError{Op: "user/profile", Err: err}
	}
	status, body, err := g.do(req)
	if err != nil {
		return Profile{}, &RemoteError{Op: "user/profile", Err: err}
	}
	if status != http.StatusOK {
		return Profile{}, &RemoteError{Op: "user/profile", Status: status, Body: truncate(body)}
	}
	var profile Profile
	if err := json.Unmarshal(body, &profile); err != nil {
		return Profile{}, &RemoteError{Op: "user/profile", Status: status, Body: truncate(body), Err: err}
	}
	return profile, nil
}

func (g *Gateway) do(req *http.Request) (int, []byte, error) {
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes))
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, body, nil
}

func truncate(body []byte) string {
	const max = 200
	if len(body) > max {
		return string(body[:max])
	}
	return string(body)
}
