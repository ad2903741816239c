// Package oauth drives the authorization-code exchange against the site's
// OAuth endpoints. It knows nothing about local users or tokens; callers
// hand it a code and get back an access token and a profile.
package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxResponseBodyBytes = 1 << 20

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Config struct {
	ClientID     string
	ClientSecret string
	BaseURL      string
	RedirectURI  string
	Timeout      time.Duration
	HTTPClient   HTTPDoer
}

type Client struct {
	cfg        Config
	httpClient HTTPDoer
}

func New(cfg Config) *Client {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{cfg: cfg, httpClient: httpClient}
}

// RemoteError is any failure talking to the site: non-2xx status, network
// fault, or a body that does not parse. The body is truncated for logs.
type RemoteError struct {
	Op     string
	Status int
	Body   string
	Err    error
}

func (e *RemoteError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("oauth %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("oauth %s: status %d: %s", e.Op, e.Status, e.Body)
}

func (e *RemoteError) Unwrap() error { return e.Err }

type UserInfo struct {
	OpenID string
	Name   string
}

// AuthorizeURL builds the URL the user visits to start the flow. The state
// parameter is the one-time bind token and is the only thing tying the
// redirect back to a local user.
func (c *Client) AuthorizeURL(state string) string {
	params := url.Values{
		"response_type": {"code"},
		"client_id":     {c.cfg.ClientID},
		"redirect_uri":  {c.cfg.RedirectURI},
		"state":         {state},
		"scope":         {"basic"},
	}
	return c.cfg.BaseURL + "/authorize?" + params.Encode()
}

// ExchangeCode trades the authorization code for an access token.
func (c *Client) ExchangeCode(ctx context.Context, code string) (string, error) {
	form := url.Values{
		"grant_type":    {"authorization_code"},
		"client_id":     {c.cfg.ClientID},
		"client_secret": {c.cfg.ClientSecret},
		"code":          {code},
		"redirect_uri":  {c.cfg.RedirectURI},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", &RemoteError{Op: "token", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	status, body, err := c.do(req)
	if err != nil {
		return "", &RemoteError{Op: "token", Err: err}
	}
	if status != http.StatusOK {
		return "", &RemoteError{Op: "token", Status: status, Body: truncate(body)}
	}
	var payload struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", &RemoteError{Op: "token", Status: status, Body: truncate(body), Err: err}
	}
	if payload.AccessToken == "" {
		return "", &RemoteError{Op: "token", Status: status, Body: truncate(body)}
	}
	return payload.AccessToken, nil
}

// FetchUserInfo resolves the access token into the site account identity.
func (c *Client) FetchUserInfo(ctx context.Context, accessToken string) (UserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/userinfo", nil)
	if err != nil {
		return UserInfo{}, &RemoteError{Op: "userinfo", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	status, body, err := c.do(req)
	if err != nil {
		return UserInfo{}, &RemoteError{Op: "userinfo", Err: err}
	}
	if status != http.StatusOK {
		return UserInfo{}, &RemoteError{Op: "userinfo", Status: status, Body: truncate(body)}
	}
	var payload struct {
		UserInfo struct {
			OpenID string `json:"openid"`
			Name   string `json:"name"`
		} `json:"userinfo"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return UserInfo{}, &RemoteError{Op: "userinfo", Status: status, Body: truncate(body), Err: err}
	}
	if payload.UserInfo.OpenID == "" {
		return UserInfo{}, &RemoteError{Op: "userinfo", Status: status, Body: truncate(body)}
	}
	return UserInfo{OpenID: payload.UserInfo.OpenID, Name: payload.UserInfo.Name}, nil
}

func (c *Client) do(req *http.Request) (int, []byte, error) {
	resp, err := c.httpClient.Do(req)
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
