// Package rest implements remote.Service over the data service's HTTP API.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/mrlokans/libris/internal/remote"
)

const (
	headerAPIKey   = "apikey"
	defaultTimeout = 15 * time.Second
	maxErrorBody   = 4096
)

// SessionStore persists the session between process runs.
type SessionStore interface {
	Load() (*remote.Session, error)
	Save(*remote.Session) error
	Clear() error
}

// Config holds what a client needs to reach the service.
type Config struct {
	BaseURL string
	APIKey  string
	// Timeout bounds each request. Requests whose context has an earlier
	// deadline end at that deadline.
	Timeout time.Duration
	// Sessions is optional; without it sessions live only in memory.
	Sessions   SessionStore
	HTTPClient *http.Client
}

type Client struct {
	remote.Broadcaster

	baseURL    string
	apiKey     string
	httpClient *http.Client
	sessions   SessionStore

	mu      sync.Mutex
	session *remote.Session
}

var _ remote.Service = (*Client)(nil)

// New creates a client. A previously saved session is picked up so that
// CurrentSession can resume it.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("base URL is required")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("API key is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
		sessions:   cfg.Sessions,
	}

	if c.sessions != nil {
		saved, err := c.sessions.Load()
		if err != nil {
			return nil, err
		}
		c.session = saved
	}
	return c, nil
}

// errorBody mirrors the service's error response.
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (c *Client) token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return ""
	}
	return c.session.AccessToken
}

func (c *Client) setSession(s *remote.Session) {
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()

	if c.sessions == nil {
		return
	}
	var err error
	if s == nil {
		err = c.sessions.Clear()
	} else {
		err = c.sessions.Save(s)
	}
	if err != nil {
		log.Printf("Failed to persist session: %v", err)
	}
}

// do sends a JSON request and decodes a JSON response into out. Non-2xx
// responses are mapped onto the remote error taxonomy.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set(headerAPIKey, c.apiKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return remote.Transport(fmt.Errorf("%s %s: %w", method, path, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil || resp.StatusCode == http.StatusNoContent {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return remote.Transport(fmt.Errorf("failed to decode response: %w", err))
		}
		return nil
	}

	return responseError(resp)
}

func responseError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var eb errorBody
	if json.Unmarshal(raw, &eb) == nil && eb.Code != "" {
		if err := remote.FromCode(eb.Code, eb.Error); err != nil {
			return err
		}
	}

	switch {
	case resp.StatusCode >= 500:
		return remote.Transport(fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(raw)))
	case resp.StatusCode == http.StatusUnauthorized:
		return remote.ErrUnauthorized
	case resp.StatusCode == http.StatusForbidden:
		return remote.ErrForbidden
	case resp.StatusCode == http.StatusNotFound:
		return remote.ErrNotFound
	}
	return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(raw))
}

// --- Identity ---

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (c *Client) signedIn(s *remote.Session) *remote.Session {
	c.setSession(s)
	copied := *s
	c.Publish(remote.AuthEvent{Kind: remote.SignedIn, Session: &copied})
	return s
}

func (c *Client) SignUp(ctx context.Context, email, password string) (*remote.Session, error) {
	var s remote.Session
	if err := c.do(ctx, http.MethodPost, "/auth/v1/signup", credentials{Email: email, Password: password}, &s); err != nil {
		return nil, err
	}
	return c.signedIn(&s), nil
}

func (c *Client) SignIn(ctx context.Context, email, password string) (*remote.Session, error) {
	var s remote.Session
	if err := c.do(ctx, http.MethodPost, "/auth/v1/token", credentials{Email: email, Password: password}, &s); err != nil {
		return nil, err
	}
	return c.signedIn(&s), nil
}

// SignOut revokes the session. The local session is dropped and SignedOut
// published whatever the service answered; an already invalid token is
// not an error.
func (c *Client) SignOut(ctx context.Context) error {
	var err error
	if c.token() != "" {
		err = c.do(ctx, http.MethodPost, "/auth/v1/logout", nil, nil)
		if errors.Is(err, remote.ErrUnauthorized) {
			err = nil
		}
	}
	c.setSession(nil)
	c.Publish(remote.AuthEvent{Kind: remote.SignedOut})
	return err
}

// CurrentSession returns the held session if the service still accepts it.
// A rejected token is forgotten.
func (c *Client) CurrentSession(ctx context.Context) (*remote.Session, error) {
	if c.token() == "" {
		return nil, nil
	}

	var s remote.Session
	err := c.do(ctx, http.MethodGet, "/auth/v1/session", nil, &s)
	if errors.Is(err, remote.ErrUnauthorized) {
		c.setSession(nil)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) UpdatePassword(ctx context.Context, email, password string) error {
	return c.do(ctx, http.MethodPost, "/auth/v1/recover", credentials{Email: email, Password: password}, nil)
}

func (c *Client) ConfirmEmail(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPost, "/auth/v1/confirm", map[string]string{"email": email}, nil)
}

func (c *Client) DeleteAccount(ctx context.Context) error {
	if err := c.do(ctx, http.MethodDelete, "/auth/v1/user", nil, nil); err != nil {
		return err
	}
	c.setSession(nil)
	c.Publish(remote.AuthEvent{Kind: remote.SignedOut})
	return nil
}
