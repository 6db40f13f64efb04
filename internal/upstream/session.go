package upstream

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/singleflight"
)

const loginPath = "/api/2.0/B2C/Login"

// Session holds the auth token shared by every query
type Session struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger

	mu    sync.RWMutex
	token string

	group singleflight.Group
}

func NewSession(cfg Config, client *http.Client, logger *slog.Logger) *Session {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		cfg:    cfg,
		client: client,
		logger: logger,
	}
}

// Token returns the current token, or "" when logged out
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// EnsureAuthenticated logs in unless a token is already held. Concurrent
// callers share a single login request.
func (s *Session) EnsureAuthenticated(ctx context.Context) error {
	if s.Token() != "" {
		return nil
	}

	ch := s.group.DoChan("login", func() (any, error) {
		s.mu.Lock()
		defer s.mu.Unlock()

		// Double check after acquiring write lock
		if s.token != "" {
			return nil, nil
		}

		// the login outlives any single caller giving up
		loginCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.Timeout)
		defer cancel()

		token, err := s.login(loginCtx)
		if err != nil {
			return nil, err
		}
		s.token = token
		s.logger.Info("logged in to studio API")
		return nil, nil
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Invalidate drops the token so the next EnsureAuthenticated logs in again
func (s *Session) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" {
		s.logger.Info("logged out of studio API")
	}
	s.token = ""
}

func (s *Session) login(ctx context.Context) (string, error) {
	params := url.Values{}
	params.Set("orgId", s.cfg.OrgID)
	params.Set("username", s.cfg.Username)
	params.Set("password", s.cfg.Password)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.BaseURL+loginPath+"?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create login request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrLoginFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrLoginFailed, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrLoginFailed, err)
	}

	token := gjson.GetBytes(body, "UserID")
	if token.Type != gjson.String || token.Str == "" {
		return "", fmt.Errorf("%w: no UserID in response", ErrLoginFailed)
	}
	return token.Str, nil
}
