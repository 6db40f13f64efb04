// Package upstream talks to the studio-management query API.
package upstream

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/studiokicks/leaderboard/internal/mapper"
	"github.com/studiokicks/leaderboard/internal/model"
)

const (
	queryPath  = "/api/2.0/B2C/Query"
	statusPath = "/api/2.0/Status"
)

// Client runs delta queries against the studio API
type Client struct {
	cfg     Config
	http    *http.Client
	session *Session
	logger  *slog.Logger
}

// NewClient creates a client and the session it authenticates with
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	httpClient := &http.Client{Timeout: cfg.Timeout}

	return &Client{
		cfg:     cfg,
		http:    httpClient,
		session: NewSession(cfg, httpClient, logger),
		logger:  logger,
	}
}

// Session returns the session shared by all queries of this client
func (c *Client) Session() *Session {
	return c.session
}

// BuildQuery returns the SQL sent to the remote query endpoint. A nil since
// selects every row.
func BuildQuery(entity model.EntityType, since *int64) string {
	// table names are quoted because Transaction is a reserved word remotely
	table := fmt.Sprintf(`Custom."%s"`, entity.RemoteTable())

	q := "SELECT * FROM " + table
	if since != nil {
		q += fmt.Sprintf(" WHERE %s.%s > convert(datetime, '%s')",
			table, entity.FreshnessColumn(), mapper.FormatDate(*since))
	}
	return q
}

// Fetch returns every record of entity whose freshness column is later than since
func (c *Client) Fetch(ctx context.Context, entity model.EntityType, since *int64) ([]model.Record, error) {
	if err := c.session.EnsureAuthenticated(ctx); err != nil {
		return nil, &FetchError{Entity: entity, Err: err}
	}

	form := url.Values{}
	form.Set("QueryString", BuildQuery(entity, since))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+queryPath, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &FetchError{Entity: entity, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	c.setHeaders(req)

	body, status, err := c.do(req)
	if err != nil {
		return nil, &FetchError{Entity: entity, StatusCode: status, Err: err}
	}

	records, err := decodeRecords(body)
	if err != nil {
		return nil, &FetchError{Entity: entity, StatusCode: status, Err: err}
	}

	c.logger.Debug("fetched records", "entity", entity, "count", len(records))
	return records, nil
}

// Status returns the decoded body of the API status endpoint
func (c *Client) Status(ctx context.Context) (map[string]any, error) {
	if err := c.session.EnsureAuthenticated(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+statusPath, nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	body, _, err := c.do(req)
	if err != nil {
		return nil, err
	}

	result := gjson.ParseBytes(body)
	if !result.IsObject() {
		return nil, fmt.Errorf("%w: status is not an object", ErrBadPayload)
	}
	status, _ := result.Value().(map[string]any)
	return status, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("X-Access-Key", c.cfg.AccessKey)
	req.Header.Set("X-Client-Number", c.cfg.ClientNumber)
	req.Header.Set("X-Username", c.cfg.HeaderUsername)
	req.Header.Set("X-Password", c.cfg.HeaderPassword)
	if token := c.session.Token(); token != "" {
		req.Header.Set("X-Auth-Token", token)
	}
}

// do sends req and returns the body of a 200 response. A 401 or 403 drops
// the session token.
func (c *Client) do(req *http.Request) ([]byte, int, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		c.session.Invalidate()
		return nil, resp.StatusCode, ErrUnauthorized
	case resp.StatusCode != http.StatusOK:
		return nil, resp.StatusCode, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

func decodeRecords(body []byte) ([]model.Record, error) {
	if !gjson.ValidBytes(body) {
		return nil, ErrBadPayload
	}

	result := gjson.ParseBytes(body)
	if !result.IsArray() {
		return nil, ErrBadPayload
	}

	items := result.Array()
	records := make([]model.Record, 0, len(items))
	for _, item := range items {
		if !item.IsObject() {
			return nil, ErrBadPayload
		}
		obj, ok := item.Value().(map[string]any)
		if !ok {
			return nil, ErrBadPayload
		}
		records = append(records, model.Record(obj))
	}
	return records, nil
}
