// Package rest reads attribute values from an HTTP data service.
//
// The service exposes one collection per table:
//
//	GET {base}/{table}?columns=a,b[&order_by=a&target=x][&limit=n] -> {"rows":[{"key":"..","values":[".."]}]}
//	GET {base}/{table}/{key}?columns=a,b                             -> {"key":"..","values":[".."]}, 404 when absent
//	GET {base}/health                                                 -> 2xx when ready
package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kailas-cloud/simsearch/internal/db"
)

// Compile-time check: Client implements db.Connector.
var _ db.Connector = (*Client)(nil)

// Config holds REST source settings.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	// RequestsPerSecond throttles calls to the service; 0 disables throttling.
	RequestsPerSecond float64
	Burst             int
}

// Client implements db.Connector over HTTP.
type Client struct {
	base    *url.URL
	token   string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a REST connector.
func NewClient(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", cfg.BaseURL)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return &Client{
		base:    base,
		token:   cfg.Token,
		limiter: limiter,
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:    100,
				IdleConnTimeout: 90 * time.Second,
			},
		},
	}, nil
}

type rowDTO struct {
	Key    string    `json:"key"`
	Values []*string `json:"values"`
}

type rowsDTO struct {
	Rows []rowDTO `json:"rows"`
}

func (r rowDTO) row(width int) db.Row {
	out := db.Row{Key: r.Key, Values: make([]string, width)}
	for i := 0; i < width && i < len(r.Values); i++ {
		if r.Values[i] != nil {
			out.Values[i] = strings.TrimSpace(*r.Values[i])
		}
	}
	return out
}

// Ping calls the health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.get(ctx, c.base.JoinPath("health"))
	if err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	_ = resp.Body.Close()
	if resp.StatusCode >= 300 {
		return &db.Error{Op: db.OpPing, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	return nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// ExecuteQuery fetches the collection in one request.
func (c *Client) ExecuteQuery(ctx context.Context, q *db.Query) (db.Rows, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if q.Key != "" {
		v, err := c.single(ctx, q)
		if err != nil {
			return nil, err
		}
		if v == nil {
			return db.SliceRows(nil), nil
		}
		return db.SliceRows([]db.Row{*v}), nil
	}

	u := c.base.JoinPath(q.Table)
	params := url.Values{"columns": {strings.Join(q.ValueColumns, ",")}}
	if q.OrderBy != nil {
		params.Set("order_by", q.OrderBy.Column)
		params.Set("target", strconv.FormatFloat(q.OrderBy.Target, 'g', -1, 64))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	u.RawQuery = params.Encode()

	var body rowsDTO
	if err := c.decode(ctx, u, &body); err != nil {
		return nil, err
	}
	rows := make([]db.Row, len(body.Rows))
	for i, r := range body.Rows {
		rows[i] = r.row(len(q.ValueColumns))
	}
	return db.SliceRows(rows), nil
}

// FindSingletonValue fetches one entity.
func (c *Client) FindSingletonValue(ctx context.Context, q *db.Query) (string, error) {
	if err := q.Validate(); err != nil {
		return "", err
	}
	r, err := c.single(ctx, q)
	if err != nil {
		return "", err
	}
	if r == nil || r.Value() == "" {
		return "", db.ErrKeyNotFound
	}
	return r.Value(), nil
}

func (c *Client) single(ctx context.Context, q *db.Query) (*db.Row, error) {
	u := c.base.JoinPath(q.Table, q.Key)
	u.RawQuery = url.Values{"columns": {strings.Join(q.ValueColumns, ",")}}.Encode()

	var body rowDTO
	if err := c.decode(ctx, u, &body); err != nil {
		if errors.Is(err, errNotFound) {
			return nil, nil
		}
		return nil, err
	}
	r := body.row(len(q.ValueColumns))
	if r.Key == "" {
		r.Key = q.Key
	}
	return &r, nil
}

var errNotFound = fmt.Errorf("rest: %w", db.ErrKeyNotFound)

func (c *Client) decode(ctx context.Context, u *url.URL, v any) error {
	resp, err := c.get(ctx, u)
	if err != nil {
		return &db.Error{Op: db.OpRemote, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &db.Error{Op: db.OpRemote, Err: fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))}
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return &db.Error{Op: db.OpRemote, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func (c *Client) get(ctx context.Context, u *url.URL) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", u.Path, err)
	}
	return resp, nil
}
