// Package rtdb is a thin REST client for the remote JSON database that
// holds the todo collection.
package rtdb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Makepad-fr/tada-cloud/internal/model"
)

// DefaultBaseURL is the production database.
const DefaultBaseURL = "https://react-native-todo-2caa3-default-rtdb.europe-west1.firebasedatabase.app"

const collection = "todos"

// Operation names carried by NetworkError and log lines.
const (
	OpList   = "list"
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// NetworkError reports any failed round trip: transport error, non-2xx
// status or an undecodable body.
type NetworkError struct {
	Op         string
	Method     string
	Path       string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("rtdb %s: %s %s: status %d: %v", e.Op, e.Method, e.Path, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("rtdb %s: %s %s: %v", e.Op, e.Method, e.Path, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Client talks to one fixed database root.
type Client struct {
	base   *url.URL
	token  string
	http   *http.Client
	logger *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithToken sends token as the auth query parameter on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = strings.TrimSpace(token) }
}

// WithLogger sets the request logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New builds a client rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, fmt.Errorf("base url is empty")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q: scheme must be http or https", baseURL)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	c := &Client{
		base:   u,
		http:   http.DefaultClient,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// List fetches the whole collection in the order the server listed its keys.
// Each record's key becomes its ID, overriding any stored id field.
func (c *Client) List(ctx context.Context) ([]model.Todo, error) {
	var items []model.Todo
	err := c.do(ctx, OpList, http.MethodGet, c.collectionURL(), nil, func(r io.Reader) error {
		var derr error
		items, derr = decodeCollection(r)
		return derr
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// Create stores a new record and returns the key the server generated.
func (c *Client) Create(ctx context.Context, title string) (string, error) {
	var resp struct {
		Name string `json:"name"`
	}
	body := struct {
		Title string `json:"title"`
	}{Title: title}
	err := c.do(ctx, OpCreate, http.MethodPost, c.collectionURL(), body, func(r io.Reader) error {
		if err := json.NewDecoder(r).Decode(&resp); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		if resp.Name == "" {
			return fmt.Errorf("response has no generated key")
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return resp.Name, nil
}

// Update patches the record's title.
func (c *Client) Update(ctx context.Context, id, title string) error {
	body := model.Todo{ID: id, Title: title}
	return c.do(ctx, OpUpdate, http.MethodPatch, c.recordURL(id), body, nil)
}

// Delete removes the record.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, OpDelete, http.MethodDelete, c.recordURL(id), nil, nil)
}

func (c *Client) collectionURL() *url.URL {
	return c.resolve(collection + ".json")
}

func (c *Client) recordURL(id string) *url.URL {
	return c.resolve(collection + "/" + id + ".json")
}

func (c *Client) resolve(rel string) *url.URL {
	u := *c.base
	u.Path = c.base.Path + "/" + rel
	u.RawPath = ""
	if c.token != "" {
		q := u.Query()
		q.Set("auth", c.token)
		u.RawQuery = q.Encode()
	}
	return &u
}

// do performs one round trip. decode is nil for calls whose body is an
// ack the caller does not read.
func (c *Client) do(ctx context.Context, op, method string, u *url.URL, body any, decode func(io.Reader) error) error {
	nerr := func(status int, err error) error {
		return &NetworkError{Op: op, Method: method, Path: u.Path, StatusCode: status, Err: err}
	}

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nerr(0, fmt.Errorf("encode body: %w", err))
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rdr)
	if err != nil {
		return nerr(0, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("rtdb request failed",
			zap.String("op", op), zap.String("method", method), zap.String("path", u.Path), zap.Error(err))
		return nerr(0, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("rtdb request",
		zap.String("op", op),
		zap.String("method", method),
		zap.String("path", u.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nerr(resp.StatusCode, fmt.Errorf("unexpected status: %s", errorDetail(resp.Body)))
	}
	if decode == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := decode(resp.Body); err != nil {
		return nerr(resp.StatusCode, err)
	}
	return nil
}

// errorDetail pulls the {"error": "..."} message the database returns on
// failures, falling back to a trimmed body snippet.
func errorDetail(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 4<<10))
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(b, &e) == nil && e.Error != "" {
		return e.Error
	}
	s := strings.TrimSpace(string(b))
	if s == "" {
		return "empty body"
	}
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}

// decodeCollection reads a key -> record object, keeping key order. A null
// document is an empty collection.
func decodeCollection(r io.Reader) ([]model.Todo, error) {
	dec := json.NewDecoder(r)
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if tok == nil {
		return []model.Todo{}, nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("decode response: expected object, got %v", tok)
	}

	items := []model.Todo{}
	seen := make(map[string]int)
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		key, ok := kt.(string)
		if !ok {
			return nil, fmt.Errorf("decode response: expected key, got %v", kt)
		}
		var rec model.Todo
		if err := dec.Decode(&rec); err != nil {
			return nil, fmt.Errorf("decode record %q: %w", key, err)
		}
		rec.ID = key
		// Later duplicates win, as in a JSON object.
		if i, dup := seen[key]; dup {
			items[i] = rec
			continue
		}
		seen[key] = len(items)
		items = append(items, rec)
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return items, nil
}
