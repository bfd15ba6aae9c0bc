package rtdb

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Makepad-fr/tada-cloud/internal/emulator"
	"github.com/Makepad-fr/tada-cloud/internal/model"
)

func newEmulated(t *testing.T, opts ...emulator.Option) (*emulator.Server, *Client) {
	t.Helper()
	s, err := emulator.New(opts...)
	require.NoError(t, err)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	c, err := New(ts.URL, WithHTTPClient(ts.Client()))
	require.NoError(t, err)
	return s, c
}

func TestNewRejectsBadBaseURL(t *testing.T) {
	for _, raw := range []string{"", "   ", "ftp://example.com", "://nope"} {
		_, err := New(raw)
		assert.Error(t, err, raw)
	}
}

func TestRoundTrip(t *testing.T) {
	s, c := newEmulated(t)
	ctx := context.Background()

	items, err := c.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)

	id, err := c.Create(ctx, "Buy milk")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	require.NoError(t, c.Update(ctx, id, "Buy oat milk"))

	items, err = c.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.Todo{{ID: id, Title: "Buy oat milk"}}, items)

	require.NoError(t, c.Delete(ctx, id))
	assert.Empty(t, s.Items())
}

func TestListKeepsServerKeyOrder(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/todos.json", r.URL.Path)
		io.WriteString(w, `{"zz":{"title":"one"},"aa":{"title":"two","id":"stale"},"mm":{"title":"three"}}`)
	}))
	defer ts.Close()
	c, err := New(ts.URL)
	require.NoError(t, err)

	items, err := c.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []model.Todo{
		{ID: "zz", Title: "one"},
		{ID: "aa", Title: "two"},
		{ID: "mm", Title: "three"},
	}, items)
}

func TestTokenIsSentAsAuthParam(t *testing.T) {
	var gotAuth, gotPath string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.URL.Query().Get("auth")
		gotPath = r.URL.Path
		io.WriteString(w, `null`)
	}))
	defer ts.Close()
	c, err := New(ts.URL+"/root/", WithToken(" secret "))
	require.NoError(t, err)

	require.NoError(t, c.Delete(context.Background(), "k1"))
	assert.Equal(t, "secret", gotAuth)
	assert.Equal(t, "/root/todos/k1.json", gotPath)
}

func TestFailuresAreNetworkErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		call    func(*Client) error
		status  int
	}{
		{
			name: "server error on list",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				io.WriteString(w, `{"error":"boom"}`)
			},
			call:   func(c *Client) error { _, err := c.List(context.Background()); return err },
			status: http.StatusInternalServerError,
		},
		{
			name: "malformed list body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, `[1,2,3]`)
			},
			call:   func(c *Client) error { _, err := c.List(context.Background()); return err },
			status: http.StatusOK,
		},
		{
			name: "create without key",
			handler: func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, `{}`)
			},
			call:   func(c *Client) error { _, err := c.Create(context.Background(), "x"); return err },
			status: http.StatusOK,
		},
		{
			name: "unauthorized update",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				io.WriteString(w, `{"error":"Permission denied"}`)
			},
			call:   func(c *Client) error { return c.Update(context.Background(), "k", "x") },
			status: http.StatusUnauthorized,
		},
		{
			name: "not found delete",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			},
			call:   func(c *Client) error { return c.Delete(context.Background(), "k") },
			status: http.StatusNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(tt.handler)
			defer ts.Close()
			c, err := New(ts.URL)
			require.NoError(t, err)

			err = tt.call(c)
			var nerr *NetworkError
			require.True(t, errors.As(err, &nerr), "got %v", err)
			assert.Equal(t, tt.status, nerr.StatusCode)
		})
	}
}

func TestTransportFailure(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	c, err := New(url)
	require.NoError(t, err)
	_, err = c.List(context.Background())

	var nerr *NetworkError
	require.True(t, errors.As(err, &nerr))
	assert.Equal(t, 0, nerr.StatusCode)
	assert.Equal(t, OpList, nerr.Op)
}

func TestErrorDetail(t *testing.T) {
	assert.Equal(t, "boom", errorDetail(strings.NewReader(`{"error":"boom"}`)))
	assert.Equal(t, "empty body", errorDetail(strings.NewReader("")))
	assert.Equal(t, "plain text", errorDetail(strings.NewReader(" plain text\n")))
}

func TestDecodeCollectionNull(t *testing.T) {
	items, err := decodeCollection(strings.NewReader("null"))
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}
