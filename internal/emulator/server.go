// Package emulator serves the todo collection over the same REST surface as
// the remote database, backed by a local JSON file. It is used for offline
// development and as the fake backend in tests.
package emulator

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Makepad-fr/tada-cloud/internal/model"
	"github.com/Makepad-fr/tada-cloud/internal/store/jsonstore"
)

// Server holds the collection in insertion order. Keys are UUIDv7 so
// lexical order matches creation order.
type Server struct {
	mu     sync.Mutex
	items  []model.Todo
	path   string
	token  string
	logger *zap.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithFile persists the collection to path after every write.
func WithFile(path string) Option {
	return func(s *Server) { s.path = path }
}

// WithToken rejects requests whose auth query parameter differs.
func WithToken(token string) Option {
	return func(s *Server) { s.token = token }
}

// WithLogger sets the access logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New creates a server, loading existing records when a file is configured.
func New(opts ...Option) (*Server, error) {
	s := &Server{logger: zap.NewNop(), items: []model.Todo{}}
	for _, opt := range opts {
		opt(s)
	}
	if s.path != "" {
		items, err := jsonstore.Load(s.path)
		if err != nil {
			return nil, err
		}
		s.items = items
	}
	return s, nil
}

// Seed appends records as if they had been created, returning their keys.
func (s *Server) Seed(titles ...string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(titles))
	for _, t := range titles {
		k := newKey()
		s.items = append(s.items, model.Todo{ID: k, Title: t})
		keys = append(keys, k)
	}
	return keys
}

// Items returns a copy of the stored records.
func (s *Server) Items() []model.Todo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Todo, len(s.items))
	copy(out, s.items)
	return out
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(accessLog(s.logger))
	r.Use(s.authenticate)

	r.Get("/todos.json", s.list)
	r.Post("/todos.json", s.create)
	r.Patch("/todos/{id}.json", s.update)
	r.Delete("/todos/{id}.json", s.remove)
	return r
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token != "" && r.URL.Query().Get("auth") != s.token {
			writeError(w, http.StatusUnauthorized, "Permission denied")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.items) == 0 {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, orderedCollection(s.items))
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title *string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Title == nil {
		writeError(w, http.StatusBadRequest, "Invalid data; couldn't parse JSON object, array, or value.")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	key := newKey()
	next := append(clone(s.items), model.Todo{ID: key, Title: *body.Title})
	if !s.commit(w, next) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"name": key})
}

func (s *Server) update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var patch map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil || patch == nil {
		writeError(w, http.StatusBadRequest, "Invalid data; couldn't parse JSON object.")
		return
	}
	var title string
	if raw, ok := patch["title"]; ok {
		if err := json.Unmarshal(raw, &title); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid data; title must be a string.")
			return
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	next := clone(s.items)
	found := false
	for i := range next {
		if next[i].ID == id {
			if _, ok := patch["title"]; ok {
				next[i].Title = title
			}
			found = true
			break
		}
	}
	if !found {
		// PATCH on a missing path creates it.
		next = append(next, model.Todo{ID: id, Title: title})
	}
	if !s.commit(w, next) {
		return
	}
	writeJSON(w, http.StatusOK, patch)
}

func (s *Server) remove(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	defer s.mu.Unlock()
	next := make([]model.Todo, 0, len(s.items))
	for _, it := range s.items {
		if it.ID != id {
			next = append(next, it)
		}
	}
	if !s.commit(w, next) {
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

// commit persists next and swaps it in. Must hold s.mu.
func (s *Server) commit(w http.ResponseWriter, next []model.Todo) bool {
	if s.path != "" {
		if err := jsonstore.Save(s.path, next); err != nil {
			s.logger.Error("persist collection", zap.String("path", s.path), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "Internal error")
			return false
		}
	}
	s.items = next
	return true
}

func clone(items []model.Todo) []model.Todo {
	out := make([]model.Todo, len(items))
	copy(out, items)
	return out
}

func newKey() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}

// orderedCollection marshals as a JSON object whose keys keep slice order.
type orderedCollection []model.Todo

func (c orderedCollection) MarshalJSON() ([]byte, error) {
	buf := []byte{'{'}
	for i, it := range c {
		if i > 0 {
			buf = append(buf, ',')
		}
		k, err := json.Marshal(it.ID)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(it)
		if err != nil {
			return nil, err
		}
		buf = append(buf, k...)
		buf = append(buf, ':')
		buf = append(buf, v...)
	}
	return append(buf, '}'), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func accessLog(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("requestID", middleware.GetReqID(r.Context())),
			)
		})
	}
}
