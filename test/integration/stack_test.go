//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jsamuelsen/quote-sync/internal/adapters/clients"
	"github.com/jsamuelsen/quote-sync/internal/adapters/clients/acl"
	httpadapter "github.com/jsamuelsen/quote-sync/internal/adapters/http"
	"github.com/jsamuelsen/quote-sync/internal/adapters/http/handlers"
	"github.com/jsamuelsen/quote-sync/internal/adapters/render"
	"github.com/jsamuelsen/quote-sync/internal/adapters/storage/memory"
	"github.com/jsamuelsen/quote-sync/internal/adapters/storage/sqlite"
	"github.com/jsamuelsen/quote-sync/internal/app"
	"github.com/jsamuelsen/quote-sync/internal/platform/config"
	"github.com/jsamuelsen/quote-sync/internal/platform/telemetry"
	"github.com/jsamuelsen/quote-sync/internal/ports"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// post mirrors the remote posts resource.
type post struct {
	ID     int    `json:"id,omitempty"`
	UserID int    `json:"userId"`
	Title  string `json:"title"`
	Body   string `json:"body"`
}

// fakeRemote serves GET and POST /posts like the public JSON test API.
type fakeRemote struct {
	mu      sync.Mutex
	posts   []post
	pushed  []post
	failing bool

	server *httptest.Server
}

func newFakeRemote() *fakeRemote {
	r := &fakeRemote{}
	r.server = httptest.NewServer(http.HandlerFunc(r.serve))

	return r
}

func (r *fakeRemote) serve(w http.ResponseWriter, req *http.Request) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if req.URL.Path != "/posts" {
		http.NotFound(w, req)
		return
	}

	if r.failing {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	switch req.Method {
	case http.MethodGet:
		_ = json.NewEncoder(w).Encode(r.posts)
	case http.MethodPost:
		var p post
		if err := json.NewDecoder(req.Body).Decode(&p); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		p.ID = 101 + len(r.pushed)
		r.pushed = append(r.pushed, p)

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(p)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (r *fakeRemote) setPosts(titles ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.posts = r.posts[:0]
	for i, t := range titles {
		r.posts = append(r.posts, post{ID: i + 1, UserID: 1, Title: t, Body: "body"})
	}
}

func (r *fakeRemote) setFailing(failing bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.failing = failing
}

func (r *fakeRemote) pushedTitles() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	titles := make([]string, len(r.pushed))
	for i, p := range r.pushed {
		titles[i] = p.Title
	}

	return titles
}

func (r *fakeRemote) pushedPosts() []post {
	r.mu.Lock()
	defer r.mu.Unlock()

	return slices.Clone(r.pushed)
}

func (r *fakeRemote) close() {
	r.server.Close()
}

// stackOptions tweak the in-process service.
type stackOptions struct {
	dir        string
	fetchLimit int
	pushOnAdd  bool
	auth       *config.AuthConfig
}

// stack is the service wired the way cmd/service wires it, over a fake remote
// and a SQLite file in dir.
type stack struct {
	remote *fakeRemote
	source *acl.QuoteClient
	db     *sqlite.Store
	store  *app.QuoteStore
	quotes *app.QuoteService
	sync   *app.SyncService
	server *httptest.Server
}

func testClientConfig(baseURL string) *clients.Config {
	return &clients.Config{
		ServiceName: "remote-quotes",
		BaseURL:     baseURL,
		Timeout:     2 * time.Second,
		Retry: config.RetryConfig{
			MaxAttempts:     2,
			InitialInterval: 10 * time.Millisecond,
			MaxInterval:     50 * time.Millisecond,
			Multiplier:      2.0,
		},
		Circuit: config.CircuitBreakerConfig{
			MaxFailures:   10,
			Timeout:       100 * time.Millisecond,
			HalfOpenLimit: 1,
		},
		Logger: discardLogger(),
	}
}

func startStack(ctx context.Context, opts stackOptions) (*stack, error) {
	s := &stack{remote: newFakeRemote()}

	var err error

	s.db, err = sqlite.Open(ctx, filepath.Join(opts.dir, "quotes.db"))
	if err != nil {
		s.close()
		return nil, fmt.Errorf("opening store: %w", err)
	}

	s.store = app.NewQuoteStore(app.QuoteStoreConfig{KV: s.db, SeedDefaults: true, Logger: discardLogger()})
	if err := s.store.Load(ctx); err != nil {
		s.close()
		return nil, err
	}

	client, err := clients.New(testClientConfig(s.remote.server.URL))
	if err != nil {
		s.close()
		return nil, err
	}

	s.source = acl.NewQuoteClient(acl.QuoteClientConfig{Client: client, Logger: discardLogger()})

	registry := prometheus.NewRegistry()

	metrics, err := telemetry.NewSyncMetrics(registry)
	if err != nil {
		s.close()
		return nil, err
	}

	s.sync = app.NewSyncService(app.SyncServiceConfig{
		Store:      s.store,
		Source:     s.source,
		Metrics:    metrics,
		FetchLimit: opts.fetchLimit,
		PushOnAdd:  opts.pushOnAdd,
		Logger:     discardLogger(),
	})

	s.quotes = app.NewQuoteService(app.QuoteServiceConfig{
		Store:     s.store,
		Settings:  s.db,
		Session:   memory.New(),
		Publisher: s.sync,
		Logger:    discardLogger(),
	})

	health := ports.NewHealthRegistry()
	if err := health.Register(s.db); err != nil {
		s.close()
		return nil, err
	}

	if err := health.Register(s.source); err != nil {
		s.close()
		return nil, err
	}

	engine := gin.New()
	httpadapter.SetupRouter(engine, httpadapter.RouterConfig{
		Logger:        discardLogger(),
		AuthConfig:    opts.auth,
		AppConfig:     &config.AppConfig{Name: "quote-sync-it"},
		HealthHandler: handlers.NewHealthHandler(health, handlers.NewBuildInfo("it", "none", "")).WithGatherer(registry).WithQuoteCount(s.store.Len),
		QuoteHandler:  handlers.NewQuoteHandler(s.quotes, render.HTML{}),
		SyncHandler:   handlers.NewSyncHandler(s.sync),
		Timeout:       5 * time.Second,
	})

	s.server = httptest.NewServer(engine)

	return s, nil
}

func (s *stack) close() {
	if s.server != nil {
		s.server.Close()
	}

	if s.db != nil {
		_ = s.db.Close()
	}

	s.remote.close()
}
