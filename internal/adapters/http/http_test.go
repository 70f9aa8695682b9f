package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/quote-sync/internal/adapters/http/handlers"
	"github.com/jsamuelsen/quote-sync/internal/adapters/render"
	"github.com/jsamuelsen/quote-sync/internal/adapters/storage/memory"
	"github.com/jsamuelsen/quote-sync/internal/app"
	"github.com/jsamuelsen/quote-sync/internal/platform/config"
	"github.com/jsamuelsen/quote-sync/internal/ports"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testServerConfig() *config.ServerConfig {
	return &config.ServerConfig{
		Host:           "127.0.0.1",
		Port:           0,
		ReadTimeout:    5 * time.Second,
		WriteTimeout:   10 * time.Second,
		IdleTimeout:    30 * time.Second,
		RequestTimeout: 5 * time.Second,
		MaxRequestSize: 1 << 20,
	}
}

func TestServer_New(t *testing.T) {
	cfg := testServerConfig()
	cfg.Host = "0.0.0.0"
	cfg.Port = 8080

	srv := New(cfg, discardLogger())

	require.NotNil(t, srv.Engine())
	assert.Equal(t, "0.0.0.0:8080", srv.Addr())
	assert.Equal(t, defaultShutdownTimeout, srv.shutdownTimeout)
}

// runServer starts srv and waits until it is accepting connections.
func runServer(t *testing.T, ctx context.Context, srv *Server, tasks ...Task) <-chan error {
	t.Helper()

	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx, tasks...) }()

	require.Eventually(t, func() bool { return srv.Addr() != "127.0.0.1:0" }, 2*time.Second, 5*time.Millisecond)

	return done
}

func TestServer_RunUntilCancelled(t *testing.T) {
	srv := New(testServerConfig(), discardLogger())
	srv.Engine().GET("/-/live", func(c *gin.Context) { c.Status(http.StatusOK) })

	var taskStopped atomic.Bool

	ctx, cancel := context.WithCancel(context.Background())
	done := runServer(t, ctx, srv, func(ctx context.Context) error {
		<-ctx.Done()
		taskStopped.Store(true)

		return nil
	})

	resp, err := http.Get("http://" + srv.Addr() + "/-/live")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}

	assert.True(t, taskStopped.Load())
	assert.Equal(t, "127.0.0.1:0", srv.Addr())
}

func TestServer_FailingTaskStopsServer(t *testing.T) {
	srv := New(testServerConfig(), discardLogger())
	boom := errors.New("sync loop crashed")

	release := make(chan struct{})
	done := runServer(t, context.Background(), srv,
		func(context.Context) error { return nil },
		func(context.Context) error {
			<-release
			return boom
		},
	)

	close(release)

	select {
	case err := <-done:
		require.ErrorIs(t, err, boom)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServer_ListenError(t *testing.T) {
	cfg := testServerConfig()
	cfg.Host = "256.0.0.1"

	err := New(cfg, discardLogger()).Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "listening on")
}

func TestServer_MaxBodySize(t *testing.T) {
	cfg := testServerConfig()
	cfg.MaxRequestSize = 16

	srv := New(cfg, discardLogger())
	srv.Engine().POST("/import", func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}

		c.Status(http.StatusOK)
	})

	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "under limit", body: `[]`, want: http.StatusOK},
		{name: "over limit", body: strings.Repeat("x", 64), want: http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			srv.Engine().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/import", strings.NewReader(tt.body)))

			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestNewDefaultRouterConfig(t *testing.T) {
	cfg := &config.Config{
		App:    config.AppConfig{Name: "quote-sync", Version: "1.0.0", Environment: "test"},
		Server: config.ServerConfig{RequestTimeout: 3 * time.Second},
		Auth:   config.AuthConfig{Enabled: true, SubjectHeader: "X-User-ID"},
	}
	health := handlers.NewHealthHandler(ports.NewHealthRegistry(), handlers.BuildInfo{})

	rc := NewDefaultRouterConfig(discardLogger(), cfg, health)

	assert.Equal(t, &cfg.App, rc.AppConfig)
	assert.Equal(t, &cfg.Auth, rc.AuthConfig)
	assert.Equal(t, health, rc.HealthHandler)
	assert.Equal(t, 3*time.Second, rc.Timeout)
	assert.Nil(t, rc.QuoteHandler)

	cfg.Server.RequestTimeout = 0
	assert.Equal(t, DefaultRequestTimeout, NewDefaultRouterConfig(discardLogger(), cfg, nil).Timeout)
}

// newQuoteRouter builds the full middleware chain over in-memory stores.
func newQuoteRouter(t *testing.T, auth *config.AuthConfig) *gin.Engine {
	t.Helper()

	ctx := context.Background()
	store := app.NewQuoteStore(app.QuoteStoreConfig{KV: memory.New(), SeedDefaults: true, Logger: discardLogger()})
	require.NoError(t, store.Load(ctx))

	service := app.NewQuoteService(app.QuoteServiceConfig{
		Store:    store,
		Settings: memory.New(),
		Session:  memory.New(),
		Logger:   discardLogger(),
	})

	engine := gin.New()
	SetupRouter(engine, RouterConfig{
		Logger:        discardLogger(),
		AuthConfig:    auth,
		AppConfig:     &config.AppConfig{Name: "quote-sync-test"},
		HealthHandler: handlers.NewHealthHandler(ports.NewHealthRegistry(), handlers.BuildInfo{}),
		QuoteHandler:  handlers.NewQuoteHandler(service, render.HTML{}),
		Timeout:       5 * time.Second,
	})

	return engine
}

func TestSetupRouter_Routes(t *testing.T) {
	engine := newQuoteRouter(t, nil)

	routes := make(map[string]bool)
	for _, r := range engine.Routes() {
		routes[r.Method+" "+r.Path] = true
	}

	for _, want := range []string{
		"GET /-/live",
		"GET /-/ready",
		"GET /api/v1/quotes",
		"POST /api/v1/quotes",
		"GET /api/v1/quotes/random",
		"GET /api/v1/quotes/last",
		"GET /api/v1/quotes/render",
		"GET /api/v1/quotes/export",
		"POST /api/v1/quotes/import",
		"GET /api/v1/categories",
		"GET /api/v1/filter",
		"PUT /api/v1/filter",
	} {
		assert.True(t, routes[want], "missing route: %s", want)
	}

	assert.False(t, routes["POST /api/v1/sync"], "sync route needs a SyncHandler")
}

func TestSetupRouter_SeededQuotes(t *testing.T) {
	engine := newQuoteRouter(t, nil)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/categories", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"categories":["Motivation","Inspiration","Life"]}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.NotEmpty(t, w.Header().Get("X-Correlation-ID"))
}

func TestSetupRouter_AuthOnWriteRoutes(t *testing.T) {
	auth := &config.AuthConfig{Enabled: true, SubjectHeader: "X-User-ID", RolesHeader: "X-User-Roles"}
	engine := newQuoteRouter(t, auth)

	body := `{"text":"Done is better than perfect.","category":"Work"}`

	tests := []struct {
		name    string
		method  string
		target  string
		subject string
		want    int
	}{
		{name: "reads stay open", method: http.MethodGet, target: "/api/v1/quotes", want: http.StatusOK},
		{name: "add without subject", method: http.MethodPost, target: "/api/v1/quotes", want: http.StatusUnauthorized},
		{name: "add with subject", method: http.MethodPost, target: "/api/v1/quotes", subject: "alice", want: http.StatusCreated},
		{name: "filter without subject", method: http.MethodPut, target: "/api/v1/filter", want: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")

			if tt.subject != "" {
				req.Header.Set("X-User-ID", tt.subject)
			}

			w := httptest.NewRecorder()
			engine.ServeHTTP(w, req)

			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestSetupRouter_NilHandlers(t *testing.T) {
	require.NotPanics(t, func() {
		SetupRouter(gin.New(), RouterConfig{
			Logger:    discardLogger(),
			AppConfig: &config.AppConfig{Name: "quote-sync-test"},
		})
	})
}
