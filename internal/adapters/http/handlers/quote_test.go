package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/quote-sync/internal/adapters/http/dto"
	"github.com/jsamuelsen/quote-sync/internal/adapters/render"
	"github.com/jsamuelsen/quote-sync/internal/adapters/storage/memory"
	"github.com/jsamuelsen/quote-sync/internal/app"
	"github.com/jsamuelsen/quote-sync/internal/domain"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type quoteFixture struct {
	engine  *gin.Engine
	store   *app.QuoteStore
	service *app.QuoteService
}

// setupQuoteHandler wires a QuoteHandler over in-memory stores seeded with quotes.
func setupQuoteHandler(t *testing.T, quotes ...domain.Quote) *quoteFixture {
	t.Helper()

	ctx := context.Background()
	logger := discardLogger()

	store := app.NewQuoteStore(app.QuoteStoreConfig{KV: memory.New(), Logger: logger})
	require.NoError(t, store.Load(ctx))
	require.NoError(t, store.AppendAll(ctx, quotes))

	service := app.NewQuoteService(app.QuoteServiceConfig{
		Store:    store,
		Settings: memory.New(),
		Session:  memory.New(),
		Intn:     func(int) int { return 0 },
		Logger:   logger,
	})

	engine := gin.New()
	NewQuoteHandler(service, render.HTML{}).RegisterRoutes(engine.Group("/api/v1"))

	return &quoteFixture{engine: engine, store: store, service: service}
}

func (f *quoteFixture) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)

	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))

	return v
}

var sampleQuotes = []domain.Quote{
	{Text: "Make it work, make it right, make it fast.", Category: "Engineering"},
	{Text: "The obstacle is the way.", Category: "Stoicism"},
	{Text: "Premature optimization is the root of all evil.", Category: "Engineering"},
}

func TestQuoteHandler_AddQuote(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
		wantField  string
		wantLen    int
	}{
		{
			name:       "adds trimmed quote",
			body:       `{"text":"  Keep going.  ","category":" Motivation "}`,
			wantStatus: http.StatusCreated,
			wantLen:    1,
		},
		{
			name:       "missing category",
			body:       `{"text":"Keep going."}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   dto.ErrorCodeValidation,
			wantField:  "category",
		},
		{
			name:       "whitespace text",
			body:       `{"text":"   ","category":"Motivation"}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   dto.ErrorCodeValidation,
			wantField:  "text",
		},
		{
			name:       "malformed body",
			body:       `{"text":`,
			wantStatus: http.StatusBadRequest,
			wantCode:   dto.ErrorCodeBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupQuoteHandler(t)

			w := f.do(t, http.MethodPost, "/api/v1/quotes", tt.body)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantLen, f.store.Len())

			if tt.wantStatus == http.StatusCreated {
				got := decode[dto.QuoteResponse](t, w)
				assert.Equal(t, dto.QuoteResponse{Text: "Keep going.", Category: "Motivation"}, got)

				return
			}

			resp := decode[dto.ErrorResponse](t, w)
			assert.Equal(t, tt.wantCode, resp.Error.Code)

			if tt.wantField != "" {
				assert.Contains(t, resp.Error.Details, tt.wantField)
			}
		})
	}
}

func TestQuoteHandler_ListQuotes(t *testing.T) {
	t.Run("filters by category preserving order", func(t *testing.T) {
		f := setupQuoteHandler(t, sampleQuotes...)

		w := f.do(t, http.MethodGet, "/api/v1/quotes?category=Engineering", "")

		require.Equal(t, http.StatusOK, w.Code)

		page := decode[dto.PaginatedResponse[dto.QuoteResponse]](t, w)
		assert.Equal(t, []dto.QuoteResponse{
			dto.NewQuoteResponse(sampleQuotes[0]),
			dto.NewQuoteResponse(sampleQuotes[2]),
		}, page.Items)
		assert.False(t, page.HasMore)
	})

	t.Run("empty category uses saved filter", func(t *testing.T) {
		f := setupQuoteHandler(t, sampleQuotes...)
		_, err := f.service.SetFilter(context.Background(), "Stoicism")
		require.NoError(t, err)

		page := decode[dto.PaginatedResponse[dto.QuoteResponse]](t, f.do(t, http.MethodGet, "/api/v1/quotes", ""))

		require.Len(t, page.Items, 1)
		assert.Equal(t, "Stoicism", page.Items[0].Category)
	})

	t.Run("unknown category is empty not an error", func(t *testing.T) {
		f := setupQuoteHandler(t, sampleQuotes...)

		w := f.do(t, http.MethodGet, "/api/v1/quotes?category=Nope", "")

		require.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, decode[dto.PaginatedResponse[dto.QuoteResponse]](t, w).Items)
	})

	t.Run("walks pages with the cursor", func(t *testing.T) {
		f := setupQuoteHandler(t, sampleQuotes...)

		first := decode[dto.PaginatedResponse[dto.QuoteResponse]](t,
			f.do(t, http.MethodGet, "/api/v1/quotes?category=all&limit=2", ""))

		require.True(t, first.HasMore)
		require.Len(t, first.Items, 2)

		second := decode[dto.PaginatedResponse[dto.QuoteResponse]](t,
			f.do(t, http.MethodGet, "/api/v1/quotes?category=all&limit=2&cursor="+first.NextCursor, ""))

		assert.False(t, second.HasMore)
		assert.Equal(t, []dto.QuoteResponse{dto.NewQuoteResponse(sampleQuotes[2])}, second.Items)
	})

	t.Run("cursor from another category is rejected", func(t *testing.T) {
		f := setupQuoteHandler(t, sampleQuotes...)
		cursor := dto.PageCursor{Category: "Stoicism", Offset: 1}.Encode()

		w := f.do(t, http.MethodGet, "/api/v1/quotes?category=Engineering&cursor="+cursor, "")

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("cursor is rejected once the saved filter changes", func(t *testing.T) {
		f := setupQuoteHandler(t, sampleQuotes...)

		first := decode[dto.PaginatedResponse[dto.QuoteResponse]](t,
			f.do(t, http.MethodGet, "/api/v1/quotes?limit=1", ""))
		require.True(t, first.HasMore)

		_, err := f.service.SetFilter(context.Background(), "Engineering")
		require.NoError(t, err)

		w := f.do(t, http.MethodGet, "/api/v1/quotes?limit=1&cursor="+first.NextCursor, "")

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("limit out of range", func(t *testing.T) {
		f := setupQuoteHandler(t, sampleQuotes...)

		w := f.do(t, http.MethodGet, "/api/v1/quotes?limit=1000", "")

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrorCodeValidation, decode[dto.ErrorResponse](t, w).Error.Code)
	})
}

func TestQuoteHandler_RandomAndLast(t *testing.T) {
	t.Run("no quotes available", func(t *testing.T) {
		f := setupQuoteHandler(t)

		w := f.do(t, http.MethodGet, "/api/v1/quotes/random", "")

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "no quotes available", decode[dto.ErrorResponse](t, w).Error.Message)
	})

	t.Run("last viewed before any pick", func(t *testing.T) {
		f := setupQuoteHandler(t, sampleQuotes...)

		w := f.do(t, http.MethodGet, "/api/v1/quotes/last", "")

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("random pick becomes last viewed", func(t *testing.T) {
		f := setupQuoteHandler(t, sampleQuotes...)

		w := f.do(t, http.MethodGet, "/api/v1/quotes/random?category=Stoicism", "")
		require.Equal(t, http.StatusOK, w.Code)

		picked := decode[dto.QuoteResponse](t, w)
		assert.Equal(t, "Stoicism", picked.Category)

		last := decode[dto.QuoteResponse](t, f.do(t, http.MethodGet, "/api/v1/quotes/last", ""))
		assert.Equal(t, picked, last)
	})
}

func TestQuoteHandler_RenderQuotes(t *testing.T) {
	f := setupQuoteHandler(t,
		domain.Quote{Text: "a < b", Category: "Math"},
		domain.Quote{Text: "x", Category: "Other"},
	)

	w := f.do(t, http.MethodGet, "/api/v1/quotes/render?category=Math", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Equal(t, "<p>a &lt; b - <em>Math</em></p>", w.Body.String())
}

func TestQuoteHandler_ExportQuotes(t *testing.T) {
	t.Run("plain json", func(t *testing.T) {
		f := setupQuoteHandler(t, sampleQuotes[:1]...)

		w := f.do(t, http.MethodGet, "/api/v1/quotes/export", "")

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, `attachment; filename="quotes.json"`, w.Header().Get("Content-Disposition"))
		assert.Equal(t,
			"[\n  {\n    \"text\": \"Make it work, make it right, make it fast.\",\n    \"category\": \"Engineering\"\n  }\n]\n",
			w.Body.String())
	})

	t.Run("gzip", func(t *testing.T) {
		f := setupQuoteHandler(t, sampleQuotes...)

		w := f.do(t, http.MethodGet, "/api/v1/quotes/export?gzip=true", "")

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, `attachment; filename="quotes.json.gz"`, w.Header().Get("Content-Disposition"))

		zr, err := gzip.NewReader(bytes.NewReader(w.Body.Bytes()))
		require.NoError(t, err)

		var got []domain.Quote
		require.NoError(t, json.NewDecoder(zr).Decode(&got))
		assert.Equal(t, sampleQuotes, got)
	})

	t.Run("bad gzip flag", func(t *testing.T) {
		f := setupQuoteHandler(t)

		assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/v1/quotes/export?gzip=maybe", "").Code)
	})
}

func TestQuoteHandler_ImportQuotes(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantLen    int
		wantField  string
	}{
		{
			name:       "appends array",
			body:       `[{"text":"x","category":"y"}]`,
			wantStatus: http.StatusOK,
			wantLen:    2,
		},
		{
			name:       "malformed json",
			body:       `[{"text":"x"`,
			wantStatus: http.StatusBadRequest,
			wantLen:    1,
		},
		{
			name:       "not an array",
			body:       `{"text":"x","category":"y"}`,
			wantStatus: http.StatusBadRequest,
			wantLen:    1,
		},
		{
			name:       "invalid element rejects whole file",
			body:       `[{"text":"ok","category":"y"},{"text":"","category":"y"}]`,
			wantStatus: http.StatusBadRequest,
			wantLen:    1,
			wantField:  "quotes[1].text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupQuoteHandler(t, sampleQuotes[:1]...)

			w := f.do(t, http.MethodPost, "/api/v1/quotes/import", tt.body)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantLen, f.store.Len())

			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, dto.ImportResponse{Imported: 1, Total: 2}, decode[dto.ImportResponse](t, w))
			}

			if tt.wantField != "" {
				assert.Contains(t, decode[dto.ErrorResponse](t, w).Error.Details, tt.wantField)
			}
		})
	}
}

func TestQuoteHandler_CategoriesAndFilter(t *testing.T) {
	f := setupQuoteHandler(t, sampleQuotes...)

	cats := decode[dto.CategoriesResponse](t, f.do(t, http.MethodGet, "/api/v1/categories", ""))
	assert.Equal(t, []string{"Engineering", "Stoicism"}, cats.Categories)

	filter := decode[dto.FilterResponse](t, f.do(t, http.MethodGet, "/api/v1/filter", ""))
	assert.Equal(t, domain.CategoryAll, filter.Category)

	w := f.do(t, http.MethodPut, "/api/v1/filter", `{"category":"Stoicism"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Stoicism", decode[dto.FilterResponse](t, w).Category)

	filter = decode[dto.FilterResponse](t, f.do(t, http.MethodGet, "/api/v1/filter", ""))
	assert.Equal(t, "Stoicism", filter.Category)

	w = f.do(t, http.MethodPut, "/api/v1/filter", `{"category":""}`)
	assert.Equal(t, domain.CategoryAll, decode[dto.FilterResponse](t, w).Category)
}

func TestQuoteHandler_WriteMiddleware(t *testing.T) {
	ctx := context.Background()
	store := app.NewQuoteStore(app.QuoteStoreConfig{KV: memory.New(), Logger: discardLogger()})
	require.NoError(t, store.Load(ctx))

	service := app.NewQuoteService(app.QuoteServiceConfig{
		Store: store, Settings: memory.New(), Session: memory.New(), Logger: discardLogger(),
	})

	deny := func(c *gin.Context) {
		c.AbortWithStatus(http.StatusForbidden)
	}

	engine := gin.New()
	NewQuoteHandler(service, render.HTML{}).RegisterRoutes(engine.Group("/api/v1"), deny)

	tests := []struct {
		method string
		target string
		want   int
	}{
		{http.MethodGet, "/api/v1/quotes", http.StatusOK},
		{http.MethodGet, "/api/v1/categories", http.StatusOK},
		{http.MethodPost, "/api/v1/quotes", http.StatusForbidden},
		{http.MethodPost, "/api/v1/quotes/import", http.StatusForbidden},
		{http.MethodPut, "/api/v1/filter", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, httptest.NewRequest(tt.method, tt.target, strings.NewReader("{}")))

			assert.Equal(t, tt.want, w.Code)
		})
	}
}
