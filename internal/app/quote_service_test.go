package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/quote-sync/internal/adapters/render"
	"github.com/jsamuelsen/quote-sync/internal/adapters/storage/memory"
	"github.com/jsamuelsen/quote-sync/internal/domain"
	"github.com/jsamuelsen/quote-sync/internal/mocks"
)

var sampleQuotes = []domain.Quote{
	{Text: "m1", Category: "Motivation"},
	{Text: "l1", Category: "Life"},
	{Text: "m2", Category: "Motivation"},
}

type recordingPublisher struct {
	batches [][]domain.Quote
}

func (p *recordingPublisher) Publish(_ context.Context, quotes []domain.Quote) {
	p.batches = append(p.batches, quotes)
}

type serviceFixture struct {
	svc       *QuoteService
	store     *QuoteStore
	kv        *memory.Store
	settings  *memory.Store
	session   *memory.Store
	publisher *recordingPublisher
}

func newServiceFixture(t *testing.T, initial ...domain.Quote) *serviceFixture {
	t.Helper()

	f := &serviceFixture{
		kv:        memory.New(),
		settings:  memory.New(),
		session:   memory.New(),
		publisher: &recordingPublisher{},
	}

	f.store = newLoadedStore(t, f.kv, initial...)
	f.svc = NewQuoteService(QuoteServiceConfig{
		Store:     f.store,
		Settings:  f.settings,
		Session:   f.session,
		Publisher: f.publisher,
		Intn:      func(n int) int { return n - 1 },
		Logger:    discardLogger(),
	})

	return f
}

func TestNewQuoteService_PanicsWithoutDependencies(t *testing.T) {
	assert.Panics(t, func() {
		NewQuoteService(QuoteServiceConfig{Store: newLoadedStore(t, memory.New())})
	})
}

func TestQuoteService_AddQuote(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		category string
		want     domain.Quote
		wantErr  string
	}{
		{name: "trims input", text: "  Stay hungry.  ", category: " Life ", want: domain.Quote{Text: "Stay hungry.", Category: "Life"}},
		{name: "blank text", text: "   ", category: "Life", wantErr: "text"},
		{name: "blank category", text: "Stay hungry.", category: "", wantErr: "category"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newServiceFixture(t, sampleQuotes...)

			got, err := f.svc.AddQuote(context.Background(), tt.text, tt.category)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.True(t, domain.IsValidation(err))
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Equal(t, sampleQuotes, f.store.All())
				assert.Empty(t, f.publisher.batches)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want, f.store.All()[len(sampleQuotes)])
			assert.Equal(t, 4, f.svc.Count())
			assert.Equal(t, [][]domain.Quote{{tt.want}}, f.publisher.batches)
		})
	}
}

func TestQuoteService_RandomQuote(t *testing.T) {
	f := newServiceFixture(t, sampleQuotes...)
	ctx := context.Background()

	_, err := f.svc.LastViewed(ctx)
	require.True(t, domain.IsNotFound(err))

	got, err := f.svc.RandomQuote(ctx, "Motivation")
	require.NoError(t, err)
	assert.Equal(t, domain.Quote{Text: "m2", Category: "Motivation"}, got)

	last, err := f.svc.LastViewed(ctx)
	require.NoError(t, err)
	assert.Equal(t, got, last)

	got, err = f.svc.RandomQuote(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, sampleQuotes[2], got)

	_, err = f.svc.RandomQuote(ctx, "Nope")
	require.Error(t, err)
	assert.True(t, domain.IsNotFound(err))

	last, err = f.svc.LastViewed(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleQuotes[2], last, "a miss does not overwrite the last viewed quote")
}

func TestQuoteService_RandomQuote_EmptyStore(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.svc.RandomQuote(context.Background(), "")
	require.Error(t, err)
	assert.True(t, domain.IsNotFound(err))
}

func TestQuoteService_RandomQuote_SessionWriteFailureIsIgnored(t *testing.T) {
	session := mocks.NewMockKeyValueStore(t)
	session.EXPECT().Set(mock.Anything, LastQuoteKey, mock.Anything).Return(errors.New("session full"))

	svc := NewQuoteService(QuoteServiceConfig{
		Store:    newLoadedStore(t, memory.New(), sampleQuotes...),
		Settings: memory.New(),
		Session:  session,
		Intn:     func(int) int { return 0 },
		Logger:   discardLogger(),
	})

	got, err := svc.RandomQuote(context.Background(), "Life")
	require.NoError(t, err)
	assert.Equal(t, sampleQuotes[1], got)
}

func TestQuoteService_Filter(t *testing.T) {
	f := newServiceFixture(t, sampleQuotes...)
	ctx := context.Background()

	filter, err := f.svc.Filter(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryAll, filter)

	list, err := f.svc.ListQuotes(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, sampleQuotes, list)

	saved, err := f.svc.SetFilter(ctx, " Motivation ")
	require.NoError(t, err)
	assert.Equal(t, "Motivation", saved)

	stored, err := f.settings.Get(ctx, LastFilterKey)
	require.NoError(t, err)
	assert.Equal(t, "Motivation", stored)

	list, err = f.svc.ListQuotes(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []domain.Quote{sampleQuotes[0], sampleQuotes[2]}, list)

	list, err = f.svc.ListQuotes(ctx, "Life")
	require.NoError(t, err)
	assert.Equal(t, []domain.Quote{sampleQuotes[1]}, list, "an explicit category overrides the saved filter")

	resolved, err := f.svc.ListCategory(ctx, "  ")
	require.NoError(t, err)
	assert.Equal(t, "Motivation", resolved)

	resolved, err = f.svc.ListCategory(ctx, "Life")
	require.NoError(t, err)
	assert.Equal(t, "Life", resolved)

	saved, err = f.svc.SetFilter(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryAll, saved)
}

func TestQuoteService_Categories(t *testing.T) {
	f := newServiceFixture(t, sampleQuotes...)

	assert.Equal(t, []string{"Motivation", "Life"}, f.svc.Categories(context.Background()))
}

func TestQuoteService_Import(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantN     int
		wantErr   string
		wantTotal int
	}{
		{name: "appends array", body: `[{"text":"i1","category":"X"},{"text":"m1","category":"Motivation"}]`, wantN: 2, wantTotal: 5},
		{name: "empty array", body: `[]`, wantN: 0, wantTotal: 3},
		{name: "not json", body: `quotes!`, wantErr: "invalid JSON file"},
		{name: "object instead of array", body: `{"text":"a","category":"b"}`, wantErr: "invalid JSON file"},
		{name: "null", body: `null`, wantErr: "expected an array"},
		{name: "trailing data", body: `[] []`, wantErr: "trailing data"},
		{name: "invalid element", body: `[{"text":"ok","category":"X"},{"text":"","category":"X"}]`, wantErr: "quotes[1].text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newServiceFixture(t, sampleQuotes...)

			n, err := f.svc.Import(context.Background(), strings.NewReader(tt.body))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.True(t, domain.IsValidation(err))
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Equal(t, sampleQuotes, f.store.All())
				assert.Empty(t, f.publisher.batches)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantN, n)
			assert.Equal(t, tt.wantTotal, f.svc.Count())
			assert.Empty(t, f.publisher.batches, "imports are not pushed")
		})
	}
}

func TestQuoteService_Export(t *testing.T) {
	f := newServiceFixture(t, sampleQuotes[:2]...)

	var buf bytes.Buffer
	require.NoError(t, f.svc.Export(context.Background(), &buf))

	want := "[\n" +
		"  {\n    \"text\": \"m1\",\n    \"category\": \"Motivation\"\n  },\n" +
		"  {\n    \"text\": \"l1\",\n    \"category\": \"Life\"\n  }\n" +
		"]\n"
	assert.Equal(t, want, buf.String())

	empty := newServiceFixture(t)
	buf.Reset()
	require.NoError(t, empty.svc.Export(context.Background(), &buf))
	assert.Equal(t, "[]\n", buf.String())
}

func TestQuoteService_ExportImportRoundTrip(t *testing.T) {
	src := newServiceFixture(t, sampleQuotes...)

	var buf bytes.Buffer
	require.NoError(t, src.svc.ExportGzip(context.Background(), &buf))

	zr, err := gzip.NewReader(&buf)
	require.NoError(t, err)

	dst := newServiceFixture(t)
	n, err := dst.svc.Import(context.Background(), zr)
	require.NoError(t, err)
	require.NoError(t, zr.Close())

	assert.Equal(t, 3, n)
	assert.Equal(t, sampleQuotes, dst.store.All())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, io.ErrClosedPipe }

func TestQuoteService_Export_WriteError(t *testing.T) {
	f := newServiceFixture(t, sampleQuotes...)

	require.Error(t, f.svc.Export(context.Background(), failingWriter{}))
}

func TestQuoteService_Render(t *testing.T) {
	f := newServiceFixture(t, sampleQuotes...)
	ctx := context.Background()

	_, err := f.svc.SetFilter(ctx, "Life")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, f.svc.Render(ctx, "", render.HTML{}, &buf))
	assert.Equal(t, "<p>l1 - <em>Life</em></p>", strings.TrimSpace(buf.String()))
}
