package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/quote-sync/internal/domain"
	"github.com/jsamuelsen/quote-sync/internal/ports"
)

var _ ports.KeyValueStore = (*Store)(nil)

func TestStore_GetSetDelete(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.Get(ctx, "lastQuote")
	require.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, s.Set(ctx, "lastQuote", `{"text":"a","category":"b"}`))

	got, err := s.Get(ctx, "lastQuote")
	require.NoError(t, err)
	assert.JSONEq(t, `{"text":"a","category":"b"}`, got)

	require.NoError(t, s.Set(ctx, "lastQuote", "replaced"))
	got, err = s.Get(ctx, "lastQuote")
	require.NoError(t, err)
	assert.Equal(t, "replaced", got)

	require.NoError(t, s.Delete(ctx, "lastQuote"))
	require.NoError(t, s.Delete(ctx, "lastQuote"))

	_, err = s.Get(ctx, "lastQuote")
	assert.True(t, domain.IsNotFound(err))
}

func TestStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	s := New()

	var wg sync.WaitGroup

	for i := range 50 {
		wg.Go(func() {
			key := fmt.Sprintf("k%d", i%5)
			_ = s.Set(ctx, key, "v")
			_, _ = s.Get(ctx, key)
		})
	}

	wg.Wait()

	for i := range 5 {
		v, err := s.Get(ctx, fmt.Sprintf("k%d", i))
		require.NoError(t, err)
		assert.Equal(t, "v", v)
	}
}
