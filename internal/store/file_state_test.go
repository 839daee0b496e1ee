package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStateStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "learner.json")
	s := NewFileStateStore(path)

	_, err := s.Load(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Save(ctx, []byte(`{"tier_performance":{}}`)))
	require.NoError(t, s.Save(ctx, []byte(`{"tier_performance":{"1":{"attempts":2}}}`)))

	blob, err := s.Load(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"tier_performance":{"1":{"attempts":2}}}`, string(blob))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files should be cleaned up")
}

func TestFileStateStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewFileStateStore(filepath.Join(t.TempDir(), "learner.json"))
	assert.ErrorIs(t, s.Save(ctx, []byte(`{}`)), context.Canceled)
	_, err := s.Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFileStateStore_ConcurrentSaves(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "learner.json")
	s := NewFileStateStore(path)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			assert.NoError(t, s.Save(ctx, []byte(fmt.Sprintf(`{"n":%d}`, n))))
		}(i)
	}
	wg.Wait()

	blob, err := s.Load(ctx)
	require.NoError(t, err)
	var doc map[string]int
	require.NoError(t, json.Unmarshal(blob, &doc))
	assert.Contains(t, doc, "n")

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
