package id

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestULIDGenerator(t *testing.T) {
	gen := NewULIDGenerator()

	t.Run("Generate", func(t *testing.T) {
		id := gen.Generate()
		assert.Len(t, id, 26)
		assert.Equal(t, strings.ToUpper(id), id)
	})

	t.Run("Monotonicity", func(t *testing.T) {
		ids := gen.GenerateN(100)
		seen := make(map[string]bool, len(ids))
		for i, id := range ids {
			assert.False(t, seen[id], "duplicate ID: %s", id)
			seen[id] = true
			if i > 0 {
				assert.Less(t, ids[i-1], id)
			}
		}
	})

	t.Run("Time", func(t *testing.T) {
		ts, err := Time(gen.Generate())
		require.NoError(t, err)
		assert.WithinDuration(t, time.Now(), ts, time.Second)
	})
}

func TestIsValidULID(t *testing.T) {
	assert.True(t, IsValidULID(NewULID()))

	for _, invalid := range []string{"", "invalid", "01ARZ3NDEKTSV4RRFFQ69G5FA"} {
		assert.False(t, IsValidULID(invalid), invalid)
	}
}

func TestNewULID_Concurrent(t *testing.T) {
	const n = 200
	var (
		mu   sync.Mutex
		seen = make(map[string]struct{}, n)
		wg   sync.WaitGroup
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := NewULID()
			mu.Lock()
			seen[id] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, seen, n)
}
