package state

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SetAndGet(t *testing.T) {
	s := NewStore()

	assert.True(t, s.Set("/kitchen/lamp/power", "on"))

	v, ok := s.Get("/kitchen/lamp/power")
	require.True(t, ok)
	assert.Equal(t, "on", v)

	_, ok = s.Get("/kitchen/lamp/missing")
	assert.False(t, ok)
}

func TestStore_ChangeGating(t *testing.T) {
	s := NewStore()

	assert.True(t, s.Set("/a/b/c", "5"))
	// Same raw value twice in a row reports no change on the second call.
	assert.False(t, s.Set("/a/b/c", "5"))
	assert.True(t, s.Set("/a/b/c", "6"))
	assert.False(t, s.Set("/a/b/c", "6"))
}

func TestStore_RawTextEquality(t *testing.T) {
	s := NewStore()

	// "5" and "5.0" coerce to the same number but differ as raw text.
	assert.True(t, s.Set("/a/b/c", "5"))
	assert.True(t, s.Set("/a/b/c", "5.0"))
}

func TestStore_RejectsMalformedTopics(t *testing.T) {
	s := NewStore()

	assert.False(t, s.Set("kitchen/lamp/power", "on"))
	assert.False(t, s.Set("", "on"))
	assert.Equal(t, 0, s.Len())
}

func TestStore_SnapshotIsCopy(t *testing.T) {
	s := NewStore()
	s.Set("/a/b/c", "1")

	snap := s.Snapshot()
	s.Set("/a/b/c", "2")

	assert.Equal(t, "1", snap["/a/b/c"])

	v, _ := s.Get("/a/b/c")
	assert.Equal(t, "2", v)
}

func TestStore_WithPrefix(t *testing.T) {
	s := NewStore()
	s.Set("/kitchen/lamp/power", "on")
	s.Set("/kitchen/lamp/brightness", "80")
	s.Set("/bedroom/lamp/power", "off")

	matched := s.WithPrefix("/kitchen/lamp/")
	assert.Len(t, matched, 2)
	assert.Equal(t, "on", matched["/kitchen/lamp/power"])
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s := NewStore()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.Set(fmt.Sprintf("/room%d/device/attr", n), fmt.Sprintf("%d", j))
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = s.Snapshot()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 8, s.Len())
}
