package scheduler

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryReserveRelease(t *testing.T) {
	r := NewRegistry()

	assert.True(t, r.TryReserve("u1"))
	assert.False(t, r.TryReserve("u1"), "double reservation must fail")
	assert.True(t, r.Active("u1"))
	assert.Equal(t, 1, r.Len())

	r.Release("u1")
	assert.False(t, r.Active("u1"))
	assert.True(t, r.TryReserve("u1"), "released slot is reusable")
}

func TestRegistryReleaseUnknownIsNoop(t *testing.T) {
	r := NewRegistry()
	r.Release("ghost")
	assert.Zero(t, r.Len())
}

func TestRegistrySnapshotIsCopy(t *testing.T) {
	r := NewRegistry()
	require.True(t, r.TryReserve("u1"))

	snap := r.Snapshot()
	require.Contains(t, snap, "u1")
	assert.WithinDuration(t, time.Now().UTC(), snap["u1"], 5*time.Second)

	delete(snap, "u1")
	assert.True(t, r.Active("u1"), "mutating the snapshot must not touch the registry")
}

func TestRegistryConcurrentReserveAdmitsExactlyOne(t *testing.T) {
	r := NewRegistry()

	const goroutines = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r.TryReserve("u1") {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, admitted)
	assert.Equal(t, 1, r.Len())
}
