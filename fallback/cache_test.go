package fallback

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAvailabilityCacheLookupStore(t *testing.T) {
	cache := NewAvailabilityCache()

	_, known := cache.Lookup("npm")
	assert.False(t, known)

	cache.Store("npm", true)
	available, known := cache.Lookup("npm")
	assert.True(t, known)
	assert.True(t, available)

	cache.Store("npm", false)
	available, _ = cache.Lookup("npm")
	assert.False(t, available, "last writer wins")
}

func TestAvailabilityCacheConcurrentWrites(t *testing.T) {
	cache := NewAvailabilityCache()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			cache.Store("cargo", true)
		}()
		go func() {
			defer wg.Done()
			_, _ = cache.Lookup("cargo")
		}()
	}
	wg.Wait()

	available, known := cache.Lookup("cargo")
	assert.True(t, known)
	assert.True(t, available)
}
