package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFixedRunIDGenerator_ReturnsSameID(t *testing.T) {
	gen := NewFixedRunIDGenerator("test-run-123")

	assert.Equal(t, "test-run-123", gen.Generate())
	assert.Equal(t, "test-run-123", gen.Generate())
}

func TestFixedRunIDGenerator_EmptyIDDefault(t *testing.T) {
	gen := NewFixedRunIDGenerator("")

	assert.Equal(t, "test-run-default", gen.Generate())
}

func TestFixedRunIDGenerator_ThreadSafe(t *testing.T) {
	gen := NewFixedRunIDGenerator("thread-safe-id")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				assert.Equal(t, "thread-safe-id", gen.Generate())
			}
		}()
	}
	wg.Wait()
}
