package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompletion_FirstWriteWins(t *testing.T) {
	c := NewCompletion()

	_, set := c.Reason()
	assert.False(t, set)

	require.NoError(t, c.Complete("a"))
	<-c.Done()

	err := c.Complete("b")
	require.Error(t, err)
	assert.True(t, IsCompletionConflict(err))

	reason, set := c.Reason()
	assert.True(t, set)
	assert.Equal(t, "a", reason, "second write must not overwrite")
}

func TestCompletion_TryComplete(t *testing.T) {
	c := NewCompletion()

	assert.True(t, c.TryComplete(ReasonInterrupted))
	assert.False(t, c.TryComplete(ReasonTickLimit))

	reason, _ := c.Reason()
	assert.Equal(t, ReasonInterrupted, reason)
}

func TestCompletion_ConcurrentWriters(t *testing.T) {
	c := NewCompletion()
	const writers = 50

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if c.TryComplete("writer") {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
}
