package bus

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/jointstream/internal/ir"
)

func cmdAt(sec int32) ir.JointCommand {
	return ir.JointCommand{
		Stamp:    ir.Stamp{Sec: sec},
		FrameID:  ir.DefaultFrameID,
		Names:    []string{"pan", "tilt"},
		Position: []float64{0, 0},
	}
}

func TestPublishFanOut(t *testing.T) {
	b := New()
	a := b.Subscribe("/joint_states", 4)
	c := b.Subscribe("/joint_states", 4)
	other := b.Subscribe("/other", 4)

	require.NoError(t, b.Publish(context.Background(), "/joint_states", cmdAt(1)))

	assert.Equal(t, int32(1), (<-a.C()).Stamp.Sec)
	assert.Equal(t, int32(1), (<-c.C()).Stamp.Sec)
	assert.Len(t, other.C(), 0)
}

func TestPublishWithoutSubscribers(t *testing.T) {
	b := New()
	assert.NoError(t, b.Publish(context.Background(), "/joint_states", cmdAt(1)))
}

func TestPublishDropsWhenFull(t *testing.T) {
	b := New()
	sub := b.Subscribe("/joint_states", 2)

	for i := int32(0); i < 5; i++ {
		require.NoError(t, b.Publish(context.Background(), "/joint_states", cmdAt(i)))
	}

	assert.Equal(t, uint64(3), sub.Dropped())
	assert.Equal(t, int32(0), (<-sub.C()).Stamp.Sec)
	assert.Equal(t, int32(1), (<-sub.C()).Stamp.Sec)
}

func TestAttachedLifecycle(t *testing.T) {
	b := New()
	attached := b.Attached("/joint_states")

	select {
	case <-attached:
		t.Fatal("attached before any subscriber")
	default:
	}
	assert.Equal(t, 0, b.SubscriberCount("/joint_states"))

	sub := b.Subscribe("/joint_states", 1)
	<-attached
	assert.Equal(t, 1, b.SubscriberCount("/joint_states"))

	sub.Unsubscribe()
	sub.Unsubscribe()
	assert.Equal(t, 0, b.SubscriberCount("/joint_states"))

	select {
	case <-b.Attached("/joint_states"):
		t.Fatal("attached after last subscriber left")
	default:
	}

	_, open := <-sub.C()
	assert.False(t, open)
}

func TestClose(t *testing.T) {
	b := New()
	sub := b.Subscribe("/joint_states", 1)

	require.NoError(t, b.Close())
	require.NoError(t, b.Close())

	_, open := <-sub.C()
	assert.False(t, open)
	assert.ErrorIs(t, b.Publish(context.Background(), "/joint_states", cmdAt(1)), ErrClosed)

	late := b.Subscribe("/joint_states", 1)
	_, open = <-late.C()
	assert.False(t, open)
	late.Unsubscribe()
}

func TestPublishCancelledContext(t *testing.T) {
	b := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, b.Publish(ctx, "/joint_states", cmdAt(1)), context.Canceled)
}

func TestConcurrentSubscribeAndPublish(t *testing.T) {
	b := New()
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			_ = b.Publish(context.Background(), "/joint_states", cmdAt(int32(i)))
		}
	}()
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sub := b.Subscribe("/joint_states", 1)
			sub.Unsubscribe()
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, b.SubscriberCount("/joint_states"))
}
