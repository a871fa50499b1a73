// Package bus is the in-memory publish/subscribe transport for joint
// commands.
//
// Contract:
//   - Publish never blocks on a subscriber.
//   - Subscribers use bounded buffers; a full subscriber drops the message
//     and its Dropped counter grows.
//   - Attached(topic) is closed as soon as the topic has a subscriber. It is
//     replaced by a fresh channel when the last subscriber leaves.
package bus

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/roach88/jointstream/internal/ir"
)

//go:generate mockgen -destination mock_bus.go -package bus -write_package_comment=false . Bus

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("bus: closed")

// DefaultBuffer is used when Subscribe is given a non-positive buffer.
const DefaultBuffer = 64

// Bus carries joint commands from one publisher to any number of
// subscribers per topic.
type Bus interface {
	Publish(ctx context.Context, topic string, cmd ir.JointCommand) error
	Subscribe(topic string, buffer int) *Subscription
	SubscriberCount(topic string) int
	Attached(topic string) <-chan struct{}
	Close() error
}

// Subscription receives the commands published on one topic.
type Subscription struct {
	topic   string
	id      uint64
	ch      chan ir.JointCommand
	dropped atomic.Uint64
	once    sync.Once
	bus     *Memory
}

// C returns the delivery channel. It is closed on Unsubscribe or when the
// bus closes.
func (s *Subscription) C() <-chan ir.JointCommand {
	return s.ch
}

// Topic returns the subscribed topic.
func (s *Subscription) Topic() string {
	return s.topic
}

// Dropped returns how many messages were discarded because the buffer was full.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// Unsubscribe detaches the subscription and closes its channel.
// Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s.bus != nil {
		s.bus.remove(s)
		return
	}
	s.once.Do(func() { close(s.ch) })
}

type topicState struct {
	subs     map[uint64]*Subscription
	attached chan struct{}
}

// Memory is the in-process Bus implementation. It owns no goroutines.
type Memory struct {
	mu     sync.RWMutex
	topics map[string]*topicState
	seq    atomic.Uint64
	closed bool
}

// New returns an empty in-memory bus.
func New() *Memory {
	return &Memory{topics: map[string]*topicState{}}
}

// topic returns the state for name, creating it. Caller holds mu for writing.
func (b *Memory) topic(name string) *topicState {
	ts, ok := b.topics[name]
	if !ok {
		ts = &topicState{subs: map[uint64]*Subscription{}, attached: make(chan struct{})}
		b.topics[name] = ts
	}
	return ts
}

// Publish delivers cmd to every current subscriber of topic. Having no
// subscribers is not an error.
func (b *Memory) Publish(ctx context.Context, topic string, cmd ir.JointCommand) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// Sends are non-blocking, so holding the read lock keeps Unsubscribe from
	// closing a channel mid-send without stalling the publisher.
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	ts, ok := b.topics[topic]
	if !ok {
		return nil
	}
	for _, sub := range ts.subs {
		select {
		case sub.ch <- cmd:
		default:
			sub.dropped.Add(1)
		}
	}
	return nil
}

// Subscribe attaches a new subscriber to topic. On a closed bus the returned
// subscription's channel is already closed.
func (b *Memory) Subscribe(topic string, buffer int) *Subscription {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	sub := &Subscription{
		topic: topic,
		id:    b.seq.Add(1),
		ch:    make(chan ir.JointCommand, buffer),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		sub.once.Do(func() { close(sub.ch) })
		return sub
	}
	sub.bus = b
	ts := b.topic(topic)
	ts.subs[sub.id] = sub
	if len(ts.subs) == 1 {
		close(ts.attached)
	}
	return sub
}

func (b *Memory) remove(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ts, ok := b.topics[sub.topic]; ok {
		if _, present := ts.subs[sub.id]; present {
			delete(ts.subs, sub.id)
			if len(ts.subs) == 0 && !b.closed {
				ts.attached = make(chan struct{})
			}
		}
	}
	sub.once.Do(func() { close(sub.ch) })
}

// SubscriberCount returns the number of subscribers currently on topic.
func (b *Memory) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if ts, ok := b.topics[topic]; ok {
		return len(ts.subs)
	}
	return 0
}

// Attached returns a channel that is closed once topic has a subscriber.
func (b *Memory) Attached(topic string) <-chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.topic(topic).attached
}

// Close detaches every subscriber and rejects further publishes.
func (b *Memory) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for _, ts := range b.topics {
		for id, sub := range ts.subs {
			delete(ts.subs, id)
			sub.once.Do(func() { close(sub.ch) })
		}
	}
	return nil
}

var _ Bus = (*Memory)(nil)
