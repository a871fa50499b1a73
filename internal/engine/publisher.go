package engine

import (
	"context"
	"errors"

	"github.com/roach88/jointstream/internal/bus"
	"github.com/roach88/jointstream/internal/ir"
	"github.com/roach88/jointstream/internal/trajectory"
)

// CommandPublisher turns strategy samples into JointCommands and delivers
// them on one topic. It is used only from the Run goroutine.
type CommandPublisher struct {
	bus       bus.Bus
	topic     string
	frameID   string
	joints    ir.JointSet
	published int64
	closed    bool
}

// NewCommandPublisher creates a publisher for joints on topic.
func NewCommandPublisher(b bus.Bus, topic, frameID string, joints ir.JointSet) *CommandPublisher {
	return &CommandPublisher{bus: b, topic: topic, frameID: frameID, joints: joints}
}

// Build assembles a fresh command. Names and value slices are copied so a
// published command never aliases strategy or publisher memory.
func (p *CommandPublisher) Build(stamp ir.Stamp, s trajectory.Sample) ir.JointCommand {
	return ir.JointCommand{
		Stamp:    stamp,
		FrameID:  p.frameID,
		Names:    p.joints.Names(),
		Position: clone(s.Position),
		Velocity: clone(s.Velocity),
	}
}

// Publish builds, validates and sends one command for tick.
//
// A command that fails the length check is never sent and yields a
// FORMAT_MISMATCH error. A bus error yields PUBLISH_FAILURE. No
// acknowledgment is awaited.
func (p *CommandPublisher) Publish(ctx context.Context, tick int64, stamp ir.Stamp, s trajectory.Sample) (ir.JointCommand, error) {
	cmd := p.Build(stamp, s)
	if err := cmd.Validate(); err != nil {
		return cmd, NewFormatError(tick, err)
	}
	if p.closed {
		return cmd, NewPublishError(tick, p.topic, errors.New("publisher closed"))
	}
	if err := p.bus.Publish(ctx, p.topic, cmd); err != nil {
		return cmd, NewPublishError(tick, p.topic, err)
	}
	p.published++
	return cmd, nil
}

// Published returns the number of commands sent.
func (p *CommandPublisher) Published() int64 {
	return p.published
}

// Topic returns the output topic.
func (p *CommandPublisher) Topic() string {
	return p.topic
}

// Close releases the publisher. Later publishes fail.
func (p *CommandPublisher) Close() {
	p.closed = true
}

func clone(v []float64) []float64 {
	if len(v) == 0 {
		return []float64{}
	}
	out := make([]float64, len(v))
	copy(out, v)
	return out
}
