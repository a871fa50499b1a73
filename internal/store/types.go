package store

import (
	"time"

	"github.com/roach88/jointstream/internal/ir"
)

// Recording describes one recorded run.
type Recording struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Topic         string        `json:"topic"`
	Joints        []string      `json:"joints"`
	Period        time.Duration `json:"period"`
	StartedAt     time.Time     `json:"started_at"`
	EngineVersion string        `json:"engine_version"`
	IRVersion     string        `json:"ir_version"`
}

// Message is one stored command with its arrival sequence number.
type Message struct {
	Seq     int64           `json:"seq"`
	Command ir.JointCommand `json:"command"`
	Digest  string          `json:"digest"`
}
