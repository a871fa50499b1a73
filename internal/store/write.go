package store

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/jointstream/internal/ir"
)

// CreateRecording inserts a recording row.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - duplicate IDs are silently ignored.
//
// EngineVersion and IRVersion default to the running build's versions.
func (s *Store) CreateRecording(ctx context.Context, rec Recording) error {
	namesJSON, err := marshalNames(rec.Joints)
	if err != nil {
		return fmt.Errorf("create recording: %w", err)
	}
	if rec.EngineVersion == "" {
		rec.EngineVersion = ir.EngineVersion
	}
	if rec.IRVersion == "" {
		rec.IRVersion = ir.SchemaVersion
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO recordings
		(id, name, topic, joint_names, period_ns, started_at, engine_version, ir_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		rec.ID,
		rec.Name,
		rec.Topic,
		namesJSON,
		int64(rec.Period),
		rec.StartedAt.UTC().Format(time.RFC3339Nano),
		rec.EngineVersion,
		rec.IRVersion,
	)
	if err != nil {
		return fmt.Errorf("create recording: %w", err)
	}
	return nil
}

// AppendMessage stores one command at seq.
// Uses ON CONFLICT DO NOTHING for idempotency - rewriting a seq is silently ignored.
//
// The command is stored as received: array lengths are not validated, but
// values must be finite because they are encoded as canonical JSON.
func (s *Store) AppendMessage(ctx context.Context, recordingID string, seq int64, cmd ir.JointCommand) error {
	return s.AppendMessages(ctx, recordingID, seq, []ir.JointCommand{cmd})
}

// AppendMessages stores cmds at consecutive seq numbers starting at firstSeq
// in a single transaction.
func (s *Store) AppendMessages(ctx context.Context, recordingID string, firstSeq int64, cmds []ir.JointCommand) error {
	if len(cmds) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("append messages: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO messages
		(recording_id, seq, stamp_sec, stamp_nanosec, frame_id, names, position, velocity, digest)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("append messages: prepare: %w", err)
	}
	defer stmt.Close()

	for i, cmd := range cmds {
		seq := firstSeq + int64(i)
		row, err := encodeMessage(cmd)
		if err != nil {
			return fmt.Errorf("append message %d: %w", seq, err)
		}
		if _, err := stmt.ExecContext(ctx,
			recordingID,
			seq,
			cmd.Stamp.Sec,
			cmd.Stamp.Nanosec,
			cmd.FrameID,
			row.names,
			row.position,
			row.velocity,
			row.digest,
		); err != nil {
			return fmt.Errorf("append message %d: %w", seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("append messages: commit: %w", err)
	}
	return nil
}

type encodedMessage struct {
	names, position, velocity, digest string
}

func encodeMessage(cmd ir.JointCommand) (encodedMessage, error) {
	var row encodedMessage
	var err error
	if row.names, err = marshalNames(cmd.Names); err != nil {
		return row, err
	}
	if row.position, err = marshalFloats(cmd.Position); err != nil {
		return row, err
	}
	if row.velocity, err = marshalFloats(cmd.Velocity); err != nil {
		return row, err
	}
	if row.digest, err = ir.CommandDigest(cmd); err != nil {
		return row, err
	}
	return row, nil
}
