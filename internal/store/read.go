package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrRecordingNotFound is returned when a recording id is not in the store.
var ErrRecordingNotFound = errors.New("recording not found")

// ReadRecording returns the recording row for id.
func (s *Store) ReadRecording(ctx context.Context, id string) (Recording, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, topic, joint_names, period_ns, started_at, engine_version, ir_version
		FROM recordings
		WHERE id = ?
	`, id)
	rec, err := scanRecording(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Recording{}, fmt.Errorf("%w: %s", ErrRecordingNotFound, id)
	}
	return rec, err
}

// ReadRecordings returns every recording in the store ordered by start time.
//
// Returns an empty slice (not nil) if there are none.
func (s *Store) ReadRecordings(ctx context.Context) ([]Recording, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, topic, joint_names, period_ns, started_at, engine_version, ir_version
		FROM recordings
		ORDER BY started_at ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query recordings: %w", err)
	}
	defer rows.Close()

	recs := []Recording{}
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recordings: %w", err)
	}
	return recs, nil
}

// ReadMessages returns all messages of a recording in arrival order.
//
// Returns an empty slice (not nil) if the recording has no messages.
func (s *Store) ReadMessages(ctx context.Context, recordingID string) ([]Message, error) {
	return s.ReadMessagesAfter(ctx, recordingID, 0)
}

// ReadMessagesAfter returns the messages with seq > afterSeq in arrival order.
// Used to tail a recording that is still being written.
func (s *Store) ReadMessagesAfter(ctx context.Context, recordingID string, afterSeq int64) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, stamp_sec, stamp_nanosec, frame_id, names, position, velocity, digest
		FROM messages
		WHERE recording_id = ? AND seq > ?
		ORDER BY seq ASC
	`, recordingID, afterSeq)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	msgs := []Message{}
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return msgs, nil
}

// CountMessages returns the number of messages in a recording.
func (s *Store) CountMessages(ctx context.Context, recordingID string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE recording_id = ?`, recordingID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecording(row scanner) (Recording, error) {
	var rec Recording
	var namesJSON, startedAt string
	var periodNS int64
	if err := row.Scan(
		&rec.ID,
		&rec.Name,
		&rec.Topic,
		&namesJSON,
		&periodNS,
		&startedAt,
		&rec.EngineVersion,
		&rec.IRVersion,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rec, err
		}
		return rec, fmt.Errorf("scan recording: %w", err)
	}

	names, err := unmarshalNames(namesJSON)
	if err != nil {
		return rec, fmt.Errorf("recording %s: %w", rec.ID, err)
	}
	rec.Joints = names
	rec.Period = time.Duration(periodNS)
	if rec.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
		return rec, fmt.Errorf("recording %s: started_at: %w", rec.ID, err)
	}
	return rec, nil
}

func scanMessage(row scanner) (Message, error) {
	var msg Message
	var namesJSON, posJSON, velJSON string
	cmd := &msg.Command
	if err := row.Scan(
		&msg.Seq,
		&cmd.Stamp.Sec,
		&cmd.Stamp.Nanosec,
		&cmd.FrameID,
		&namesJSON,
		&posJSON,
		&velJSON,
		&msg.Digest,
	); err != nil {
		return msg, fmt.Errorf("scan message: %w", err)
	}

	var err error
	if cmd.Names, err = unmarshalNames(namesJSON); err != nil {
		return msg, fmt.Errorf("message %d: %w", msg.Seq, err)
	}
	if cmd.Position, err = unmarshalFloats(posJSON); err != nil {
		return msg, fmt.Errorf("message %d: %w", msg.Seq, err)
	}
	if cmd.Velocity, err = unmarshalFloats(velJSON); err != nil {
		return msg, fmt.Errorf("message %d: %w", msg.Seq, err)
	}
	return msg, nil
}
