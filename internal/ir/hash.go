package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainCommand = "jointstream/command/v1"
	DomainStream  = "jointstream/stream/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// CommandDigest computes the content-addressed ID of a single command.
func CommandDigest(c JointCommand) (string, error) {
	canonical, err := MarshalCommand(c)
	if err != nil {
		return "", fmt.Errorf("CommandDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainCommand, canonical), nil
}

// StreamDigest accumulates a digest over an ordered command stream.
//
// Stamps are hashed relative to the first command so that two runs of the
// same trajectory started at different wall-clock times produce the same
// digest. The zero value is not usable; call NewStreamDigest.
type StreamDigest struct {
	h     hash.Hash
	first *Stamp
	count int
}

// NewStreamDigest creates an empty stream digest.
func NewStreamDigest() *StreamDigest {
	h := sha256.New()
	h.Write([]byte(DomainStream))
	h.Write([]byte{0x00})
	return &StreamDigest{h: h}
}

// Add appends one command to the digest.
func (d *StreamDigest) Add(c JointCommand) error {
	if d.first == nil {
		s := c.Stamp
		d.first = &s
	}
	rel := c
	offset := c.Stamp.Sub(*d.first)
	rel.Stamp = Stamp{Sec: int32(offset / 1e9), Nanosec: uint32(offset % 1e9)}

	canonical, err := MarshalCommand(rel)
	if err != nil {
		return fmt.Errorf("StreamDigest: command %d: %w", d.count, err)
	}
	d.h.Write(canonical)
	d.h.Write([]byte{'\n'})
	d.count++
	return nil
}

// Count returns the number of commands added.
func (d *StreamDigest) Count() int {
	return d.count
}

// Sum returns the hex digest of everything added so far.
func (d *StreamDigest) Sum() string {
	return hex.EncodeToString(d.h.Sum(nil))
}

// MustCommandDigest is like CommandDigest but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustCommandDigest(c JointCommand) string {
	id, err := CommandDigest(c)
	if err != nil {
		panic(err)
	}
	return id
}
