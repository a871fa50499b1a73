package recording

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// File names inside a recording directory.
const (
	MetadataFile = "metadata.yaml"
	MessagesFile = "messages.db"
)

// Metadata is the content of metadata.yaml.
type Metadata struct {
	ID           string     `yaml:"id"`
	Name         string     `yaml:"name"`
	RunID        string     `yaml:"run_id,omitempty"`
	Topic        string     `yaml:"topic"`
	Joints       []string   `yaml:"joints"`
	Period       Duration   `yaml:"period"`
	StartedAt    time.Time  `yaml:"started_at"`
	EndedAt      *time.Time `yaml:"ended_at,omitempty"`
	MessageCount int64      `yaml:"message_count"`
	Dropped      uint64     `yaml:"dropped,omitempty"`
	Complete     bool       `yaml:"complete"`
	Storage      string     `yaml:"storage"`
}

// Finished reports whether the recorder closed the recording. A finished
// recording may still be incomplete if commands were dropped or a write
// failed.
func (md Metadata) Finished() bool {
	return md.EndedAt != nil
}

// Duration is a time.Duration written as "10ms" in YAML.
type Duration time.Duration

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q", node.Line, s)
	}
	*d = Duration(v)
	return nil
}

// ReadMetadata loads metadata.yaml from dir.
func ReadMetadata(dir string) (Metadata, error) {
	var md Metadata
	data, err := os.ReadFile(filepath.Join(dir, MetadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return md, notFound("no %s in %s", MetadataFile, dir)
		}
		return md, fmt.Errorf("read metadata: %w", err)
	}
	if err := yaml.Unmarshal(data, &md); err != nil {
		return md, &Error{Code: ErrCodeInvalidMetadata, Message: dir, Err: err}
	}
	if md.ID == "" {
		return md, &Error{Code: ErrCodeInvalidMetadata, Message: fmt.Sprintf("%s: missing id", dir)}
	}
	if md.Storage == "" {
		md.Storage = MessagesFile
	}
	return md, nil
}

// WriteMetadata replaces metadata.yaml in dir atomically.
func WriteMetadata(dir string, md Metadata) error {
	data, err := yaml.Marshal(md)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".metadata-*.yaml")
	if err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write metadata: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, MetadataFile)); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}
