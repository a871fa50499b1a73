// Package recording captures the commands published on a bus topic into a
// recording directory and locates recordings for later analysis.
//
// A recording directory holds:
//
//	metadata.yaml  what was recorded and whether the recorder finished
//	messages.db    the commands in arrival order (see internal/store)
//
// metadata.yaml is written with complete=false when recording starts and
// rewritten by Recorder.Close. A recording whose recorder was killed keeps
// complete=false; readers still open it but log a warning.
package recording
