package ir

// Version constants for the message schema and engine.
const (
	// SchemaVersion is the JointCommand wire schema version.
	SchemaVersion = "1"

	// EngineVersion is the jointstream engine version.
	EngineVersion = "0.1.0"
)
