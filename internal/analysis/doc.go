// Package analysis turns a recording into per-joint position and velocity
// series and renders them as a text table, CSV or JSON.
//
// Time is re-zeroed so the earliest stamp in the recording is t=0. Every
// message must carry position and velocity arrays of length 0 or one entry
// per joint name; anything else fails the whole analysis with
// FORMAT_MISMATCH and nothing is rendered.
package analysis
