// Package ir provides the wire-level types shared by every jointstream package.
//
// This package contains type definitions and their canonical encoding only.
// All other internal packages import ir; ir imports nothing internal. This
// keeps the message model the foundational layer with no circular
// dependencies.
//
// Key design constraints:
//   - A JointSet is fixed for the lifetime of a run once constructed
//   - JointCommand position/velocity slices are either empty or len(Names)
//   - Joint names are NFC normalized at construction
//   - All JSON tags use snake_case
//   - Time on the wire is a Stamp (sec + nanosec), never a float
package ir
