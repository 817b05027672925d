// Package ir holds the serialization layer shared by the harness, the store
// and the CLI: canonical JSON and content digests of traces and runs.
//
// Key design constraints:
//   - NO floats and NO null in canonical documents
//   - All JSON keys use snake_case
//   - Logical clocks (seq) only, never wall-clock timestamps
//
// ir imports nothing internal.
package ir
