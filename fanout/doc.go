// Package fanout runs the gather workers of one turn concurrently and merges
// their partial results back into the session state.
//
// Each worker receives its own clone of the snapshot and writes only the slot
// owned by its role. A failing, panicking or timed out worker is recorded as a
// *core.Failure and never aborts its siblings. When the turn context itself
// expires, in-flight workers are abandoned and nothing is merged.
package fanout
