// Package checkpoint houses implementations of core.CheckpointStore.
// The interface itself lives in the core package so the engine depends on the
// contract only; the wiring layer decides which backend to instantiate.
//
// Checkpoints are JSON snapshots of core.State keyed by thread id. Decoding
// ignores unknown fields, so snapshots written by newer versions stay
// readable. The sqlite sub-package provides a durable backend.
package checkpoint
