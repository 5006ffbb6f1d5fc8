// Package core provides the foundational domain types and contracts used by
// firegraph. It defines:
//
//   - State (the checkpointed session state shared by every engine step)
//   - Message (immutable conversation records)
//   - Role / Domain (typed worker capabilities and the slots they fill)
//   - Failure (the error taxonomy surfaced by the engine)
//   - CheckpointStore / Retriever (collaborator contracts)
//
// The package keeps orchestration and persistence out of scope and exposes
// small interfaces so stores, models and tools can be swapped freely.
package core
