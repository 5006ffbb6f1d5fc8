// Package engine drives a conversation turn through the decide, gather and
// synthesize steps over a checkpointed session state.
//
// # Flow
//
//	Run(threadID, input)
//	  load checkpoint -> begin turn -> trim history
//	  loop:
//	    awaiting_decision -> Decide     -> Next: terminate | gather
//	    gathering         -> RunAll     -> synthesizing
//	    synthesizing      -> Synthesize -> finish
//	  save after every committed step
//
// Every step works on a clone of the state; only the clone of a step that
// completed is committed and written through the checkpoint store, so a failed
// step leaves the checkpoint at the last committed state.
//
// # Failures
//
// Errors are returned as *core.Failure:
//   - FailureTimeout when the turn deadline expires (Result.Text carries
//     TimeoutMessage)
//   - FailureTerminalStep when a decision step fails, the step limit is hit
//     or a validation hook rejects a state
//   - FailurePersistence when a checkpoint write fails; the turn still
//     completes and the Result is returned alongside the error
//
// Worker failures never surface here: the coordinator records them and the
// synthesis works with whatever slots were filled.
//
// # Hooks
//
// Hooks observe steps (HookBeforeStep, HookAfterStep, HookOnError) and may
// veto a state before it is committed (HookOnCommit).
//
// # Idempotency
//
// A turn started WithRequestID is not repeated when the checkpoint already
// holds a completed turn with the same id; the stored reply is returned.
package engine
