// Package agent contains the model-driven building blocks of a firegraph turn:
//
//  1. ToolLoop, the shared "ask" primitive that calls the model, executes any
//     requested tools in parallel and repeats until a final answer arrives
//  2. Worker, a role bound data gatherer filling one partial-result slot
//  3. Locator, resolving the user's address before gathering starts
//  4. Decider, exposing the decision step (Decide) and the final synthesis
//     (Synthesize) on top of the same ToolLoop
//
// Design principles:
//   - No hidden global state: models, tool sources and retrievers are wired
//     explicitly through functional options
//   - Workers only read the snapshot they are given and return a Partial;
//     merging into the session state is the caller's job
//   - Instructions are static text, templates over the session state or
//     arbitrary providers
package agent
