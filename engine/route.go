package engine

import "github.com/hupe1980/firegraph/core"

// Route is the router's decision after a step.
type Route string

const (
	// RouteTerminate ends the turn with the decision step's reply.
	RouteTerminate Route = "terminate"
	// RouteGather runs the gather workers.
	RouteGather Route = "gather"
	// RouteFinish runs the final synthesis.
	RouteFinish Route = "finish"
)

// Next decides where a turn goes from s. A state that already went through
// gathering always finishes, so a turn gathers at most once.
func Next(s *core.State) Route {
	switch {
	case s.Gathered():
		return RouteFinish
	case s.UseAgent:
		return RouteGather
	default:
		return RouteTerminate
	}
}

// Trim keeps the n most recent messages of history. It returns history
// unchanged when it already fits or n <= 0.
func Trim(history []core.Message, n int) []core.Message {
	if n <= 0 || len(history) <= n {
		return history
	}

	out := make([]core.Message, n)
	copy(out, history[len(history)-n:])

	return out
}
