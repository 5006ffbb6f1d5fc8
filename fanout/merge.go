package fanout

import (
	"errors"
	"fmt"

	"github.com/hupe1980/firegraph/agent"
	"github.com/hupe1980/firegraph/core"
)

// Result is the outcome of one worker task.
type Result struct {
	Role    core.Role
	Partial *agent.Partial
	Err     error
}

// Merged is the state after a gather phase.
type Merged struct {
	State    *core.State
	Messages []core.Message
	Failures []*core.Failure
}

// Merge folds results into a copy of base. Successful results fill the slot of
// their role and contribute their messages in result order; failed results
// leave their slot untouched. The phase of the merged state is always
// core.PhaseSynthesizing.
func Merge(base *core.State, results []Result) *Merged {
	state := base.Clone()
	merged := &Merged{State: state}

	for _, r := range results {
		if r.Err != nil {
			merged.Failures = append(merged.Failures, workerFailure(r.Role, r.Err))
			continue
		}

		domain, err := checkDomain(r)
		if err != nil {
			merged.Failures = append(merged.Failures, workerFailure(r.Role, err))
			continue
		}

		if err := state.SetSlot(domain, r.Partial.Content); err != nil {
			merged.Failures = append(merged.Failures, workerFailure(r.Role, err))
			continue
		}

		merged.Messages = append(merged.Messages, r.Partial.Messages...)
	}

	state.Append(merged.Messages...)
	state.Phase = core.PhaseSynthesizing

	return merged
}

func checkDomain(r Result) (core.Domain, error) {
	if r.Partial == nil {
		return "", errors.New("worker returned no result")
	}

	want, ok := r.Role.Domain()
	if !ok {
		return "", fmt.Errorf("role %q does not own a slot", r.Role)
	}

	if r.Partial.Domain != want {
		return "", fmt.Errorf("result for domain %q rejected: role %q owns %q", r.Partial.Domain, r.Role, want)
	}

	return want, nil
}

func workerFailure(role core.Role, err error) *core.Failure {
	if f, ok := core.AsFailure(err); ok {
		return f
	}
	return core.NewWorkerFailure(role, err)
}
