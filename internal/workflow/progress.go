package workflow

import "github.com/contribmatch/agentstream/internal/agent"

// progressFor maps a pipeline step to the percentage shown for it. The
// table is fixed; the workflow displays whatever the latest status event
// maps to, even if an out-of-order step moves the number backward.
func progressFor(step agent.Step) (int, bool) {
	switch step {
	case agent.StepCloning:
		return 10, true
	case agent.StepAnalyzing:
		return 30, true
	case agent.StepProposing:
		return 60, true
	case agent.StepImplementing:
		return 75, true
	case agent.StepPushing:
		return 90, true
	case agent.StepDone:
		return 100, true
	}
	return 0, false
}
