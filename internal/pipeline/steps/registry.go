// Package steps provides the step definitions and executors for the
// LinkedIn agent run.
package steps

import (
	"context"
	"fmt"
	"time"

	"github.com/jonathan/found/internal/types"
)

// StepDefinition defines metadata for an agent step
type StepDefinition struct {
	ID    types.StepID
	Label string
}

// Registry lists the agent steps in execution order. The order is part of
// the run contract.
var Registry = []StepDefinition{
	{ID: types.StepDiscoverJobs, Label: "Find matching LinkedIn jobs"},
	{ID: types.StepFillApplication, Label: "Fill application form"},
	{ID: types.StepContactRecruiters, Label: "Request recruiters and hiring managers"},
	{ID: types.StepRequestReferrals, Label: "Request referral from network"},
}

// SkippedDetail is recorded for steps turned off by the request.
const SkippedDetail = "Skipped by action settings."

// RunContext is the read-only input every executor sees.
type RunContext struct {
	RunID         string
	Mode          types.Mode
	Job           types.Job
	Config        types.AgentConfig
	Profile       types.UserProfile
	Approvals     types.RunApprovals
	Opportunities []types.Opportunity
	Today         string
	Now           time.Time
}

// StepExecutor defines the interface for executing agent steps. Execute
// returns an error only for unexpected failures; policy outcomes are
// expressed through the returned step's status.
type StepExecutor interface {
	ID() types.StepID
	Execute(ctx context.Context, rc *RunContext, summary *types.RunSummary) (types.Step, error)
}

// UnknownStepError is returned when an id is not in the registry.
type UnknownStepError struct {
	ID types.StepID
}

func (e *UnknownStepError) Error() string {
	return fmt.Sprintf("unknown step: %s", e.ID)
}

// Lookup returns the definition for id.
func Lookup(id types.StepID) (StepDefinition, error) {
	for _, def := range Registry {
		if def.ID == id {
			return def, nil
		}
	}
	return StepDefinition{}, &UnknownStepError{ID: id}
}

// newStep starts a step record with its registered label.
func newStep(id types.StepID) types.Step {
	def, err := Lookup(id)
	if err != nil {
		return types.Step{ID: id, Label: string(id)}
	}
	return types.Step{ID: def.ID, Label: def.Label}
}

// Skipped returns the record for a step disabled by the request.
func Skipped(id types.StepID) types.Step {
	step := newStep(id)
	step.Status = types.StepSkipped
	step.Detail = SkippedDetail
	return step
}

// Failed returns the record for a step that failed unexpectedly.
func Failed(id types.StepID, err error) types.Step {
	step := newStep(id)
	step.Status = types.StepError
	step.Detail = err.Error()
	return step
}
