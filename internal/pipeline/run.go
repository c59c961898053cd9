// Package pipeline orchestrates LinkedIn agent runs: it resolves the target
// job, drives the step executors in order and records the outcome.
package pipeline

import (
	"context"
	"fmt"
	"log"

	"go.opentelemetry.io/otel/attribute"

	"github.com/jonathan/found/internal/events"
	"github.com/jonathan/found/internal/observability"
	"github.com/jonathan/found/internal/pipeline/steps"
	"github.com/jonathan/found/internal/store"
	"github.com/jonathan/found/internal/types"
)

// RunIDPrefix prefixes every agent run id.
const RunIDPrefix = "lnrun"

// Agent runs the four-step LinkedIn workflow against a store.
type Agent struct {
	store     store.Store
	publisher events.Publisher
	clock     store.Clock
	executors map[types.StepID]steps.StepExecutor
}

// NewAgent wires the default executors. A nil publisher disables live
// updates; a nil clock uses the system clock.
func NewAgent(s store.Store, publisher events.Publisher, clock store.Clock) *Agent {
	if clock == nil {
		clock = store.SystemClock{}
	}
	a := &Agent{store: s, publisher: publisher, clock: clock, executors: map[types.StepID]steps.StepExecutor{}}
	for _, exec := range []steps.StepExecutor{
		steps.NewDiscover(),
		steps.NewApply(s),
		steps.NewOutreach(s),
		steps.NewReferral(s),
	} {
		a.executors[exec.ID()] = exec
	}
	return a
}

// WithExecutor replaces the executor for one step id.
func (a *Agent) WithExecutor(exec steps.StepExecutor) *Agent {
	a.executors[exec.ID()] = exec
	return a
}

func (a *Agent) publish(run types.Run) {
	if a.publisher != nil {
		a.publisher.Publish(events.AgentEvent(run))
	}
}

// Run executes one agent run. Invalid input and an unresolvable target
// fail before any record exists; once the placeholder is saved, step
// failures are captured in the run instead of returned.
func (a *Agent) Run(ctx context.Context, req types.CreateRunRequest) (types.Run, error) {
	if err := req.Validate(); err != nil {
		return types.Run{}, err
	}
	mode, err := types.ParseMode(req.Mode)
	if err != nil {
		return types.Run{}, err
	}

	jobs := a.store.Jobs()
	target, err := steps.ResolveTarget(jobs, req.JobID, req.SearchQuery)
	if err != nil {
		return types.Run{}, err
	}
	opportunities := steps.DiscoverOpportunities(jobs, a.store.Connections(), req.SearchQuery, steps.DefaultOpportunityLimit)

	// Once accepted, a run finishes even if the caller goes away.
	ctx = context.WithoutCancel(ctx)
	ctx, span := observability.StartSpan(ctx, "agent.run",
		attribute.String("mode", string(mode)),
		attribute.String("company", target.Company),
		attribute.String("role", target.Title),
	)
	defer span.End()

	run := types.Run{
		ID:        store.NewID(RunIDPrefix),
		Mode:      mode,
		JobID:     target.ID,
		Company:   target.Company,
		Role:      target.Title,
		CreatedAt: a.clock.Now(),
		Status:    types.RunRunning,
		Summary:   types.RunSummary{JobMatchesFound: len(opportunities)},
		Steps:     []types.Step{},
	}
	span.SetAttributes(attribute.String("run.id", run.ID))
	if err := a.store.SaveRun(ctx, run); err != nil {
		return types.Run{}, fmt.Errorf("failed to save run: %w", err)
	}
	a.publish(run)
	log.Printf("[agent] Run %s started (%s) for %s at %s", run.ID, mode, target.Title, target.Company)

	rc := &steps.RunContext{
		RunID:         run.ID,
		Mode:          mode,
		Job:           target,
		Config:        a.store.AgentConfig(),
		Profile:       a.store.Profile(),
		Approvals:     req.Approvals,
		Opportunities: opportunities,
	}
	for _, def := range steps.Registry {
		run.Steps = append(run.Steps, a.runStep(ctx, def, req.Actions, rc, &run.Summary))
	}

	run.Status = types.FoldStatus(run.Steps)
	span.SetAttributes(attribute.String("run.status", string(run.Status)))
	if err := a.store.SaveRun(ctx, run); err != nil {
		return run, fmt.Errorf("failed to save run: %w", err)
	}
	a.publish(run)

	title := fmt.Sprintf("LinkedIn agent %s for %s at %s", run.Status, run.Role, run.Company)
	if err := a.store.AddActivity(ctx, types.ActivityNetwork, title, "sparkles"); err != nil {
		log.Printf("[agent] Failed to log activity for run %s: %v", run.ID, err)
	}
	log.Printf("[agent] Run %s finished: %s", run.ID, run.Status)
	return run, nil
}

// runStep executes one step, or records it skipped when the request turned
// it off. Executor errors become an error step.
func (a *Agent) runStep(ctx context.Context, def steps.StepDefinition, actions types.RunActions, rc *steps.RunContext, summary *types.RunSummary) types.Step {
	if !actions.Enabled(def.ID) {
		return steps.Skipped(def.ID)
	}
	exec, ok := a.executors[def.ID]
	if !ok {
		return steps.Failed(def.ID, &steps.UnknownStepError{ID: def.ID})
	}

	ctx, span := observability.StartSpan(ctx, "agent.step", attribute.String("step", string(def.ID)))
	rc.Today = a.clock.Today()
	rc.Now = a.clock.Now()
	step, err := exec.Execute(ctx, rc, summary)
	observability.EndSpan(span, err)
	if err != nil {
		log.Printf("[agent] Step %s failed for run %s: %v", def.ID, rc.RunID, err)
		return steps.Failed(def.ID, err)
	}
	return step
}

// ListOpportunities ranks catalog jobs for query. A non-positive limit
// uses the default.
func (a *Agent) ListOpportunities(query string, limit int) []types.Opportunity {
	return steps.DiscoverOpportunities(a.store.Jobs(), a.store.Connections(), query, limit)
}

// Runs returns agent runs, most recent first.
func (a *Agent) Runs() []types.Run {
	return a.store.Runs()
}

// Config returns the current agent configuration.
func (a *Agent) Config() types.AgentConfig {
	return a.store.AgentConfig()
}

// UpdateConfig applies a partial configuration update.
func (a *Agent) UpdateConfig(ctx context.Context, update types.AgentConfigUpdate) (types.AgentConfig, error) {
	return a.store.UpdateAgentConfig(ctx, update)
}
