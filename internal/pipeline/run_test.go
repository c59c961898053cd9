package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/found/internal/events"
	"github.com/jonathan/found/internal/pipeline/steps"
	"github.com/jonathan/found/internal/store"
	"github.com/jonathan/found/internal/types"
)

var testClock = store.FixedClock{At: time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC)}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(ev events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

type failingExecutor struct{ id types.StepID }

func (f failingExecutor) ID() types.StepID { return f.id }

func (f failingExecutor) Execute(context.Context, *steps.RunContext, *types.RunSummary) (types.Step, error) {
	return types.Step{}, errors.New("browser crashed")
}

func boolPtr(b bool) *bool { return &b }

func acmeState(requireHuman bool) store.State {
	cfg := types.DefaultAgentConfig()
	cfg.RequireHumanApproval = requireHuman
	return store.State{
		Profile:     types.UserProfile{Name: "Ada Lovelace"},
		AgentConfig: cfg,
		Jobs: []types.Job{
			{ID: "job-1", Title: "Staff Engineer", Company: "Acme", MatchScore: 92, Skills: []string{"Go"}},
			{ID: "job-2", Title: "Data Analyst", Company: "Globex", MatchScore: 61},
		},
		Connections: []types.Connection{
			{ID: "c1", Name: "Rita Recruiter", Company: "Acme", Tags: []string{"Recruiter"}, RelevanceScore: 88},
			{ID: "c2", Name: "Pat Peer", Headline: "Senior Engineer", Company: "Acme", Status: types.ConnectionConnected, RelevanceScore: 75},
		},
	}
}

func newAgent(state store.State) (*Agent, *store.Memory, *recordingPublisher) {
	s := store.New(state, testClock, nil)
	pub := &recordingPublisher{}
	return NewAgent(s, pub, testClock), s, pub
}

func TestRun_AutopilotWithoutHumanApproval(t *testing.T) {
	agent, s, pub := newAgent(acmeState(false))

	run, err := agent.Run(context.Background(), types.CreateRunRequest{SearchQuery: "staff", Mode: "autopilot"})
	require.NoError(t, err)

	assert.Equal(t, types.RunSuccess, run.Status)
	assert.Equal(t, types.ModeAutopilot, run.Mode)
	assert.Equal(t, "job-1", run.JobID)
	assert.Equal(t, "Acme", run.Company)
	assert.Equal(t, "Staff Engineer", run.Role)
	assert.Equal(t, testClock.At, run.CreatedAt)
	assert.Contains(t, run.ID, RunIDPrefix+"_")

	require.Len(t, run.Steps, 4)
	for i, def := range steps.Registry {
		assert.Equal(t, def.ID, run.Steps[i].ID)
		assert.Equal(t, types.StepSuccess, run.Steps[i].Status, def.ID)
	}

	assert.Equal(t, types.RunSummary{
		JobMatchesFound:           1,
		ApplicationsSubmitted:     1,
		RecruiterMessagesPrepared: 1,
		ReferralRequestsPrepared:  1,
	}, run.Summary)

	apps := s.Applications()
	require.Len(t, apps, 1)
	assert.Equal(t, types.ApplicationApplied, apps[0].Status)
	assert.Equal(t, run.ID, apps[0].AutomationRunID)
	assert.Len(t, s.FollowUps(), 1)
	assert.Len(t, s.Referrals(), 1)

	assert.Equal(t, "LinkedIn agent success for Staff Engineer at Acme", s.Activity()[0].Title)
	assert.Equal(t, types.ActivityNetwork, s.Activity()[0].Type)

	runs := s.Runs()
	require.Len(t, runs, 1, "placeholder is replaced in place")
	assert.Equal(t, run, runs[0])

	require.Len(t, pub.events, 2)
	assert.Equal(t, events.SourceAgent, pub.events[0].Source)
	assert.Equal(t, types.RunRunning, pub.events[0].Run.Status)
	assert.Empty(t, pub.events[0].Run.Steps)
	assert.Equal(t, types.RunSuccess, pub.events[1].Run.Status)
}

// contextPersister refuses writes made under a finished context.
type contextPersister struct{ saves int }

func (p *contextPersister) LoadState(context.Context) ([]byte, error) { return nil, nil }

func (p *contextPersister) SaveState(ctx context.Context, _ []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.saves++
	return nil
}

// cancelOnFirstPublish cancels the caller's context as soon as the
// placeholder run is broadcast.
type cancelOnFirstPublish struct {
	recordingPublisher
	cancel context.CancelFunc
}

func (p *cancelOnFirstPublish) Publish(ev events.Event) {
	p.recordingPublisher.Publish(ev)
	p.cancel()
}

func TestRun_CompletesAfterCallerCancels(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	persister := &contextPersister{}
	s := store.New(acmeState(false), testClock, persister)
	pub := &cancelOnFirstPublish{cancel: cancel}
	agent := NewAgent(s, pub, testClock)

	run, err := agent.Run(ctx, types.CreateRunRequest{SearchQuery: "staff", Mode: "autopilot"})
	require.NoError(t, err)
	require.Error(t, ctx.Err())

	assert.Equal(t, types.RunSuccess, run.Status)
	for _, step := range run.Steps {
		assert.Equal(t, types.StepSuccess, step.Status, step.ID)
	}
	assert.Len(t, s.Applications(), 1)

	require.Len(t, pub.events, 2)
	assert.Equal(t, types.RunRunning, pub.events[0].Run.Status)
	assert.Equal(t, types.RunSuccess, pub.events[1].Run.Status)

	runs := s.Runs()
	require.Len(t, runs, 1)
	assert.Equal(t, types.RunSuccess, runs[0].Status)
	assert.Positive(t, persister.saves)
}

func TestRun_AssistModeCreatesNothing(t *testing.T) {
	agent, s, _ := newAgent(acmeState(false))

	run, err := agent.Run(context.Background(), types.CreateRunRequest{
		JobID:     "job-1",
		Approvals: types.RunApprovals{SubmitApplication: true, SendOutreach: true, RequestReferral: true},
	})
	require.NoError(t, err)

	assert.Equal(t, types.ModeAssist, run.Mode)
	assert.Equal(t, types.RunPartial, run.Status)
	assert.Equal(t, types.StepSuccess, run.Steps[0].Status)
	for _, step := range run.Steps[1:] {
		assert.Equal(t, types.StepPendingApproval, step.Status, step.ID)
	}
	assert.Zero(t, run.Summary.ApplicationsSubmitted)
	assert.Empty(t, s.Applications())
	assert.Empty(t, s.FollowUps())
	assert.Empty(t, s.Referrals())
}

func TestRun_DisabledActionsAreSkipped(t *testing.T) {
	agent, s, _ := newAgent(acmeState(false))

	run, err := agent.Run(context.Background(), types.CreateRunRequest{
		JobID: "job-1",
		Mode:  "autopilot",
		Actions: types.RunActions{
			DiscoverJobs:      boolPtr(false),
			ContactRecruiters: boolPtr(false),
			RequestReferrals:  boolPtr(false),
		},
	})
	require.NoError(t, err)

	assert.Equal(t, types.RunSuccess, run.Status)
	assert.Equal(t, types.StepSkipped, run.Steps[0].Status)
	assert.Equal(t, steps.SkippedDetail, run.Steps[0].Detail)
	assert.Equal(t, types.StepSuccess, run.Steps[1].Status)
	assert.Equal(t, types.StepSkipped, run.Steps[2].Status)
	assert.Equal(t, types.StepSkipped, run.Steps[3].Status)
	assert.Equal(t, 2, run.Summary.JobMatchesFound, "discovery count is computed even when the step is off")
	assert.Empty(t, s.FollowUps())
	assert.Empty(t, s.Referrals())
}

func TestRun_RepeatedRunIsIdempotentForApplications(t *testing.T) {
	agent, s, _ := newAgent(acmeState(false))
	req := types.CreateRunRequest{JobID: "job-1", Mode: "autopilot"}

	_, err := agent.Run(context.Background(), req)
	require.NoError(t, err)
	second, err := agent.Run(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, types.StepSkipped, second.Steps[1].Status)
	assert.Len(t, s.Applications(), 1)
	assert.Len(t, s.Runs(), 2)
	assert.Equal(t, second.ID, s.Runs()[0].ID, "most recent first")
}

func TestRun_StepErrorIsCaptured(t *testing.T) {
	agent, s, _ := newAgent(acmeState(false))
	agent.WithExecutor(failingExecutor{id: types.StepFillApplication})

	run, err := agent.Run(context.Background(), types.CreateRunRequest{JobID: "job-1", Mode: "autopilot"})
	require.NoError(t, err)

	assert.Equal(t, types.RunError, run.Status)
	assert.Equal(t, types.StepError, run.Steps[1].Status)
	assert.Equal(t, "browser crashed", run.Steps[1].Detail)
	assert.Equal(t, types.StepSuccess, run.Steps[2].Status, "later steps still run")
	assert.Equal(t, types.StepSuccess, run.Steps[3].Status)
	assert.Equal(t, types.RunError, s.Runs()[0].Status)
}

func TestRun_FailsBeforeAnyRecord(t *testing.T) {
	tests := []struct {
		name  string
		state store.State
		req   types.CreateRunRequest
		kind  types.ErrorKind
	}{
		{"unknown job", acmeState(false), types.CreateRunRequest{JobID: "nope"}, types.KindNotFound},
		{"empty catalog", store.State{}, types.CreateRunRequest{}, types.KindNotFound},
		{"bad mode", acmeState(false), types.CreateRunRequest{Mode: "yolo"}, types.KindInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agent, s, pub := newAgent(tt.state)
			_, err := agent.Run(context.Background(), tt.req)
			require.Error(t, err)
			assert.True(t, types.IsKind(err, tt.kind), "got %v", err)
			assert.Empty(t, s.Runs())
			assert.Empty(t, pub.events)
		})
	}
}

func TestRun_OutreachCapBlocksRun(t *testing.T) {
	state := acmeState(false)
	state.AgentConfig.DailyOutreachLimit = 1
	state.FollowUps = []types.FollowUp{{ID: "f1", ScheduledDate: testClock.Today()}}
	agent, s, _ := newAgent(state)

	run, err := agent.Run(context.Background(), types.CreateRunRequest{
		JobID:   "job-1",
		Mode:    "autopilot",
		Actions: types.RunActions{RequestReferrals: boolPtr(false)},
	})
	require.NoError(t, err)

	assert.Equal(t, types.StepBlocked, run.Steps[2].Status)
	assert.Equal(t, types.RunPartial, run.Status)
	assert.Len(t, s.FollowUps(), 1)
}

func TestListOpportunitiesAndConfig(t *testing.T) {
	agent, _, _ := newAgent(acmeState(true))

	opps := agent.ListOpportunities("", 0)
	require.Len(t, opps, 2)
	assert.Equal(t, "job-1", opps[0].Job.ID)
	assert.Equal(t, 1, opps[0].RecruiterMatches)
	assert.Equal(t, 1, opps[0].ReferralMatches)

	assert.Len(t, agent.ListOpportunities("", 1), 1)

	limit := 3
	cfg, err := agent.UpdateConfig(context.Background(), types.AgentConfigUpdate{DailyApplicationLimit: &limit})
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.DailyApplicationLimit)
	assert.Equal(t, cfg, agent.Config())

	negative := -1
	_, err = agent.UpdateConfig(context.Background(), types.AgentConfigUpdate{DailyOutreachLimit: &negative})
	assert.True(t, types.IsKind(err, types.KindInvalidInput))
}

func TestRunStatusFoldProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	genSteps := gen.SliceOf(gen.IntRange(0, len(types.AllStepStatuses)-1))
	toSteps := func(statuses []int) []types.Step {
		out := make([]types.Step, 0, len(statuses))
		for _, i := range statuses {
			out = append(out, types.Step{Status: types.AllStepStatuses[i]})
		}
		return out
	}

	properties.Property("any error step makes the run an error", prop.ForAll(
		func(statuses []int) bool {
			run := toSteps(statuses)
			run = append(run, types.Step{Status: types.StepError})
			return types.FoldStatus(run) == types.RunError
		},
		genSteps,
	))

	properties.Property("fold never reports running and is order independent", prop.ForAll(
		func(statuses []int) bool {
			run := toSteps(statuses)
			got := types.FoldStatus(run)
			reversed := make([]types.Step, len(run))
			for i := range run {
				reversed[len(run)-1-i] = run[i]
			}
			return got != types.RunRunning && got == types.FoldStatus(reversed)
		},
		genSteps,
	))

	properties.Property("only success and skipped steps fold to success", prop.ForAll(
		func(statuses []int) bool {
			run := toSteps(statuses)
			clean := true
			for _, s := range run {
				if s.Status != types.StepSuccess && s.Status != types.StepSkipped {
					clean = false
				}
			}
			return (types.FoldStatus(run) == types.RunSuccess) == clean
		},
		genSteps,
	))

	properties.TestingRun(t)
}
