package steps

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/jonathan/found/internal/policy"
	"github.com/jonathan/found/internal/store"
	"github.com/jonathan/found/internal/types"
)

// RequiredApplicationFields are requested on every application form.
var RequiredApplicationFields = []string{
	"full_name",
	"email",
	"location",
	"resume",
	"work_authorization",
	"years_of_experience",
}

var whitespace = regexp.MustCompile(`\s+`)

// BuildChecklist lists the form fields an application needs, including a
// proof field for each of the job's skill gaps.
func BuildChecklist(job types.Job) *types.StepOutput {
	out := &types.StepOutput{
		RequiredFields: append([]string(nil), RequiredApplicationFields...),
	}
	for _, gap := range job.SkillGap {
		out.MissingFields = append(out.MissingFields, "proof_of_"+whitespace.ReplaceAllString(strings.ToLower(gap), "_"))
	}
	if len(job.SkillGap) > 0 {
		out.Warnings = []string{"Profile gaps detected for: " + strings.Join(job.SkillGap, ", ")}
	}
	return out
}

// Apply fills and submits the application for the target job.
type Apply struct {
	store store.Store
}

// NewApply creates the application executor.
func NewApply(s store.Store) *Apply { return &Apply{store: s} }

// ID implements StepExecutor.
func (a *Apply) ID() types.StepID { return types.StepFillApplication }

// Execute implements StepExecutor. The checks run in a fixed order:
// approval, duplicate, daily cap.
func (a *Apply) Execute(ctx context.Context, rc *RunContext, summary *types.RunSummary) (types.Step, error) {
	job := rc.Job
	step := newStep(types.StepFillApplication)
	step.Output = BuildChecklist(job)

	if policy.ShouldWaitForApproval(rc.Mode, rc.Config, rc.Approvals.SubmitApplication) {
		step.Status = types.StepPendingApproval
		step.Detail = "Application plan ready. Waiting for explicit approval to submit."
		return step, nil
	}

	if _, exists := a.store.FindApplication(job.Company, job.Title); exists {
		step.Status = types.StepSkipped
		step.Detail = "An application already exists for this role."
		return step, nil
	}

	if policy.RemainingQuota(policy.QuotaApplications, rc.Config, a.store, rc.Today) == 0 {
		step.Status = types.StepBlocked
		step.Detail = fmt.Sprintf("Daily application limit reached (%d).", rc.Config.DailyApplicationLimit)
		return step, nil
	}

	app := types.Application{
		JobTitle:        job.Title,
		Company:         job.Company,
		Logo:            job.Logo,
		Status:          types.ApplicationApplied,
		AppliedDate:     rc.Today,
		LastUpdate:      rc.Today,
		NextStep:        "Awaiting response",
		Notes:           "Submitted via LinkedIn agent.",
		MatchScore:      job.MatchScore,
		Source:          types.SourceAutomation,
		AutomationRunID: rc.RunID,
	}
	if _, err := a.store.CreateApplication(ctx, app); err != nil {
		return step, fmt.Errorf("failed to record application: %w", err)
	}
	summary.ApplicationsSubmitted++

	title := fmt.Sprintf("Applied to %s at %s", job.Title, job.Company)
	if err := a.store.AddActivity(ctx, types.ActivityApplication, title, "send"); err != nil {
		log.Printf("[agent] Failed to log activity for run %s: %v", rc.RunID, err)
	}

	step.Status = types.StepSuccess
	step.Detail = "Application filled and submitted."
	return step, nil
}
