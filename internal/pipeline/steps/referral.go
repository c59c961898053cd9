package steps

import (
	"context"
	"fmt"

	"github.com/jonathan/found/internal/policy"
	"github.com/jonathan/found/internal/store"
	"github.com/jonathan/found/internal/types"
)

const maxReferralCandidates = 3

// ReferralCandidates returns up to three connected contacts at company,
// most relevant first.
func ReferralCandidates(connections []types.Connection, company string) []types.Connection {
	var matched []types.Connection
	for _, c := range connections {
		if c.Company == company && c.Status == types.ConnectionConnected {
			matched = append(matched, c)
		}
	}
	matched = byRelevance(matched)
	return matched[:min(maxReferralCandidates, len(matched))]
}

// Referral asks connected contacts at the target company for a referral.
type Referral struct {
	store store.Store
}

// NewReferral creates the referral executor.
func NewReferral(s store.Store) *Referral { return &Referral{store: s} }

// ID implements StepExecutor.
func (r *Referral) ID() types.StepID { return types.StepRequestReferrals }

// Execute implements StepExecutor.
func (r *Referral) Execute(ctx context.Context, rc *RunContext, summary *types.RunSummary) (types.Step, error) {
	job := rc.Job
	step := newStep(types.StepRequestReferrals)

	candidates := ReferralCandidates(r.store.Connections(), job.Company)
	if len(candidates) == 0 {
		step.Status = types.StepSkipped
		step.Detail = fmt.Sprintf("No connected referrals found at %s.", job.Company)
		return step, nil
	}

	names := make([]string, 0, len(candidates))
	for _, c := range candidates {
		names = append(names, c.Name)
	}

	if policy.ShouldWaitForApproval(rc.Mode, rc.Config, rc.Approvals.RequestReferral) {
		summary.ReferralRequestsPrepared = len(candidates)
		step.Status = types.StepPendingApproval
		step.Detail = fmt.Sprintf("%d referral drafts prepared for review.", len(candidates))
		step.Output = &types.StepOutput{Candidates: names}
		return step, nil
	}

	created := make([]string, 0, len(candidates))
	for _, c := range candidates {
		referral := types.Referral{
			TargetCompany: job.Company,
			TargetRole:    job.Title,
			Referrer:      c.Name,
			ReferrerTitle: c.Headline,
			Status:        types.ReferralSent,
			DateSent:      rc.Today,
			Message:       DraftReferralMessage(c.Name, job.Company, job.Title),
		}
		saved, err := r.store.CreateReferral(ctx, referral)
		if err != nil {
			return step, fmt.Errorf("failed to record referral from %s: %w", c.Name, err)
		}
		created = append(created, saved.Referrer)
	}
	summary.ReferralRequestsPrepared = len(created)

	step.Status = types.StepSuccess
	step.Detail = fmt.Sprintf("%d referral requests prepared and logged.", len(created))
	step.Output = &types.StepOutput{Candidates: created}
	return step, nil
}
