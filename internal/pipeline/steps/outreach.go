package steps

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/jonathan/found/internal/policy"
	"github.com/jonathan/found/internal/store"
	"github.com/jonathan/found/internal/types"
)

const (
	maxRecruiterTargets = 5

	// ConnectionRequestType labels the history entry recorded alongside
	// every recruiter message.
	ConnectionRequestType = "Connection Request"
)

// byRelevance orders connections by relevance score, highest first.
func byRelevance(connections []types.Connection) []types.Connection {
	sorted := slices.Clone(connections)
	slices.SortStableFunc(sorted, func(a, b types.Connection) int { return b.RelevanceScore - a.RelevanceScore })
	return sorted
}

// SyntheticRecruiter stands in for the company's recruiting team when the
// network has no recruiter there. It is never persisted.
func SyntheticRecruiter(company string) types.Connection {
	return types.Connection{
		ID:             "synthetic-" + strings.ToLower(company),
		Name:           company + " Talent Team",
		Headline:       "Recruiting at " + company,
		Company:        company,
		RelevanceScore: 70,
		Status:         types.ConnectionSuggested,
		Tags:           []string{"Recruiter"},
	}
}

// RecruiterTargets returns up to five recruiting contacts at company, most
// relevant first, or the synthetic talent team when there are none.
func RecruiterTargets(connections []types.Connection, company string) []types.Connection {
	var matched []types.Connection
	for _, c := range connections {
		if c.Company == company && IsRecruiter(c) {
			matched = append(matched, c)
		}
	}
	if len(matched) == 0 {
		return []types.Connection{SyntheticRecruiter(company)}
	}
	matched = byRelevance(matched)
	return matched[:min(maxRecruiterTargets, len(matched))]
}

type recruiterDraft struct {
	target  types.Connection
	message string
}

// Outreach drafts recruiter messages and queues them within the daily cap.
type Outreach struct {
	store store.Store
}

// NewOutreach creates the recruiter outreach executor.
func NewOutreach(s store.Store) *Outreach { return &Outreach{store: s} }

// ID implements StepExecutor.
func (o *Outreach) ID() types.StepID { return types.StepContactRecruiters }

// Execute implements StepExecutor.
func (o *Outreach) Execute(ctx context.Context, rc *RunContext, summary *types.RunSummary) (types.Step, error) {
	job := rc.Job
	step := newStep(types.StepContactRecruiters)

	targets := RecruiterTargets(o.store.Connections(), job.Company)
	drafts := make([]recruiterDraft, 0, len(targets))
	for _, target := range targets {
		drafts = append(drafts, recruiterDraft{
			target:  target,
			message: DraftRecruiterMessage(rc.Config.PreferredMessageTone, target.Name, target.Company, job.Title, rc.Profile.Name),
		})
	}
	summary.RecruiterMessagesPrepared = len(drafts)

	if policy.ShouldWaitForApproval(rc.Mode, rc.Config, rc.Approvals.SendOutreach) {
		step.Status = types.StepPendingApproval
		step.Detail = fmt.Sprintf("%d recruiter messages drafted and ready for review.", len(drafts))
		step.Output = &types.StepOutput{Recruiters: draftNames(drafts)}
		return step, nil
	}

	remaining := policy.RemainingQuota(policy.QuotaOutreach, rc.Config, o.store, rc.Today)
	toSend := drafts[:min(remaining, len(drafts))]
	if len(toSend) == 0 {
		step.Status = types.StepBlocked
		step.Detail = fmt.Sprintf("Daily outreach limit reached (%d).", rc.Config.DailyOutreachLimit)
		return step, nil
	}

	for _, draft := range toSend {
		if err := o.send(ctx, rc, draft); err != nil {
			return step, err
		}
	}

	step.Status = types.StepSuccess
	if len(toSend) < len(drafts) {
		step.Detail = fmt.Sprintf("Queued %d recruiter messages (limited by daily cap).", len(toSend))
	} else {
		step.Detail = fmt.Sprintf("Queued %d recruiter messages.", len(toSend))
	}
	step.Output = &types.StepOutput{Recruiters: draftNames(toSend)}
	return step, nil
}

// send queues one follow-up and records both the message and the
// connection request in the outreach history.
func (o *Outreach) send(ctx context.Context, rc *RunContext, draft recruiterDraft) error {
	followUp := types.FollowUp{
		ID:            store.NewID("f"),
		ContactName:   draft.target.Name,
		Company:       rc.Job.Company,
		ScheduledDate: rc.Today,
		Type:          "Recruiter Outreach — " + rc.Job.Title,
		AIMessage:     draft.message,
		Status:        types.FollowUpPending,
	}
	// History entries get their own ids from the store.
	message := followUp
	message.ID = ""
	request := message
	request.Type = ConnectionRequestType
	request.AIMessage = ""

	_, err := o.store.CreateFollowUp(ctx, followUp,
		types.OutreachEntry{FollowUp: request, SentAt: rc.Now},
		types.OutreachEntry{FollowUp: message, SentAt: rc.Now},
	)
	if err != nil {
		return fmt.Errorf("failed to queue message for %s: %w", draft.target.Name, err)
	}
	return nil
}

func draftNames(drafts []recruiterDraft) []string {
	names := make([]string, 0, len(drafts))
	for _, d := range drafts {
		names = append(names, d.target.Name)
	}
	return names
}
