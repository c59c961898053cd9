package linkedin

import (
	"context"
	"fmt"
	"strings"

	"github.com/jonathan/found/internal/pipeline/steps"
	"github.com/jonathan/found/internal/types"
)

const (
	maxBrowserRecruiters = 5
	browserOutreachType  = "LinkedIn Recruiter Outreach"
)

// companyHint picks the company whose recruiters get messaged.
func companyHint(req types.CreateBrowserRunRequest, query string, jobs []types.DiscoveredJob) string {
	if company := strings.TrimSpace(req.Company); company != "" {
		return company
	}
	if len(jobs) > 0 {
		return jobs[0].Company
	}
	return CompanyFromText(query)
}

// message queues a pending follow-up for each recruiter whose company
// contains the hint, up to five, in network order.
func (r *Runner) message(ctx context.Context, req types.CreateBrowserRunRequest, query string, jobs []types.DiscoveredJob) (types.Step, error) {
	if !req.Approvals.SendMessages {
		return step(types.StepMessageRecruiters, types.StepPendingApproval, "Messaging requires approvals.sendMessages=true."), nil
	}

	hint := strings.ToLower(companyHint(req, query, jobs))
	var recruiters []types.Connection
	for _, c := range r.store.Connections() {
		if len(recruiters) == maxBrowserRecruiters {
			break
		}
		if strings.Contains(strings.ToLower(c.Company), hint) && steps.IsRecruiter(c) {
			recruiters = append(recruiters, c)
		}
	}
	if len(recruiters) == 0 {
		return step(types.StepMessageRecruiters, types.StepBlocked, "No matching recruiter contacts were found in your network."), nil
	}

	today := r.clock.Today()
	for _, recruiter := range recruiters {
		_, err := r.store.CreateFollowUp(ctx, types.FollowUp{
			ContactName:   recruiter.Name,
			Company:       recruiter.Company,
			ScheduledDate: today,
			Type:          browserOutreachType,
			AIMessage:     fmt.Sprintf("Hi %s, I found a relevant opening and would appreciate guidance on the process.", recruiter.Name),
			Status:        types.FollowUpPending,
		})
		if err != nil {
			return types.Step{}, fmt.Errorf("failed to queue message for %s: %w", recruiter.Name, err)
		}
	}
	return step(types.StepMessageRecruiters, types.StepSuccess,
		fmt.Sprintf("Prepared %d recruiter outreach messages.", len(recruiters))), nil
}
