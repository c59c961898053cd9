package steps

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/jonathan/found/internal/types"
)

// DefaultOpportunityLimit is the number of opportunities a run considers.
const DefaultOpportunityLimit = 8

// recruiterTag matches connection tags that mark a recruiting contact.
var recruiterTag = regexp.MustCompile(`(?i)recruiter|hiring manager|talent`)

// IsRecruiter reports whether any of the connection's tags mark it as a
// recruiting contact.
func IsRecruiter(c types.Connection) bool {
	return slices.ContainsFunc(c.Tags, recruiterTag.MatchString)
}

// matchesQuery reports whether job mentions q (already lowercased) in its
// title, company or skills.
func matchesQuery(job types.Job, q string) bool {
	if q == "" {
		return true
	}
	if strings.Contains(strings.ToLower(job.Title), q) || strings.Contains(strings.ToLower(job.Company), q) {
		return true
	}
	return slices.ContainsFunc(job.Skills, func(skill string) bool {
		return strings.Contains(strings.ToLower(skill), q)
	})
}

// byScore orders jobs by match score, highest first, keeping catalog order
// for ties.
func byScore(jobs []types.Job) []types.Job {
	sorted := slices.Clone(jobs)
	slices.SortStableFunc(sorted, func(a, b types.Job) int { return b.MatchScore - a.MatchScore })
	return sorted
}

// DiscoverOpportunities filters the catalog by query, ranks it by match
// score and attaches recruiter and referral counts for each company.
func DiscoverOpportunities(jobs []types.Job, connections []types.Connection, query string, limit int) []types.Opportunity {
	if limit <= 0 {
		limit = DefaultOpportunityLimit
	}
	q := strings.ToLower(strings.TrimSpace(query))

	var matched []types.Job
	for _, job := range jobs {
		if matchesQuery(job, q) {
			matched = append(matched, job)
		}
	}
	matched = byScore(matched)
	if len(matched) > limit {
		matched = matched[:limit]
	}

	opportunities := make([]types.Opportunity, 0, len(matched))
	for _, job := range matched {
		opp := types.Opportunity{Job: job}
		for _, c := range connections {
			if c.Company != job.Company {
				continue
			}
			if IsRecruiter(c) {
				opp.RecruiterMatches++
			}
			if c.Status == types.ConnectionConnected {
				opp.ReferralMatches++
			}
		}
		opportunities = append(opportunities, opp)
	}
	return opportunities
}

// ResolveTarget picks the job a run works on: the exact id when given,
// else the best query match, else the best job overall.
func ResolveTarget(jobs []types.Job, jobID, query string) (types.Job, error) {
	if jobID != "" {
		for _, job := range jobs {
			if job.ID == jobID {
				return job, nil
			}
		}
		return types.Job{}, types.NotFound("Job not found")
	}

	if q := strings.ToLower(strings.TrimSpace(query)); q != "" {
		var matched []types.Job
		for _, job := range jobs {
			if matchesQuery(job, q) {
				matched = append(matched, job)
			}
		}
		if len(matched) > 0 {
			return byScore(matched)[0], nil
		}
	}

	if len(jobs) == 0 {
		return types.Job{}, types.NotFound("No jobs available")
	}
	return byScore(jobs)[0], nil
}

// Discover reports the opportunities computed for the run.
type Discover struct{}

// NewDiscover creates the discovery executor.
func NewDiscover() *Discover { return &Discover{} }

// ID implements StepExecutor.
func (d *Discover) ID() types.StepID { return types.StepDiscoverJobs }

// Execute implements StepExecutor. Discovery always succeeds, an empty
// result included.
func (d *Discover) Execute(_ context.Context, rc *RunContext, _ *types.RunSummary) (types.Step, error) {
	step := newStep(types.StepDiscoverJobs)
	step.Status = types.StepSuccess
	step.Detail = fmt.Sprintf("%d opportunities found.", len(rc.Opportunities))

	top := make([]string, 0, 3)
	for _, opp := range rc.Opportunities[:min(3, len(rc.Opportunities))] {
		top = append(top, fmt.Sprintf("%s @ %s", opp.Job.Title, opp.Job.Company))
	}
	if len(top) > 0 {
		step.Output = &types.StepOutput{TopMatches: top}
	}
	return step, nil
}
