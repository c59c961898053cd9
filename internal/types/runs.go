package types

import (
	"strings"
	"time"
)

// Mode selects how much autonomy an agent run has.
type Mode string

const (
	// ModeAssist drafts everything and waits for a human on every gated action.
	ModeAssist Mode = "assist"
	// ModeAutopilot executes gated actions unless human approval is required.
	ModeAutopilot Mode = "autopilot"
)

// ParseMode maps a request value onto a Mode. An empty value means assist;
// anything else outside the closed set is rejected.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeAssist:
		return ModeAssist, nil
	case ModeAutopilot:
		return ModeAutopilot, nil
	default:
		return "", InvalidInput("mode", "unsupported mode %q", s)
	}
}

// MessageTone selects the recruiter message template.
type MessageTone string

const (
	ToneProfessional MessageTone = "professional"
	ToneCasual       MessageTone = "casual"
	ToneFormal       MessageTone = "formal"
)

// Valid reports whether the tone is one of the known templates.
func (t MessageTone) Valid() bool {
	switch t {
	case ToneProfessional, ToneCasual, ToneFormal:
		return true
	}
	return false
}

// AgentConfig is the policy configuration consulted by every agent run.
type AgentConfig struct {
	DailyApplicationLimit int         `json:"dailyApplicationLimit" yaml:"dailyApplicationLimit"`
	DailyOutreachLimit    int         `json:"dailyOutreachLimit" yaml:"dailyOutreachLimit"`
	RequireHumanApproval  bool        `json:"requireHumanApproval" yaml:"requireHumanApproval"`
	PreferredMessageTone  MessageTone `json:"preferredMessageTone" yaml:"preferredMessageTone"`
}

// DefaultAgentConfig returns the configuration a fresh store starts with.
func DefaultAgentConfig() AgentConfig {
	return AgentConfig{
		DailyApplicationLimit: 8,
		DailyOutreachLimit:    20,
		RequireHumanApproval:  true,
		PreferredMessageTone:  ToneProfessional,
	}
}

// RunStatus is the aggregate outcome of a run.
type RunStatus string

const (
	RunRunning RunStatus = "running"
	RunSuccess RunStatus = "success"
	RunPartial RunStatus = "partial"
	RunError   RunStatus = "error"
)

// StepStatus is the outcome of one step. It is decided exactly once.
type StepStatus string

const (
	StepSuccess         StepStatus = "success"
	StepError           StepStatus = "error"
	StepBlocked         StepStatus = "blocked"
	StepPendingApproval StepStatus = "pending_approval"
	StepSkipped         StepStatus = "skipped"
)

// AllStepStatuses lists the closed set of step outcomes.
var AllStepStatuses = []StepStatus{StepSuccess, StepError, StepBlocked, StepPendingApproval, StepSkipped}

// StepID identifies a step kind within a run.
type StepID string

const (
	StepDiscoverJobs      StepID = "discover_jobs"
	StepFillApplication   StepID = "fill_application"
	StepContactRecruiters StepID = "contact_recruiters"
	StepRequestReferrals  StepID = "request_referrals"

	StepPlan              StepID = "plan"
	StepLinkedInLogin     StepID = "linkedin_login"
	StepSubmitApplication StepID = "submit_application"
	StepMessageRecruiters StepID = "message_recruiters"
	StepRuntimeError      StepID = "runtime_error"
)

// StepOutput is the structured payload a step may attach for review.
// The application checklist fields are inlined here so the wire shape
// stays flat.
type StepOutput struct {
	TopMatches     []string `json:"topMatches,omitempty"`
	RequiredFields []string `json:"requiredFields,omitempty"`
	MissingFields  []string `json:"missingFields,omitempty"`
	Warnings       []string `json:"warnings,omitempty"`
	Recruiters     []string `json:"recruiters,omitempty"`
	Candidates     []string `json:"candidates,omitempty"`
}

// Step is one entry of a run's audit trail.
type Step struct {
	ID     StepID      `json:"id"`
	Label  string      `json:"label"`
	Status StepStatus  `json:"status"`
	Detail string      `json:"detail"`
	Output *StepOutput `json:"output,omitempty"`
}

// RunSummary counts what a run produced.
type RunSummary struct {
	JobMatchesFound           int `json:"jobMatchesFound"`
	ApplicationsSubmitted     int `json:"applicationsSubmitted"`
	RecruiterMessagesPrepared int `json:"recruiterMessagesPrepared"`
	ReferralRequestsPrepared  int `json:"referralRequestsPrepared"`
}

// Run is the persisted record of one agent run.
type Run struct {
	ID        string     `json:"id"`
	Mode      Mode       `json:"mode"`
	JobID     string     `json:"jobId"`
	Company   string     `json:"company"`
	Role      string     `json:"role"`
	CreatedAt time.Time  `json:"createdAt"`
	Status    RunStatus  `json:"status"`
	Summary   RunSummary `json:"summary"`
	Steps     []Step     `json:"steps"`
}

// DiscoveredJob is a job card scraped from a live search page.
type DiscoveredJob struct {
	Title   string `json:"title"`
	Company string `json:"company"`
	URL     string `json:"url"`
}

// BrowserRun is the persisted record of one browser-driven run.
type BrowserRun struct {
	ID             string          `json:"id"`
	CreatedAt      time.Time       `json:"createdAt"`
	Query          string          `json:"query"`
	Location       string          `json:"location"`
	Status         RunStatus       `json:"status"`
	DiscoveredJobs []DiscoveredJob `json:"discoveredJobs"`
	Steps          []Step          `json:"steps"`
}

// FoldStatus derives a run status from its steps: any error wins, then any
// blocked or pending step makes the run partial, otherwise it succeeded.
func FoldStatus(steps []Step) RunStatus {
	partial := false
	for _, step := range steps {
		switch step.Status {
		case StepError:
			return RunError
		case StepBlocked, StepPendingApproval:
			partial = true
		}
	}
	if partial {
		return RunPartial
	}
	return RunSuccess
}

// Opportunity is a job with its networking leverage, computed on demand.
type Opportunity struct {
	Job              Job `json:"job"`
	RecruiterMatches int `json:"recruiterMatches"`
	ReferralMatches  int `json:"referralMatches"`
}

// ExternalJobSource names a public job feed.
type ExternalJobSource string

const (
	SourceGreenhouse ExternalJobSource = "greenhouse"
	SourceLever      ExternalJobSource = "lever"
)

// ExternalJob is a posting fetched from a public job feed.
type ExternalJob struct {
	ID                 string            `json:"id"`
	Source             ExternalJobSource `json:"source"`
	ExternalID         string            `json:"externalId"`
	Title              string            `json:"title"`
	Company            string            `json:"company"`
	Location           string            `json:"location"`
	URL                string            `json:"url"`
	PostedAt           *time.Time        `json:"postedAt"`
	DescriptionSnippet string            `json:"descriptionSnippet"`
}
