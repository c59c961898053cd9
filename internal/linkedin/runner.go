// Package linkedin drives a real LinkedIn session in a headless browser:
// it signs in, scrapes job search results and, when approved, opens Easy
// Apply and prepares recruiter outreach.
package linkedin

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/jonathan/found/internal/events"
	"github.com/jonathan/found/internal/fetch"
	"github.com/jonathan/found/internal/observability"
	"github.com/jonathan/found/internal/store"
	"github.com/jonathan/found/internal/types"
)

const (
	// RunIDPrefix prefixes every browser run id.
	RunIDPrefix = "lnbrowser"

	DefaultBaseURL          = "https://www.linkedin.com"
	DefaultStorageStatePath = "data/linkedin-storage-state.json"
	DefaultMaxJobs          = 5
	MaxJobsCap              = 10
	defaultRoleHint         = "Software Engineer"
	defaultLocation         = "Remote"

	easyApplySelector = "button.jobs-apply-button, button[aria-label*='Easy Apply']"
)

var stepLabels = map[types.StepID]string{
	types.StepPlan:              "Generate browser automation plan",
	types.StepLinkedInLogin:     "Authenticate LinkedIn session",
	types.StepDiscoverJobs:      "Discover jobs on LinkedIn",
	types.StepSubmitApplication: "Submit LinkedIn application",
	types.StepMessageRecruiters: "Message recruiters",
	types.StepRuntimeError:      "Browser execution",
}

func step(id types.StepID, status types.StepStatus, detail string) types.Step {
	return types.Step{ID: id, Label: stepLabels[id], Status: status, Detail: detail}
}

// Settings configures the browser runner.
type Settings struct {
	Email            string
	Password         string
	StorageStatePath string
	AllowAutoSubmit  bool
	BaseURL          string

	LoginSettle  time.Duration
	SearchSettle time.Duration
	ApplySettle  time.Duration
}

// DefaultSettings returns the production delays and paths.
func DefaultSettings() Settings {
	return Settings{
		StorageStatePath: DefaultStorageStatePath,
		BaseURL:          DefaultBaseURL,
		LoginSettle:      3 * time.Second,
		SearchSettle:     2500 * time.Millisecond,
		ApplySettle:      1200 * time.Millisecond,
	}
}

// SessionFactory opens a fresh browser session for one run.
type SessionFactory func(ctx context.Context) (fetch.Session, error)

// ChromeFactory opens Chrome sessions with opts.
func ChromeFactory(opts fetch.BrowserOptions) SessionFactory {
	return func(ctx context.Context) (fetch.Session, error) {
		return fetch.NewChromeSession(ctx, opts)
	}
}

// Runner executes browser-driven runs.
type Runner struct {
	store      store.Store
	publisher  events.Publisher
	clock      store.Clock
	settings   Settings
	newSession SessionFactory
}

// NewRunner creates a runner. A nil publisher disables live updates.
func NewRunner(s store.Store, publisher events.Publisher, clock store.Clock, settings Settings, newSession SessionFactory) *Runner {
	if clock == nil {
		clock = store.SystemClock{}
	}
	if settings.BaseURL == "" {
		settings.BaseURL = DefaultBaseURL
	}
	if settings.StorageStatePath == "" {
		settings.StorageStatePath = DefaultStorageStatePath
	}
	return &Runner{store: s, publisher: publisher, clock: clock, settings: settings, newSession: newSession}
}

// Runs returns browser runs, most recent first.
func (r *Runner) Runs() []types.BrowserRun {
	return r.store.BrowserRuns()
}

// normalizeQuery fills in the search keywords and location from the
// profile when the request leaves them out.
func (r *Runner) normalizeQuery(req types.CreateBrowserRunRequest) (string, string) {
	profile := r.store.Profile()

	query := strings.TrimSpace(req.SearchQuery)
	if query == "" {
		role := defaultRoleHint
		if len(profile.CareerGoals.TargetRoles) > 0 && profile.CareerGoals.TargetRoles[0] != "" {
			role = profile.CareerGoals.TargetRoles[0]
		}
		query = strings.TrimSpace(strings.TrimSpace(req.Company) + " " + role)
	}

	location := strings.TrimSpace(req.Location)
	if location == "" {
		location = profile.Location
	}
	if location == "" {
		location = defaultLocation
	}
	return query, location
}

func maxJobs(requested int) int {
	if requested <= 0 {
		return DefaultMaxJobs
	}
	return min(requested, MaxJobsCap)
}

// Run executes one browser run. Failures after the browser starts are
// recorded as an error run with a runtime_error step, and also returned.
func (r *Runner) Run(ctx context.Context, req types.CreateBrowserRunRequest) (types.BrowserRun, error) {
	if err := req.Validate(); err != nil {
		return types.BrowserRun{}, err
	}
	// Once accepted, a run finishes even if the caller goes away.
	ctx = context.WithoutCancel(ctx)
	query, location := r.normalizeQuery(req)

	run := types.BrowserRun{
		ID:             store.NewID(RunIDPrefix),
		CreatedAt:      r.clock.Now(),
		Query:          query,
		Location:       location,
		DiscoveredJobs: []types.DiscoveredJob{},
		Steps:          []types.Step{},
	}

	if req.DryRun {
		run.Status = types.RunPartial
		run.Steps = append(run.Steps, step(types.StepPlan, types.StepSuccess,
			"Dry run mode. LinkedIn browser session was not started. Approve and rerun without dryRun."))
		return run, r.finish(ctx, run)
	}

	ctx, span := observability.StartSpan(ctx, "browser.run",
		attribute.String("run.id", run.ID),
		attribute.String("query", query),
	)
	defer span.End()
	log.Printf("[browser] Run %s started for %q in %s", run.ID, query, location)

	err := r.execute(ctx, req, &run)
	if err != nil {
		log.Printf("[browser] Run %s failed: %v", run.ID, err)
		span.RecordError(err)
		run.Status = types.RunError
		run.DiscoveredJobs = []types.DiscoveredJob{}
		run.Steps = append(run.Steps, step(types.StepRuntimeError, types.StepError, err.Error()))
		if saveErr := r.finish(ctx, run); saveErr != nil {
			log.Printf("[browser] Failed to save run %s: %v", run.ID, saveErr)
		}
		return run, err
	}

	run.Status = types.FoldStatus(run.Steps)
	if err := r.finish(ctx, run); err != nil {
		return run, err
	}
	title := fmt.Sprintf("LinkedIn browser automation %s (%d jobs discovered)", run.Status, len(run.DiscoveredJobs))
	if err := r.store.AddActivity(ctx, types.ActivityNetwork, title, "sparkles"); err != nil {
		log.Printf("[browser] Failed to log activity for run %s: %v", run.ID, err)
	}
	log.Printf("[browser] Run %s finished: %s", run.ID, run.Status)
	return run, nil
}

func (r *Runner) finish(ctx context.Context, run types.BrowserRun) error {
	if err := r.store.SaveBrowserRun(ctx, run); err != nil {
		return fmt.Errorf("failed to save browser run: %w", err)
	}
	if r.publisher != nil {
		r.publisher.Publish(events.BrowserEvent(run))
	}
	return nil
}

// execute runs the live flow. The session is always closed.
func (r *Runner) execute(ctx context.Context, req types.CreateBrowserRunRequest, run *types.BrowserRun) error {
	session, err := r.newSession(ctx)
	if err != nil {
		return types.ExternalFailure(err, "failed to start browser")
	}
	defer func() {
		if closeErr := session.Close(); closeErr != nil {
			log.Printf("[browser] Failed to close session: %v", closeErr)
		}
	}()

	loginStep, err := r.authenticate(ctx, session)
	if err != nil {
		return err
	}
	run.Steps = append(run.Steps, loginStep)

	jobs, err := r.discover(ctx, session, run.Query, run.Location, maxJobs(req.MaxJobs))
	if err != nil {
		return err
	}
	run.DiscoveredJobs = jobs
	if len(jobs) > 0 {
		run.Steps = append(run.Steps, step(types.StepDiscoverJobs, types.StepSuccess,
			fmt.Sprintf("Discovered %d jobs for query %q.", len(jobs), run.Query)))
	} else {
		run.Steps = append(run.Steps, step(types.StepDiscoverJobs, types.StepBlocked, "No jobs discovered for this query."))
	}

	if req.SubmitApplications {
		applyStep, err := r.apply(ctx, session, req, run.ID, jobs)
		if err != nil {
			return err
		}
		run.Steps = append(run.Steps, applyStep)
	}

	if req.SendRecruiterMessages {
		messageStep, err := r.message(ctx, req, run.Query, jobs)
		if err != nil {
			return err
		}
		run.Steps = append(run.Steps, messageStep)
	}

	if err := session.SaveState(ctx, r.settings.StorageStatePath); err != nil {
		return types.ExternalFailure(err, "failed to save LinkedIn session")
	}
	return nil
}

// authenticate reuses the saved session when the feed opens without a
// login redirect, and signs in with the configured credentials otherwise.
func (r *Runner) authenticate(ctx context.Context, session fetch.Session) (types.Step, error) {
	restored, err := session.RestoreState(ctx, r.settings.StorageStatePath)
	if err != nil {
		log.Printf("[browser] Ignoring unreadable session state: %v", err)
		restored = false
	}
	if restored {
		if err := session.Navigate(ctx, r.settings.BaseURL+"/feed/"); err != nil {
			return types.Step{}, types.ExternalFailure(err, "failed to open LinkedIn feed")
		}
		current, err := session.CurrentURL(ctx)
		if err != nil {
			return types.Step{}, types.ExternalFailure(err, "failed to read browser location")
		}
		if !strings.Contains(current, "/login") {
			return step(types.StepLinkedInLogin, types.StepSuccess, "Reused saved LinkedIn session."), nil
		}
	}

	if r.settings.Email == "" || r.settings.Password == "" {
		return types.Step{}, &types.Error{
			Kind:    types.KindInvalidInput,
			Message: "LinkedIn credentials not configured. Set LINKEDIN_EMAIL and LINKEDIN_PASSWORD.",
		}
	}

	if err := session.Navigate(ctx, r.settings.BaseURL+"/login"); err != nil {
		return types.Step{}, types.ExternalFailure(err, "failed to open LinkedIn login")
	}
	if err := session.Fill(ctx, "#username", r.settings.Email); err != nil {
		return types.Step{}, types.ExternalFailure(err, "failed to enter LinkedIn email")
	}
	if err := session.Fill(ctx, "#password", r.settings.Password); err != nil {
		return types.Step{}, types.ExternalFailure(err, "failed to enter LinkedIn password")
	}
	if err := session.Click(ctx, `button[type="submit"]`); err != nil {
		return types.Step{}, types.ExternalFailure(err, "failed to submit LinkedIn login")
	}
	if err := sleep(ctx, r.settings.LoginSettle); err != nil {
		return types.Step{}, err
	}

	current, err := session.CurrentURL(ctx)
	if err != nil {
		return types.Step{}, types.ExternalFailure(err, "failed to read browser location")
	}
	switch {
	case strings.Contains(current, "/checkpoint"), strings.Contains(current, "/challenge"):
		return types.Step{}, types.CheckpointChallenge("LinkedIn checkpoint/challenge triggered. Complete verification manually and retry.")
	case strings.Contains(current, "/login"):
		return types.Step{}, types.LoginFailed("LinkedIn login failed. Verify credentials.")
	}
	return step(types.StepLinkedInLogin, types.StepSuccess, "Logged in with configured credentials."), nil
}

func (r *Runner) discover(ctx context.Context, session fetch.Session, query, location string, limit int) ([]types.DiscoveredJob, error) {
	params := url.Values{}
	params.Set("keywords", query)
	params.Set("location", location)
	searchURL := r.settings.BaseURL + "/jobs/search/?" + params.Encode()

	if err := session.Navigate(ctx, searchURL); err != nil {
		return nil, types.ExternalFailure(err, "failed to open LinkedIn job search")
	}
	if err := sleep(ctx, r.settings.SearchSettle); err != nil {
		return nil, err
	}
	html, err := session.HTML(ctx)
	if err != nil {
		return nil, types.ExternalFailure(err, "failed to read LinkedIn search results")
	}
	jobs, err := ParseJobCards(html, r.settings.BaseURL, limit)
	if err != nil {
		return nil, types.ExternalFailure(err, "failed to read LinkedIn search results")
	}
	if jobs == nil {
		jobs = []types.DiscoveredJob{}
	}
	return jobs, nil
}

// apply opens Easy Apply on the first discovered job. Opening the workflow
// is all the automation does; the final submit may need manual input.
func (r *Runner) apply(ctx context.Context, session fetch.Session, req types.CreateBrowserRunRequest, runID string, jobs []types.DiscoveredJob) (types.Step, error) {
	if !r.settings.AllowAutoSubmit || !req.Approvals.SubmitApplications {
		return step(types.StepSubmitApplication, types.StepPendingApproval,
			"Submission blocked by approval policy. Set LINKEDIN_ALLOW_AUTO_SUBMIT=true and approvals.submitApplications=true."), nil
	}
	if len(jobs) == 0 {
		return step(types.StepSubmitApplication, types.StepBlocked, "No discovered jobs to apply against."), nil
	}

	first := jobs[0]
	if err := session.Navigate(ctx, first.URL); err != nil {
		return types.Step{}, types.ExternalFailure(err, "failed to open job %q", first.Title)
	}
	found, err := session.Exists(ctx, easyApplySelector)
	if err != nil {
		return types.Step{}, types.ExternalFailure(err, "failed to inspect job page")
	}
	if !found {
		return step(types.StepSubmitApplication, types.StepBlocked, "Easy Apply button not available on selected role."), nil
	}
	if err := session.Click(ctx, easyApplySelector); err != nil {
		return types.Step{}, types.ExternalFailure(err, "failed to open Easy Apply")
	}
	if err := sleep(ctx, r.settings.ApplySettle); err != nil {
		return types.Step{}, err
	}

	if err := r.recordApplication(ctx, first, runID); err != nil {
		return types.Step{}, err
	}
	return step(types.StepSubmitApplication, types.StepSuccess,
		"Opened Easy Apply workflow in browser. Final submission may still require additional manual fields."), nil
}

// recordApplication logs an application when the discovered job is in the
// catalog and has not been applied to yet.
func (r *Runner) recordApplication(ctx context.Context, discovered types.DiscoveredJob, runID string) error {
	var matched *types.Job
	for _, job := range r.store.Jobs() {
		if strings.EqualFold(job.Title, discovered.Title) && strings.EqualFold(job.Company, discovered.Company) {
			matched = &job
			break
		}
	}
	if matched == nil {
		return nil
	}
	for _, app := range r.store.Applications() {
		if strings.EqualFold(app.JobTitle, matched.Title) && strings.EqualFold(app.Company, matched.Company) {
			return nil
		}
	}

	today := r.clock.Today()
	_, err := r.store.CreateApplication(ctx, types.Application{
		JobTitle:        matched.Title,
		Company:         matched.Company,
		Logo:            matched.Logo,
		Status:          types.ApplicationApplied,
		AppliedDate:     today,
		LastUpdate:      today,
		NextStep:        "LinkedIn Easy Apply started",
		Notes:           "LinkedIn browser automation opened Easy Apply workflow.",
		MatchScore:      matched.MatchScore,
		Source:          types.SourceAutomation,
		AutomationRunID: runID,
	})
	if err != nil {
		return fmt.Errorf("failed to record application: %w", err)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
