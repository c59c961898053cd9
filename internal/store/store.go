// Package store holds the job-search records in memory and writes the whole
// state through to a Persister after every mutation.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/jonathan/found/internal/schemas"
	"github.com/jonathan/found/internal/types"
)

// MaxActivityEntries bounds the activity feed.
const MaxActivityEntries = 30

// State is the full persisted document.
type State struct {
	Profile         types.UserProfile     `json:"profile" yaml:"profile"`
	AgentConfig     types.AgentConfig     `json:"linkedInAgentConfig" yaml:"linkedInAgentConfig"`
	Jobs            []types.Job           `json:"jobs" yaml:"jobs"`
	Connections     []types.Connection    `json:"connections" yaml:"connections"`
	FollowUps       []types.FollowUp      `json:"followUps" yaml:"followUps"`
	Referrals       []types.Referral      `json:"referrals" yaml:"referrals"`
	Applications    []types.Application   `json:"applications" yaml:"applications"`
	ActivityFeed    []types.Activity      `json:"activityFeed" yaml:"activityFeed"`
	AgentRuns       []types.Run           `json:"linkedInAgentRuns" yaml:"-"`
	BrowserRuns     []types.BrowserRun    `json:"linkedInBrowserRuns" yaml:"-"`
	OutreachHistory []types.OutreachEntry `json:"outreachHistory" yaml:"-"`
}

// Persister stores and retrieves the encoded state document.
// Load returns nil data when nothing has been saved yet.
type Persister interface {
	LoadState(ctx context.Context) ([]byte, error)
	SaveState(ctx context.Context, data []byte) error
}

// Store is the record store consumed by the agents and the API.
// Each call is atomic; there is no isolation across calls.
type Store interface {
	Profile() types.UserProfile
	AgentConfig() types.AgentConfig
	UpdateAgentConfig(ctx context.Context, update types.AgentConfigUpdate) (types.AgentConfig, error)

	Jobs() []types.Job
	FindJob(id string) (types.Job, bool)
	AddJobs(ctx context.Context, jobs []types.Job) error
	Connections() []types.Connection

	Applications() []types.Application
	FindApplication(company, title string) (types.Application, bool)
	CountApplicationsOn(date string) int
	CreateApplication(ctx context.Context, app types.Application) (types.Application, error)

	FollowUps() []types.FollowUp
	CountFollowUpsOn(date string) int
	CreateFollowUp(ctx context.Context, followUp types.FollowUp, history ...types.OutreachEntry) (types.FollowUp, error)
	UpdateFollowUp(ctx context.Context, id string, update types.FollowUpUpdate) (types.FollowUp, error)
	OutreachHistory() []types.OutreachEntry

	Referrals() []types.Referral
	CreateReferral(ctx context.Context, referral types.Referral) (types.Referral, error)

	Activity() []types.Activity
	AddActivity(ctx context.Context, kind types.ActivityType, title, icon string) error

	SaveRun(ctx context.Context, run types.Run) error
	Runs() []types.Run
	SaveBrowserRun(ctx context.Context, run types.BrowserRun) error
	BrowserRuns() []types.BrowserRun
}

// Memory is the mutex-guarded Store implementation.
type Memory struct {
	mu        sync.Mutex
	state     State
	clock     Clock
	persister Persister
}

// New returns a store over the given state. A nil persister keeps
// everything in memory.
func New(state State, clock Clock, persister Persister) *Memory {
	if clock == nil {
		clock = SystemClock{}
	}
	hydrate(&state)
	return &Memory{state: state, clock: clock, persister: persister}
}

// Open loads persisted state when there is any, otherwise starts from seed,
// and writes the hydrated result back so the persister is never empty.
func Open(ctx context.Context, persister Persister, seed State, clock Clock) (*Memory, error) {
	state := seed
	if persister != nil {
		data, err := persister.LoadState(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load state: %w", err)
		}
		if len(data) > 0 {
			if err := schemas.ValidateState(data); err != nil {
				return nil, fmt.Errorf("persisted state is invalid: %w", err)
			}
			var loaded State
			if err := json.Unmarshal(data, &loaded); err != nil {
				return nil, fmt.Errorf("failed to decode state: %w", err)
			}
			state = loaded
			log.Printf("[store] Loaded persisted state (%d jobs, %d runs)", len(loaded.Jobs), len(loaded.AgentRuns))
		}
	}

	m := New(state, clock, persister)
	m.mu.Lock()
	defer m.mu.Unlock()
	data, err := json.Marshal(m.state)
	if err != nil {
		return nil, fmt.Errorf("failed to encode state: %w", err)
	}
	if err := schemas.ValidateState(data); err != nil {
		return nil, fmt.Errorf("seed state is invalid: %w", err)
	}
	if err := m.persistLocked(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

// hydrate fills defaults for fields a partial document may omit.
func hydrate(s *State) {
	if s.AgentConfig == (types.AgentConfig{}) {
		s.AgentConfig = types.DefaultAgentConfig()
	}
	if !s.AgentConfig.PreferredMessageTone.Valid() {
		s.AgentConfig.PreferredMessageTone = types.ToneProfessional
	}
	if len(s.ActivityFeed) > MaxActivityEntries {
		s.ActivityFeed = s.ActivityFeed[:MaxActivityEntries]
	}
	for i := range s.Connections {
		if s.Connections[i].Status == "" {
			s.Connections[i].Status = types.ConnectionSuggested
		}
	}
}

// Snapshot returns a copy of the whole document.
func (m *Memory) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneState(m.state)
}

func (m *Memory) persistLocked(ctx context.Context) error {
	if m.persister == nil {
		return nil
	}
	data, err := json.Marshal(m.state)
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	if err := m.persister.SaveState(ctx, data); err != nil {
		log.Printf("[store] Failed to persist state: %v", err)
		return fmt.Errorf("failed to persist state: %w", err)
	}
	return nil
}

// commitLocked persists the state and calls undo when the write fails,
// so memory never holds changes the persister does not.
func (m *Memory) commitLocked(ctx context.Context, undo func()) error {
	if err := m.persistLocked(ctx); err != nil {
		undo()
		return err
	}
	return nil
}

// Profile returns the user profile.
func (m *Memory) Profile() types.UserProfile {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Profile
}

// AgentConfig returns the current agent policy configuration.
func (m *Memory) AgentConfig() types.AgentConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.AgentConfig
}

// UpdateAgentConfig applies the non-nil fields of update.
func (m *Memory) UpdateAgentConfig(ctx context.Context, update types.AgentConfigUpdate) (types.AgentConfig, error) {
	if err := update.Validate(); err != nil {
		return types.AgentConfig{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cfg := m.state.AgentConfig
	if update.DailyApplicationLimit != nil {
		cfg.DailyApplicationLimit = *update.DailyApplicationLimit
	}
	if update.DailyOutreachLimit != nil {
		cfg.DailyOutreachLimit = *update.DailyOutreachLimit
	}
	if update.RequireHumanApproval != nil {
		cfg.RequireHumanApproval = *update.RequireHumanApproval
	}
	if update.PreferredMessageTone != nil {
		cfg.PreferredMessageTone = *update.PreferredMessageTone
	}
	prev := m.state.AgentConfig
	m.state.AgentConfig = cfg
	if err := m.commitLocked(ctx, func() { m.state.AgentConfig = prev }); err != nil {
		return types.AgentConfig{}, err
	}
	return cfg, nil
}

// Jobs returns the catalog.
func (m *Memory) Jobs() []types.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.state.Jobs)
}

// FindJob looks up a catalog job by id.
func (m *Memory) FindJob(id string) (types.Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, job := range m.state.Jobs {
		if job.ID == id {
			return job, true
		}
	}
	return types.Job{}, false
}

// AddJobs prepends jobs to the catalog. Deduplication is the caller's job.
func (m *Memory) AddJobs(ctx context.Context, jobs []types.Job) error {
	if len(jobs) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	prev := m.state.Jobs
	m.state.Jobs = append(slices.Clone(jobs), prev...)
	return m.commitLocked(ctx, func() { m.state.Jobs = prev })
}

// Connections returns the network.
func (m *Memory) Connections() []types.Connection {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.state.Connections)
}

// Applications returns every application, newest first.
func (m *Memory) Applications() []types.Application {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.state.Applications)
}

// FindApplication returns the application for a company and title, matched exactly.
func (m *Memory) FindApplication(company, title string) (types.Application, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, app := range m.state.Applications {
		if app.Company == company && app.JobTitle == title {
			return app, true
		}
	}
	return types.Application{}, false
}

// CountApplicationsOn counts applications filed on date.
func (m *Memory) CountApplicationsOn(date string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, app := range m.state.Applications {
		if app.AppliedDate == date {
			n++
		}
	}
	return n
}

// CreateApplication assigns an id when missing and stores the application.
func (m *Memory) CreateApplication(ctx context.Context, app types.Application) (types.Application, error) {
	if app.ID == "" {
		app.ID = NewID("app")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	prev := m.state.Applications
	m.state.Applications = append([]types.Application{app}, prev...)
	if err := m.commitLocked(ctx, func() { m.state.Applications = prev }); err != nil {
		return types.Application{}, err
	}
	return app, nil
}

// FollowUps returns the follow-up queue, newest first.
func (m *Memory) FollowUps() []types.FollowUp {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.state.FollowUps)
}

// CountFollowUpsOn counts follow-ups scheduled on date.
func (m *Memory) CountFollowUpsOn(date string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, f := range m.state.FollowUps {
		if f.ScheduledDate == date {
			n++
		}
	}
	return n
}

// CreateFollowUp stores a follow-up together with its outreach history
// entries in a single write.
func (m *Memory) CreateFollowUp(ctx context.Context, followUp types.FollowUp, history ...types.OutreachEntry) (types.FollowUp, error) {
	if followUp.ID == "" {
		followUp.ID = NewID("f")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	prevFollowUps, prevHistory := m.state.FollowUps, m.state.OutreachHistory
	m.state.FollowUps = append([]types.FollowUp{followUp}, prevFollowUps...)
	for _, entry := range history {
		if entry.ID == "" {
			entry.ID = NewID("oh")
		}
		m.state.OutreachHistory = append([]types.OutreachEntry{entry}, m.state.OutreachHistory...)
	}
	undo := func() {
		m.state.FollowUps = prevFollowUps
		m.state.OutreachHistory = prevHistory
	}
	if err := m.commitLocked(ctx, undo); err != nil {
		return types.FollowUp{}, err
	}
	return followUp, nil
}

// UpdateFollowUp applies the non-nil fields of update to one follow-up.
func (m *Memory) UpdateFollowUp(ctx context.Context, id string, update types.FollowUpUpdate) (types.FollowUp, error) {
	if err := update.Validate(); err != nil {
		return types.FollowUp{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.state.FollowUps {
		f := &m.state.FollowUps[i]
		if f.ID != id {
			continue
		}
		prev := *f
		if update.AIMessage != nil {
			f.AIMessage = strings.TrimSpace(*update.AIMessage)
		}
		if update.Status != nil {
			f.Status = *update.Status
		}
		if err := m.commitLocked(ctx, func() { m.state.FollowUps[i] = prev }); err != nil {
			return types.FollowUp{}, err
		}
		return *f, nil
	}
	return types.FollowUp{}, types.NotFound("Follow-up not found")
}

// OutreachHistory returns every outreach record, newest first.
func (m *Memory) OutreachHistory() []types.OutreachEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.state.OutreachHistory)
}

// Referrals returns every referral request, newest first.
func (m *Memory) Referrals() []types.Referral {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.state.Referrals)
}

// CreateReferral stores a referral request.
func (m *Memory) CreateReferral(ctx context.Context, referral types.Referral) (types.Referral, error) {
	if referral.ID == "" {
		referral.ID = NewID("r")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	prev := m.state.Referrals
	m.state.Referrals = append([]types.Referral{referral}, prev...)
	if err := m.commitLocked(ctx, func() { m.state.Referrals = prev }); err != nil {
		return types.Referral{}, err
	}
	return referral, nil
}

// Activity returns the feed, newest first.
func (m *Memory) Activity() []types.Activity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.state.ActivityFeed)
}

// AddActivity prepends a feed entry and drops the oldest beyond the cap.
func (m *Memory) AddActivity(ctx context.Context, kind types.ActivityType, title, icon string) error {
	entry := types.Activity{
		ID:    NewID("a"),
		Type:  kind,
		Title: title,
		Time:  m.clock.Now().Format(time.RFC3339),
		Icon:  icon,
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	prev := m.state.ActivityFeed
	feed := append([]types.Activity{entry}, prev...)
	if len(feed) > MaxActivityEntries {
		feed = feed[:MaxActivityEntries]
	}
	m.state.ActivityFeed = feed
	return m.commitLocked(ctx, func() { m.state.ActivityFeed = prev })
}

// SaveRun inserts a run at the head of the history or replaces the run
// with the same id in place.
func (m *Memory) SaveRun(ctx context.Context, run types.Run) error {
	run.Steps = slices.Clone(run.Steps)
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := slices.IndexFunc(m.state.AgentRuns, func(r types.Run) bool { return r.ID == run.ID }); i >= 0 {
		prev := m.state.AgentRuns[i]
		m.state.AgentRuns[i] = run
		return m.commitLocked(ctx, func() { m.state.AgentRuns[i] = prev })
	}
	prev := m.state.AgentRuns
	m.state.AgentRuns = append([]types.Run{run}, prev...)
	return m.commitLocked(ctx, func() { m.state.AgentRuns = prev })
}

// Runs returns agent runs, most recent first.
func (m *Memory) Runs() []types.Run {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.state.AgentRuns)
}

// SaveBrowserRun inserts or replaces a browser run by id.
func (m *Memory) SaveBrowserRun(ctx context.Context, run types.BrowserRun) error {
	run.Steps = slices.Clone(run.Steps)
	run.DiscoveredJobs = slices.Clone(run.DiscoveredJobs)
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := slices.IndexFunc(m.state.BrowserRuns, func(r types.BrowserRun) bool { return r.ID == run.ID }); i >= 0 {
		prev := m.state.BrowserRuns[i]
		m.state.BrowserRuns[i] = run
		return m.commitLocked(ctx, func() { m.state.BrowserRuns[i] = prev })
	}
	prev := m.state.BrowserRuns
	m.state.BrowserRuns = append([]types.BrowserRun{run}, prev...)
	return m.commitLocked(ctx, func() { m.state.BrowserRuns = prev })
}

// BrowserRuns returns browser runs, most recent first.
func (m *Memory) BrowserRuns() []types.BrowserRun {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.state.BrowserRuns)
}

func cloneState(s State) State {
	s.Jobs = slices.Clone(s.Jobs)
	s.Connections = slices.Clone(s.Connections)
	s.FollowUps = slices.Clone(s.FollowUps)
	s.Referrals = slices.Clone(s.Referrals)
	s.Applications = slices.Clone(s.Applications)
	s.ActivityFeed = slices.Clone(s.ActivityFeed)
	s.AgentRuns = slices.Clone(s.AgentRuns)
	s.BrowserRuns = slices.Clone(s.BrowserRuns)
	s.OutreachHistory = slices.Clone(s.OutreachHistory)
	return s
}
