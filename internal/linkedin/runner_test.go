package linkedin

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/found/internal/events"
	"github.com/jonathan/found/internal/fetch"
	"github.com/jonathan/found/internal/store"
	"github.com/jonathan/found/internal/types"
)

const base = "https://linkedin.test"

const searchHTML = `<html><body><ul>
  <li><a href="/jobs/view/1">Staff Engineer</a> · Acme · Remote</li>
  <li><a href="/jobs/view/2">Platform Engineer</a> · Globex</li>
  <li><a href="/jobs/view/1">Staff Engineer</a> · Acme</li>
</ul></body></html>`

var testClock = store.FixedClock{At: time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC)}

type mockSession struct {
	mock.Mock
}

func (m *mockSession) Navigate(ctx context.Context, url string) error {
	return m.Called(ctx, url).Error(0)
}

func (m *mockSession) Fill(ctx context.Context, selector, value string) error {
	return m.Called(ctx, selector, value).Error(0)
}

func (m *mockSession) Click(ctx context.Context, selector string) error {
	return m.Called(ctx, selector).Error(0)
}

func (m *mockSession) Exists(ctx context.Context, selector string) (bool, error) {
	args := m.Called(ctx, selector)
	return args.Bool(0), args.Error(1)
}

func (m *mockSession) HTML(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *mockSession) CurrentURL(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *mockSession) SaveState(ctx context.Context, path string) error {
	return m.Called(ctx, path).Error(0)
}

func (m *mockSession) RestoreState(ctx context.Context, path string) (bool, error) {
	args := m.Called(ctx, path)
	return args.Bool(0), args.Error(1)
}

func (m *mockSession) Close() error {
	return m.Called().Error(0)
}

type recorder struct {
	events []events.Event
}

func (r *recorder) Publish(ev events.Event) { r.events = append(r.events, ev) }

func testSettings() Settings {
	return Settings{
		Email:            "ada@example.com",
		Password:         "secret",
		StorageStatePath: "state.json",
		BaseURL:          base,
	}
}

func testState() store.State {
	return store.State{
		Profile: types.UserProfile{
			Name:        "Ada",
			Location:    "Berlin",
			CareerGoals: types.CareerGoals{TargetRoles: []string{"Staff Engineer"}},
		},
		Jobs: []types.Job{{ID: "job-1", Title: "Staff Engineer", Company: "ACME", MatchScore: 90}},
		Connections: []types.Connection{
			{Name: "Rita", Company: "Acme Corp", Tags: []string{"Technical Recruiter"}},
			{Name: "Tom", Company: "Acme Corp", Tags: []string{"Engineer"}},
			{Name: "Gail", Company: "Globex", Tags: []string{"Talent"}},
		},
	}
}

func newRunner(t *testing.T, settings Settings, session *mockSession) (*Runner, *store.Memory, *recorder) {
	t.Helper()
	s := store.New(testState(), testClock, nil)
	rec := &recorder{}
	factory := func(context.Context) (fetch.Session, error) { return session, nil }
	return NewRunner(s, rec, testClock, settings, factory), s, rec
}

func expectSavedSession(session *mockSession) {
	session.On("RestoreState", mock.Anything, "state.json").Return(true, nil)
	session.On("Navigate", mock.Anything, base+"/feed/").Return(nil)
	session.On("CurrentURL", mock.Anything).Return(base+"/feed/", nil).Once()
}

func expectSearch(session *mockSession, html string) {
	session.On("Navigate", mock.Anything, mock.MatchedBy(func(u string) bool {
		return u == base+"/jobs/search/?keywords=staff+engineer&location=Berlin"
	})).Return(nil)
	session.On("HTML", mock.Anything).Return(html, nil)
}

func TestRun_DryRunStartsNoBrowser(t *testing.T) {
	s := store.New(testState(), testClock, nil)
	rec := &recorder{}
	factory := func(context.Context) (fetch.Session, error) {
		t.Fatal("browser must not start on a dry run")
		return nil, nil
	}
	runner := NewRunner(s, rec, testClock, testSettings(), factory)

	run, err := runner.Run(context.Background(), types.CreateBrowserRunRequest{Company: "Acme", DryRun: true})
	require.NoError(t, err)

	assert.Equal(t, types.RunPartial, run.Status)
	assert.Equal(t, "Acme Staff Engineer", run.Query)
	assert.Equal(t, "Berlin", run.Location)
	require.Len(t, run.Steps, 1)
	assert.Equal(t, types.StepPlan, run.Steps[0].ID)
	assert.Contains(t, run.ID, RunIDPrefix+"_")
	assert.Len(t, runner.Runs(), 1)
	require.Len(t, rec.events, 1)
	assert.Equal(t, events.SourceBrowser, rec.events[0].Source)
}

func TestRun_ReusesSessionAndDiscovers(t *testing.T) {
	session := &mockSession{}
	expectSavedSession(session)
	expectSearch(session, searchHTML)
	session.On("SaveState", mock.Anything, "state.json").Return(nil)
	session.On("Close").Return(nil)

	runner, s, rec := newRunner(t, testSettings(), session)
	run, err := runner.Run(context.Background(), types.CreateBrowserRunRequest{SearchQuery: "staff engineer"})
	require.NoError(t, err)

	assert.Equal(t, types.RunSuccess, run.Status)
	require.Len(t, run.Steps, 2)
	assert.Equal(t, "Reused saved LinkedIn session.", run.Steps[0].Detail)
	assert.Equal(t, types.StepDiscoverJobs, run.Steps[1].ID)
	assert.Equal(t, `Discovered 2 jobs for query "staff engineer".`, run.Steps[1].Detail)
	assert.Equal(t, []types.DiscoveredJob{
		{Title: "Staff Engineer", Company: "Acme", URL: base + "/jobs/view/1"},
		{Title: "Platform Engineer", Company: "Globex", URL: base + "/jobs/view/2"},
	}, run.DiscoveredJobs)

	assert.Equal(t, "LinkedIn browser automation success (2 jobs discovered)", s.Activity()[0].Title)
	assert.Len(t, rec.events, 1)
	session.AssertExpectations(t)
	session.AssertNotCalled(t, "Fill", mock.Anything, mock.Anything, mock.Anything)
}

func TestRun_CompletesAfterCallerCancels(t *testing.T) {
	session := &mockSession{}
	expectSavedSession(session)
	expectSearch(session, searchHTML)
	session.On("SaveState", mock.MatchedBy(func(ctx context.Context) bool { return ctx.Err() == nil }), "state.json").Return(nil)
	session.On("Close").Return(nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	runner, s, rec := newRunner(t, testSettings(), session)
	run, err := runner.Run(ctx, types.CreateBrowserRunRequest{SearchQuery: "staff engineer"})
	require.NoError(t, err)

	assert.Equal(t, types.RunSuccess, run.Status)
	assert.Len(t, run.DiscoveredJobs, 2)
	require.Len(t, s.BrowserRuns(), 1)
	assert.Equal(t, types.RunSuccess, s.BrowserRuns()[0].Status)
	require.Len(t, rec.events, 1)
	assert.Equal(t, types.RunSuccess, rec.events[0].BrowserRun.Status)
	session.AssertExpectations(t)
}

func TestRun_LogsInWhenSavedSessionExpired(t *testing.T) {
	session := &mockSession{}
	session.On("RestoreState", mock.Anything, "state.json").Return(true, nil)
	session.On("Navigate", mock.Anything, base+"/feed/").Return(nil)
	session.On("CurrentURL", mock.Anything).Return(base+"/login?redirect=feed", nil).Once()
	session.On("Navigate", mock.Anything, base+"/login").Return(nil)
	session.On("Fill", mock.Anything, "#username", "ada@example.com").Return(nil)
	session.On("Fill", mock.Anything, "#password", "secret").Return(nil)
	session.On("Click", mock.Anything, `button[type="submit"]`).Return(nil)
	session.On("CurrentURL", mock.Anything).Return(base+"/feed/", nil).Once()
	expectSearch(session, "<html></html>")
	session.On("SaveState", mock.Anything, "state.json").Return(nil)
	session.On("Close").Return(nil)

	runner, _, _ := newRunner(t, testSettings(), session)
	run, err := runner.Run(context.Background(), types.CreateBrowserRunRequest{SearchQuery: "staff engineer"})
	require.NoError(t, err)

	assert.Equal(t, "Logged in with configured credentials.", run.Steps[0].Detail)
	assert.Equal(t, types.StepBlocked, run.Steps[1].Status, "empty discovery is blocked")
	assert.Equal(t, types.RunPartial, run.Status)
	assert.Empty(t, run.DiscoveredJobs)
	session.AssertExpectations(t)
}

func TestRun_AuthenticationFailures(t *testing.T) {
	tests := []struct {
		name     string
		landing  string
		settings func(Settings) Settings
		kind     types.ErrorKind
		detail   string
	}{
		{
			name:    "checkpoint",
			landing: base + "/checkpoint/challenge/123",
			kind:    types.KindCheckpointChallenge,
			detail:  "LinkedIn checkpoint/challenge triggered. Complete verification manually and retry.",
		},
		{
			name:    "rejected credentials",
			landing: base + "/login",
			kind:    types.KindLoginFailed,
			detail:  "LinkedIn login failed. Verify credentials.",
		},
		{
			name:     "missing credentials",
			settings: func(s Settings) Settings { s.Password = ""; return s },
			kind:     types.KindInvalidInput,
			detail:   "LinkedIn credentials not configured. Set LINKEDIN_EMAIL and LINKEDIN_PASSWORD.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := &mockSession{}
			session.On("RestoreState", mock.Anything, "state.json").Return(false, nil)
			session.On("Navigate", mock.Anything, base+"/login").Return(nil)
			session.On("Fill", mock.Anything, mock.Anything, mock.Anything).Return(nil)
			session.On("Click", mock.Anything, mock.Anything).Return(nil)
			session.On("CurrentURL", mock.Anything).Return(tt.landing, nil)
			session.On("Close").Return(nil)

			settings := testSettings()
			if tt.settings != nil {
				settings = tt.settings(settings)
			}
			runner, s, rec := newRunner(t, settings, session)

			run, err := runner.Run(context.Background(), types.CreateBrowserRunRequest{SearchQuery: "staff engineer"})
			require.Error(t, err)
			assert.True(t, types.IsKind(err, tt.kind), "got %v", err)

			assert.Equal(t, types.RunError, run.Status)
			require.Len(t, run.Steps, 1)
			assert.Equal(t, types.StepRuntimeError, run.Steps[0].ID)
			assert.Equal(t, tt.detail, run.Steps[0].Detail)

			saved := s.BrowserRuns()
			require.Len(t, saved, 1, "failed run is persisted")
			assert.Equal(t, types.RunError, saved[0].Status)
			assert.Len(t, rec.events, 1)
			session.AssertCalled(t, "Close")
			session.AssertNotCalled(t, "SaveState", mock.Anything, mock.Anything)
		})
	}
}

func TestRun_BrowserLaunchFailure(t *testing.T) {
	s := store.New(testState(), testClock, nil)
	factory := func(context.Context) (fetch.Session, error) { return nil, errors.New("chrome not found") }
	runner := NewRunner(s, nil, testClock, testSettings(), factory)

	run, err := runner.Run(context.Background(), types.CreateBrowserRunRequest{})
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.KindExternalFailure))
	assert.Equal(t, types.RunError, run.Status)
	assert.Contains(t, run.Steps[0].Detail, "chrome not found")
}

func TestRun_ApplyGates(t *testing.T) {
	t.Run("auto submit disabled waits for approval", func(t *testing.T) {
		session := &mockSession{}
		expectSavedSession(session)
		expectSearch(session, searchHTML)
		session.On("SaveState", mock.Anything, "state.json").Return(nil)
		session.On("Close").Return(nil)

		runner, s, _ := newRunner(t, testSettings(), session)
		run, err := runner.Run(context.Background(), types.CreateBrowserRunRequest{
			SearchQuery:        "staff engineer",
			SubmitApplications: true,
			Approvals:          types.BrowserApprovals{SubmitApplications: true},
		})
		require.NoError(t, err)
		require.Len(t, run.Steps, 3)
		assert.Equal(t, types.StepPendingApproval, run.Steps[2].Status)
		assert.Equal(t, types.RunPartial, run.Status)
		assert.Empty(t, s.Applications())
	})

	t.Run("easy apply opens and records the catalog job", func(t *testing.T) {
		session := &mockSession{}
		expectSavedSession(session)
		expectSearch(session, searchHTML)
		session.On("Navigate", mock.Anything, base+"/jobs/view/1").Return(nil)
		session.On("Exists", mock.Anything, easyApplySelector).Return(true, nil)
		session.On("Click", mock.Anything, easyApplySelector).Return(nil)
		session.On("SaveState", mock.Anything, "state.json").Return(nil)
		session.On("Close").Return(nil)

		settings := testSettings()
		settings.AllowAutoSubmit = true
		runner, s, _ := newRunner(t, settings, session)
		run, err := runner.Run(context.Background(), types.CreateBrowserRunRequest{
			SearchQuery:        "staff engineer",
			SubmitApplications: true,
			Approvals:          types.BrowserApprovals{SubmitApplications: true},
		})
		require.NoError(t, err)

		assert.Equal(t, types.StepSuccess, run.Steps[2].Status)
		assert.Contains(t, run.Steps[2].Detail, "Final submission may still require additional manual fields.")
		apps := s.Applications()
		require.Len(t, apps, 1)
		assert.Equal(t, "ACME", apps[0].Company)
		assert.Equal(t, "LinkedIn Easy Apply started", apps[0].NextStep)
		assert.Equal(t, run.ID, apps[0].AutomationRunID)
	})

	t.Run("missing easy apply button is blocked", func(t *testing.T) {
		session := &mockSession{}
		expectSavedSession(session)
		expectSearch(session, searchHTML)
		session.On("Navigate", mock.Anything, base+"/jobs/view/1").Return(nil)
		session.On("Exists", mock.Anything, easyApplySelector).Return(false, nil)
		session.On("SaveState", mock.Anything, "state.json").Return(nil)
		session.On("Close").Return(nil)

		settings := testSettings()
		settings.AllowAutoSubmit = true
		runner, s, _ := newRunner(t, settings, session)
		run, err := runner.Run(context.Background(), types.CreateBrowserRunRequest{
			SearchQuery:        "staff engineer",
			SubmitApplications: true,
			Approvals:          types.BrowserApprovals{SubmitApplications: true},
		})
		require.NoError(t, err)
		assert.Equal(t, types.StepBlocked, run.Steps[2].Status)
		assert.Equal(t, "Easy Apply button not available on selected role.", run.Steps[2].Detail)
		assert.Empty(t, s.Applications())
		session.AssertNotCalled(t, "Click", mock.Anything, easyApplySelector)
	})
}

func TestRun_MessageRecruiters(t *testing.T) {
	session := &mockSession{}
	expectSavedSession(session)
	expectSearch(session, searchHTML)
	session.On("SaveState", mock.Anything, "state.json").Return(nil)
	session.On("Close").Return(nil)

	runner, s, _ := newRunner(t, testSettings(), session)
	run, err := runner.Run(context.Background(), types.CreateBrowserRunRequest{
		SearchQuery:           "staff engineer",
		SendRecruiterMessages: true,
		Approvals:             types.BrowserApprovals{SendMessages: true},
	})
	require.NoError(t, err)

	require.Len(t, run.Steps, 3)
	assert.Equal(t, types.StepSuccess, run.Steps[2].Status)
	assert.Equal(t, "Prepared 1 recruiter outreach messages.", run.Steps[2].Detail)

	followUps := s.FollowUps()
	require.Len(t, followUps, 1)
	assert.Equal(t, "Rita", followUps[0].ContactName)
	assert.Equal(t, "Acme Corp", followUps[0].Company)
	assert.Equal(t, "LinkedIn Recruiter Outreach", followUps[0].Type)
	assert.Equal(t, testClock.Today(), followUps[0].ScheduledDate)
}

func TestRun_MessagesNeedApproval(t *testing.T) {
	session := &mockSession{}
	expectSavedSession(session)
	expectSearch(session, searchHTML)
	session.On("SaveState", mock.Anything, "state.json").Return(nil)
	session.On("Close").Return(nil)

	runner, s, _ := newRunner(t, testSettings(), session)
	run, err := runner.Run(context.Background(), types.CreateBrowserRunRequest{SearchQuery: "staff engineer", SendRecruiterMessages: true})
	require.NoError(t, err)
	assert.Equal(t, types.StepPendingApproval, run.Steps[2].Status)
	assert.Empty(t, s.FollowUps())
}

func TestMaxJobs(t *testing.T) {
	assert.Equal(t, DefaultMaxJobs, maxJobs(0))
	assert.Equal(t, DefaultMaxJobs, maxJobs(-3))
	assert.Equal(t, 7, maxJobs(7))
	assert.Equal(t, MaxJobsCap, maxJobs(50))
}
