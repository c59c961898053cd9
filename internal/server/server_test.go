package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/found/internal/config"
	"github.com/jonathan/found/internal/connectors"
	"github.com/jonathan/found/internal/events"
	"github.com/jonathan/found/internal/pipeline"
	"github.com/jonathan/found/internal/server/ratelimit"
	"github.com/jonathan/found/internal/store"
	"github.com/jonathan/found/internal/types"
)

var testClock = store.FixedClock{At: time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC)}

type fakeBrowser struct {
	runs []types.BrowserRun
	err  error
	got  types.CreateBrowserRunRequest
}

func (f *fakeBrowser) Run(_ context.Context, req types.CreateBrowserRunRequest) (types.BrowserRun, error) {
	f.got = req
	run := types.BrowserRun{ID: "browser_1", Query: req.SearchQuery, Status: types.RunSuccess}
	if f.err != nil {
		run.Status = types.RunError
		return run, f.err
	}
	f.runs = append([]types.BrowserRun{run}, f.runs...)
	return run, nil
}

func (f *fakeBrowser) Runs() []types.BrowserRun {
	if f.runs == nil {
		return []types.BrowserRun{}
	}
	return f.runs
}

type fakeFeeds struct {
	got types.ImportJobsRequest
	err error
}

func (f *fakeFeeds) Discover(_ context.Context, req types.ImportJobsRequest) (connectors.DiscoverResult, error) {
	f.got = req
	if f.err != nil {
		return connectors.DiscoverResult{}, f.err
	}
	return connectors.DiscoverResult{
		Jobs:    []types.ExternalJob{{ID: "gh-acme-1", Source: types.SourceGreenhouse, Title: "Staff Engineer", Company: "Acme"}},
		Sources: connectors.Sources{GreenhouseBoards: []string{"acme"}, LeverSites: []string{}},
	}, nil
}

func (f *fakeFeeds) Import(_ context.Context, req types.ImportJobsRequest) (connectors.ImportResult, error) {
	f.got = req
	if f.err != nil {
		return connectors.ImportResult{}, f.err
	}
	return connectors.ImportResult{Imported: 1, Skipped: 0, Jobs: []types.Job{{ID: "extjob_1", Title: "Staff Engineer", Company: "Acme"}}}, nil
}

type testEnv struct {
	server  *Server
	store   *store.Memory
	bus     *events.Bus
	browser *fakeBrowser
	feeds   *fakeFeeds
}

func setupTestServer(t *testing.T, mutate func(*Config)) *testEnv {
	t.Helper()
	cfg := types.DefaultAgentConfig()
	cfg.RequireHumanApproval = false
	s := store.New(store.State{
		Profile:     types.UserProfile{Name: "Ada Lovelace"},
		AgentConfig: cfg,
		Jobs: []types.Job{
			{ID: "job-1", Title: "Staff Engineer", Company: "Acme", MatchScore: 92},
			{ID: "job-2", Title: "Data Analyst", Company: "Globex", MatchScore: 61},
		},
		Connections: []types.Connection{
			{ID: "c1", Name: "Rita Recruiter", Company: "Acme", Tags: []string{"Recruiter"}, RelevanceScore: 88},
		},
	}, testClock, nil)

	env := &testEnv{
		store:   s,
		bus:     events.NewBus(events.DefaultBuffer, events.DefaultMaxSubscribers),
		browser: &fakeBrowser{},
		feeds:   &fakeFeeds{},
	}
	serverCfg := Config{
		Agent:        pipeline.NewAgent(s, env.bus, testClock),
		Browser:      env.browser,
		Feeds:        env.feeds,
		Events:       env.bus,
		PingInterval: 20 * time.Millisecond,
	}
	if mutate != nil {
		mutate(&serverCfg)
	}
	srv, err := New(serverCfg)
	require.NoError(t, err)
	t.Cleanup(srv.Close)
	env.server = srv
	return env
}

func (e *testEnv) do(t *testing.T, method, path, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestNew_RequiresServices(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestHealth(t *testing.T) {
	env := setupTestServer(t, nil)
	rec := env.do(t, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[map[string]string](t, rec)["status"])
}

func TestConfig_GetAndUpdate(t *testing.T) {
	env := setupTestServer(t, nil)

	rec := env.do(t, http.MethodGet, "/api/v1/agents/linkedin/config", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[struct {
		Config types.AgentConfig `json:"config"`
	}](t, rec)
	assert.Equal(t, 8, got.Config.DailyApplicationLimit)

	rec = env.do(t, http.MethodPut, "/api/v1/agents/linkedin/config", `{"dailyApplicationLimit":3,"preferredMessageTone":"casual"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got = decode[struct {
		Config types.AgentConfig `json:"config"`
	}](t, rec)
	assert.Equal(t, 3, got.Config.DailyApplicationLimit)
	assert.Equal(t, 20, got.Config.DailyOutreachLimit)
	assert.Equal(t, types.ToneCasual, got.Config.PreferredMessageTone)
	assert.Equal(t, 3, env.store.AgentConfig().DailyApplicationLimit)

	rec = env.do(t, http.MethodPatch, "/api/v1/agents/linkedin/config", `{"requireHumanApproval":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.store.AgentConfig().RequireHumanApproval)
}

func TestConfig_UpdateRejectsInvalidInput(t *testing.T) {
	env := setupTestServer(t, nil)

	tests := []struct {
		name string
		body string
	}{
		{name: "unknown tone", body: `{"preferredMessageTone":"shouty"}`},
		{name: "negative limit", body: `{"dailyOutreachLimit":-1}`},
		{name: "malformed json", body: `{"dailyOutreachLimit":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPut, "/api/v1/agents/linkedin/config", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.NotEmpty(t, decode[map[string]string](t, rec)["error"])
		})
	}
	assert.Equal(t, types.ToneProfessional, env.store.AgentConfig().PreferredMessageTone)
}

func TestListOpportunities(t *testing.T) {
	env := setupTestServer(t, nil)

	rec := env.do(t, http.MethodGet, "/api/v1/agents/linkedin/opportunities?query=staff&limit=abc", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[struct {
		Opportunities []types.Opportunity `json:"opportunities"`
	}](t, rec)
	require.NotEmpty(t, got.Opportunities)
	assert.Equal(t, "job-1", got.Opportunities[0].Job.ID)
	assert.Equal(t, 1, got.Opportunities[0].RecruiterMatches)
}

func TestRuns_CreateAndList(t *testing.T) {
	env := setupTestServer(t, nil)

	rec := env.do(t, http.MethodPost, "/api/v1/agents/linkedin/runs", `{"jobId":"job-1","mode":"autopilot"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[struct {
		Run types.Run `json:"run"`
	}](t, rec)
	assert.Equal(t, "job-1", created.Run.JobID)
	assert.Equal(t, types.ModeAutopilot, created.Run.Mode)
	assert.Len(t, created.Run.Steps, 4)

	rec = env.do(t, http.MethodGet, "/api/v1/agents/linkedin/runs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	listed := decode[struct {
		Runs []types.Run `json:"runs"`
	}](t, rec)
	require.Len(t, listed.Runs, 1)
	assert.Equal(t, created.Run.ID, listed.Runs[0].ID)
}

func TestRuns_CreateErrors(t *testing.T) {
	env := setupTestServer(t, nil)

	rec := env.do(t, http.MethodPost, "/api/v1/agents/linkedin/runs", `{"jobId":"missing"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/agents/linkedin/runs", `{"mode":"yolo"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Empty(t, env.store.Runs())
}

func TestRuns_EmptyBodyUsesDefaults(t *testing.T) {
	env := setupTestServer(t, nil)

	rec := env.do(t, http.MethodPost, "/api/v1/agents/linkedin/runs", "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[struct {
		Run types.Run `json:"run"`
	}](t, rec)
	assert.Equal(t, types.ModeAssist, created.Run.Mode)
}

func TestBrowserRuns(t *testing.T) {
	env := setupTestServer(t, nil)

	rec := env.do(t, http.MethodPost, "/api/v1/agents/linkedin/browser-runs", `{"searchQuery":"platform engineer","maxJobs":3,"dryRun":true}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "platform engineer", env.browser.got.SearchQuery)
	assert.Equal(t, 3, env.browser.got.MaxJobs)
	assert.True(t, env.browser.got.DryRun)

	rec = env.do(t, http.MethodGet, "/api/v1/agents/linkedin/browser-runs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	listed := decode[struct {
		Runs []types.BrowserRun `json:"runs"`
	}](t, rec)
	assert.Len(t, listed.Runs, 1)
}

func TestBrowserRuns_ErrorStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "checkpoint", err: types.CheckpointChallenge("LinkedIn requested a security checkpoint."), want: http.StatusConflict},
		{name: "login", err: types.LoginFailed("LinkedIn login did not complete."), want: http.StatusUnauthorized},
		{name: "missing credentials", err: types.InvalidInput("credentials", "LinkedIn credentials are not configured"), want: http.StatusBadRequest},
		{name: "unexpected", err: assert.AnError, want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestServer(t, nil)
			env.browser.err = tt.err

			rec := env.do(t, http.MethodPost, "/api/v1/agents/linkedin/browser-runs", `{}`)
			assert.Equal(t, tt.want, rec.Code)
			msg := decode[map[string]string](t, rec)["error"]
			if tt.want == http.StatusInternalServerError {
				assert.Equal(t, "Internal server error", msg)
			} else {
				assert.Equal(t, tt.err.Error(), msg)
			}
		})
	}
}

func TestIntegrations(t *testing.T) {
	env := setupTestServer(t, nil)

	rec := env.do(t, http.MethodGet, "/api/v1/integrations/jobs?query=staff&company=acme&limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, types.ImportJobsRequest{Query: "staff", Company: "acme", Limit: 5}, env.feeds.got)
	discovered := decode[connectors.DiscoverResult](t, rec)
	require.Len(t, discovered.Jobs, 1)
	assert.Equal(t, []string{"acme"}, discovered.Sources.GreenhouseBoards)

	rec = env.do(t, http.MethodPost, "/api/v1/integrations/jobs/import", `{"query":"staff","limit":10}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 10, env.feeds.got.Limit)
	imported := decode[connectors.ImportResult](t, rec)
	assert.Equal(t, 1, imported.Imported)
}

func TestIntegrations_Unconfigured(t *testing.T) {
	env := setupTestServer(t, nil)
	env.feeds.err = &types.Error{Kind: types.KindInvalidInput, Message: "No external job connectors configured."}

	rec := env.do(t, http.MethodGet, "/api/v1/integrations/jobs", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No external job connectors configured.", decode[map[string]string](t, rec)["error"])
}

func TestAuth_ProtectsMutations(t *testing.T) {
	jwtCfg, err := config.NewJWTConfig(testSecret, 1)
	require.NoError(t, err)
	env := setupTestServer(t, func(c *Config) { c.JWT = jwtCfg })

	rec := env.do(t, http.MethodGet, "/api/v1/agents/linkedin/runs", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/agents/linkedin/runs", `{"jobId":"job-1"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := NewJWTService(jwtCfg).GenerateToken("operator")
	require.NoError(t, err)
	rec = env.do(t, http.MethodPost, "/api/v1/agents/linkedin/runs", `{"jobId":"job-1"}`, "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestCORS_Preflight(t *testing.T) {
	env := setupTestServer(t, nil)
	rec := env.do(t, http.MethodOptions, "/api/v1/agents/linkedin/runs", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimit_Returns429(t *testing.T) {
	env := setupTestServer(t, func(c *Config) {
		c.RateLimit = &ratelimit.Config{
			Enabled:       true,
			DefaultLimit:  1000,
			DefaultWindow: time.Minute,
			Rules: []ratelimit.Rule{
				{Method: http.MethodPost, Path: "/api/v1/agents/linkedin/browser-runs", Limit: 1, Window: time.Hour},
			},
		}
	})

	rec := env.do(t, http.MethodPost, "/api/v1/agents/linkedin/browser-runs", `{}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Limit"))

	rec = env.do(t, http.MethodPost, "/api/v1/agents/linkedin/browser-runs", `{}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	body := decode[map[string]any](t, rec)
	assert.Contains(t, body["error"], "Rate limit exceeded")
}

type sseEvent struct {
	name string
	data string
}

func readEvents(t *testing.T, scanner *bufio.Scanner, out chan<- sseEvent) {
	t.Helper()
	var current sseEvent
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			current.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			current.data = strings.TrimPrefix(line, "data: ")
		case strings.HasPrefix(line, ": "):
			out <- sseEvent{name: "comment", data: strings.TrimPrefix(line, ": ")}
		case line == "" && current.name != "":
			out <- current
			current = sseEvent{}
		}
	}
	close(out)
}

func nextEvent(t *testing.T, ch <-chan sseEvent, name string) sseEvent {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			require.True(t, ok, "stream closed before %q", name)
			if ev.name == name {
				return ev
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %q", name)
		}
	}
}

func TestStream_SnapshotThenUpdates(t *testing.T) {
	env := setupTestServer(t, nil)
	ts := httptest.NewServer(env.server.Handler())
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/v1/automation/stream", nil)
	require.NoError(t, err)
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	ch := make(chan sseEvent, 32)
	go readEvents(t, bufio.NewScanner(resp.Body), ch)

	snapshot := nextEvent(t, ch, "snapshot")
	var snap struct {
		Agents   []types.Run        `json:"agents"`
		Browsers []types.BrowserRun `json:"browsers"`
	}
	require.NoError(t, json.Unmarshal([]byte(snapshot.data), &snap))
	assert.Empty(t, snap.Agents)
	assert.NotNil(t, snap.Browsers)

	rec := env.do(t, http.MethodPost, "/api/v1/agents/linkedin/runs", `{"jobId":"job-1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var update struct {
		Source events.Source `json:"source"`
		Run    types.Run     `json:"run"`
	}
	first := nextEvent(t, ch, "update")
	require.NoError(t, json.Unmarshal([]byte(first.data), &update))
	assert.Equal(t, events.SourceAgent, update.Source)
	assert.Equal(t, types.RunRunning, update.Run.Status)

	second := nextEvent(t, ch, "update")
	require.NoError(t, json.Unmarshal([]byte(second.data), &update))
	assert.NotEqual(t, types.RunRunning, update.Run.Status)

	assert.Equal(t, "ping", nextEvent(t, ch, "comment").data)
}
