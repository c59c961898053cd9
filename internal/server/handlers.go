package server

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/jonathan/found/internal/events"
	"github.com/jonathan/found/internal/types"
)

const maxBodyBytes = 1 << 20

// decodeBody reads an optional JSON body into dst. An empty body leaves dst
// untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return types.InvalidInput("body", "invalid JSON: %v", err)
	}
	return nil
}

// queryInt parses an integer query parameter, returning 0 when it is
// absent or malformed.
func queryInt(r *http.Request, key string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return 0
	}
	return n
}

func (s *Server) handleGetConfig(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]any{"config": s.agent.Config()})
}

func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var update types.AgentConfigUpdate
	if err := decodeBody(w, r, &update); err != nil {
		s.failure(w, r, err)
		return
	}
	cfg, err := s.agent.UpdateConfig(r.Context(), update)
	if err != nil {
		s.failure(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"config": cfg})
}

func (s *Server) handleListOpportunities(w http.ResponseWriter, r *http.Request) {
	opportunities := s.agent.ListOpportunities(r.URL.Query().Get("query"), queryInt(r, "limit"))
	s.jsonResponse(w, http.StatusOK, map[string]any{"opportunities": opportunities})
}

func (s *Server) handleListRuns(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]any{"runs": s.agent.Runs()})
}

func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req types.CreateRunRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.failure(w, r, err)
		return
	}
	run, err := s.agent.Run(r.Context(), req)
	if err != nil {
		s.failure(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, map[string]any{"run": run})
}

func (s *Server) handleListBrowserRuns(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]any{"runs": s.browser.Runs()})
}

func (s *Server) handleCreateBrowserRun(w http.ResponseWriter, r *http.Request) {
	var req types.CreateBrowserRunRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.failure(w, r, err)
		return
	}
	// The failed run is already recorded; the caller only gets the error.
	run, err := s.browser.Run(r.Context(), req)
	if err != nil {
		s.failure(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, map[string]any{"run": run})
}

func (s *Server) handleDiscoverJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := types.ImportJobsRequest{
		Query:   q.Get("query"),
		Company: q.Get("company"),
		Limit:   queryInt(r, "limit"),
	}
	result, err := s.feeds.Discover(r.Context(), req)
	if err != nil {
		s.failure(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, result)
}

func (s *Server) handleImportJobs(w http.ResponseWriter, r *http.Request) {
	var req types.ImportJobsRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.failure(w, r, err)
		return
	}
	result, err := s.feeds.Import(r.Context(), req)
	if err != nil {
		s.failure(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, result)
}

// streamSnapshot is the first event on a new stream.
type streamSnapshot struct {
	Agents   []types.Run        `json:"agents"`
	Browsers []types.BrowserRun `json:"browsers"`
}

// streamUpdate carries one published run.
type streamUpdate struct {
	Source events.Source `json:"source"`
	Run    any           `json:"run"`
}

// handleStream sends a snapshot of both run histories, then every run
// update published while the client stays connected.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	// The stream outlives the server's write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	ctx := r.Context()
	updates := make(chan events.Event, events.DefaultBuffer)
	sub := s.events.Subscribe(func(ev events.Event) {
		select {
		case updates <- ev:
		case <-ctx.Done():
		}
	})
	defer sub.Close()

	snapshot := streamSnapshot{Agents: s.agent.Runs(), Browsers: s.browser.Runs()}
	if err := sse.WriteEvent("snapshot", snapshot); err != nil {
		return
	}

	ping := time.NewTicker(s.pingInterval)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-updates:
			if err := sse.WriteEvent("update", streamUpdate{Source: ev.Source, Run: ev.Record()}); err != nil {
				log.Printf("[events] Stream write failed: %v", err)
				return
			}
		case <-ping.C:
			if err := sse.WriteComment("ping"); err != nil {
				return
			}
		}
	}
}
