// Package connectors pulls public postings from Greenhouse job boards and
// Lever sites and imports them into the job catalog.
package connectors

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"slices"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/jonathan/found/internal/fetch"
	"github.com/jonathan/found/internal/store"
	"github.com/jonathan/found/internal/types"
)

const (
	DefaultGreenhouseBaseURL = "https://boards-api.greenhouse.io/v1/boards"
	DefaultLeverBaseURL      = "https://api.lever.co/v0/postings"
	DefaultLimit             = 60
	maxParallelFeeds         = 8
	snippetLength            = 220
	noSnippet                = "No description snippet available from source feed."
	untitledRole             = "Untitled role"
	unspecifiedLocation      = "Unspecified"
)

// Config lists the feeds to read.
type Config struct {
	GreenhouseBoards  []string
	LeverSites        []string
	Timeout           time.Duration
	GreenhouseBaseURL string
	LeverBaseURL      string
	Client            *http.Client
}

// Sources echoes the feeds that were consulted.
type Sources struct {
	GreenhouseBoards []string `json:"greenhouseBoards"`
	LeverSites       []string `json:"leverSites"`
}

// DiscoverResult is the merged feed listing.
type DiscoverResult struct {
	Jobs    []types.ExternalJob `json:"jobs"`
	Sources Sources             `json:"sources"`
}

// ImportResult reports what an import added to the catalog.
type ImportResult struct {
	Imported int                 `json:"imported"`
	Skipped  int                 `json:"skipped"`
	Jobs     []types.ExternalJob `json:"jobs"`
}

// Service reads the configured feeds.
type Service struct {
	cfg   Config
	store store.Store
}

// New creates a connector service over the catalog in s.
func New(cfg Config, s store.Store) *Service {
	if cfg.Timeout <= 0 {
		cfg.Timeout = fetch.DefaultTimeout
	}
	if cfg.GreenhouseBaseURL == "" {
		cfg.GreenhouseBaseURL = DefaultGreenhouseBaseURL
	}
	if cfg.LeverBaseURL == "" {
		cfg.LeverBaseURL = DefaultLeverBaseURL
	}
	return &Service{cfg: cfg, store: s}
}

// Available fails when no feed is configured.
func (s *Service) Available() error {
	if len(s.cfg.GreenhouseBoards) == 0 && len(s.cfg.LeverSites) == 0 {
		return &types.Error{
			Kind:    types.KindInvalidInput,
			Message: "No external job connectors configured. Set GREENHOUSE_BOARDS and/or LEVER_SITES.",
		}
	}
	return nil
}

func (s *Service) options() *fetch.Options {
	opts := fetch.DefaultOptions()
	opts.Timeout = s.cfg.Timeout
	opts.Client = s.cfg.Client
	return opts
}

// Discover fetches every feed in parallel and merges the postings, newest
// first. A feed that fails or times out contributes nothing.
func (s *Service) Discover(ctx context.Context, req types.ImportJobsRequest) (DiscoverResult, error) {
	if err := req.Validate(); err != nil {
		return DiscoverResult{}, err
	}
	if err := s.Available(); err != nil {
		return DiscoverResult{}, err
	}

	query := strings.ToLower(strings.TrimSpace(req.Query))
	boards, sites := s.cfg.GreenhouseBoards, s.cfg.LeverSites
	perFeed := make([][]types.ExternalJob, len(boards)+len(sites))

	var g errgroup.Group
	g.SetLimit(maxParallelFeeds)
	for i, board := range boards {
		g.Go(func() error {
			jobs, err := s.greenhouse(ctx, board)
			if err != nil {
				log.Printf("[connectors] Skipping greenhouse board %s: %v", board, err)
				return nil
			}
			perFeed[i] = jobs
			return nil
		})
	}
	for i, site := range sites {
		g.Go(func() error {
			jobs, err := s.lever(ctx, site)
			if err != nil {
				log.Printf("[connectors] Skipping lever site %s: %v", site, err)
				return nil
			}
			perFeed[len(boards)+i] = jobs
			return nil
		})
	}
	_ = g.Wait()

	company := strings.ToLower(strings.TrimSpace(req.Company))
	var merged []types.ExternalJob
	for _, jobs := range perFeed {
		for _, job := range jobs {
			if query != "" && !strings.Contains(strings.ToLower(job.Title+" "+job.Company+" "+job.Location), query) {
				continue
			}
			if company != "" && !strings.Contains(strings.ToLower(job.Company), company) {
				continue
			}
			merged = append(merged, job)
		}
	}
	slices.SortStableFunc(merged, func(a, b types.ExternalJob) int {
		return postedUnix(b) - postedUnix(a)
	})

	limit := req.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if len(merged) > limit {
		merged = merged[:limit]
	}
	if merged == nil {
		merged = []types.ExternalJob{}
	}
	return DiscoverResult{
		Jobs:    merged,
		Sources: Sources{GreenhouseBoards: nonNil(boards), LeverSites: nonNil(sites)},
	}, nil
}

// Import adds discovered postings to the catalog, skipping any title and
// company pair the catalog already holds.
func (s *Service) Import(ctx context.Context, req types.ImportJobsRequest) (ImportResult, error) {
	discovered, err := s.Discover(ctx, req)
	if err != nil {
		return ImportResult{}, err
	}

	profile := s.store.Profile()
	known := make(map[string]bool)
	for _, job := range s.store.Jobs() {
		known[catalogKey(job.Title, job.Company)] = true
	}

	result := ImportResult{Jobs: discovered.Jobs}
	var added []types.Job
	for _, external := range discovered.Jobs {
		key := catalogKey(external.Title, external.Company)
		if known[key] {
			result.Skipped++
			continue
		}
		known[key] = true
		added = append(added, ToCatalogJob(external, profile))
	}
	if len(added) == 0 {
		return result, nil
	}

	// Newest import goes first in the catalog.
	slices.Reverse(added)
	if err := s.store.AddJobs(ctx, added); err != nil {
		return ImportResult{}, fmt.Errorf("failed to import jobs: %w", err)
	}
	result.Imported = len(added)
	title := fmt.Sprintf("Imported %d jobs from external connectors", result.Imported)
	if err := s.store.AddActivity(ctx, types.ActivityMatch, title, "sparkles"); err != nil {
		log.Printf("[connectors] Failed to log import activity: %v", err)
	}
	log.Printf("[connectors] Imported %d jobs, skipped %d", result.Imported, result.Skipped)
	return result, nil
}

func catalogKey(title, company string) string {
	return strings.ToLower(title) + "\x00" + strings.ToLower(company)
}

func postedUnix(job types.ExternalJob) int {
	if job.PostedAt == nil {
		return 0
	}
	return int(job.PostedAt.Unix())
}

func nonNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}

var nameSplit = regexp.MustCompile(`[-_\s]+`)

// CompanyName turns a feed slug like "open-ai" into "Open Ai".
func CompanyName(slug string) string {
	parts := nameSplit.Split(slug, -1)
	for i, part := range parts {
		r, size := utf8.DecodeRuneInString(part)
		if size > 0 {
			parts[i] = string(unicode.ToUpper(r)) + part[size:]
		}
	}
	return strings.Join(parts, " ")
}

// DescriptionSnippet strips markup and truncates to 220 characters.
func DescriptionSnippet(fragment string) string {
	text := fetch.PlainText(fragment)
	if text == "" {
		return noSnippet
	}
	if utf8.RuneCountInString(text) > snippetLength {
		return fetch.Snippet(text, snippetLength) + "..."
	}
	return text
}
