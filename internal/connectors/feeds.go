package connectors

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jonathan/found/internal/fetch"
	"github.com/jonathan/found/internal/types"
)

type greenhouseJob struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	AbsoluteURL string `json:"absolute_url"`
	UpdatedAt   string `json:"updated_at"`
	Location    *struct {
		Name string `json:"name"`
	} `json:"location"`
	Content string `json:"content"`
}

type greenhouseResponse struct {
	Jobs []greenhouseJob `json:"jobs"`
}

type leverPosting struct {
	ID               string `json:"id"`
	Text             string `json:"text"`
	HostedURL        string `json:"hostedUrl"`
	CreatedAt        int64  `json:"createdAt"`
	DescriptionPlain string `json:"descriptionPlain"`
	Categories       struct {
		Location   string `json:"location"`
		Commitment string `json:"commitment"`
		Team       string `json:"team"`
	} `json:"categories"`
}

func (s *Service) greenhouse(ctx context.Context, board string) ([]types.ExternalJob, error) {
	endpoint := fmt.Sprintf("%s/%s/jobs", strings.TrimRight(s.cfg.GreenhouseBaseURL, "/"), url.PathEscape(board))
	var payload greenhouseResponse
	if err := fetch.JSON(ctx, endpoint, s.options(), &payload); err != nil {
		return nil, err
	}

	company := CompanyName(board)
	jobs := make([]types.ExternalJob, 0, len(payload.Jobs))
	for _, item := range payload.Jobs {
		job := types.ExternalJob{
			ID:                 fmt.Sprintf("gh-%s-%d", board, item.ID),
			Source:             types.SourceGreenhouse,
			ExternalID:         fmt.Sprint(item.ID),
			Title:              orDefault(item.Title, untitledRole),
			Company:            company,
			Location:           unspecifiedLocation,
			URL:                item.AbsoluteURL,
			DescriptionSnippet: DescriptionSnippet(item.Content),
		}
		if item.Location != nil && item.Location.Name != "" {
			job.Location = item.Location.Name
		}
		if t, err := time.Parse(time.RFC3339, item.UpdatedAt); err == nil {
			t = t.UTC()
			job.PostedAt = &t
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func (s *Service) lever(ctx context.Context, site string) ([]types.ExternalJob, error) {
	endpoint := fmt.Sprintf("%s/%s?mode=json", strings.TrimRight(s.cfg.LeverBaseURL, "/"), url.PathEscape(site))
	var payload []leverPosting
	if err := fetch.JSON(ctx, endpoint, s.options(), &payload); err != nil {
		return nil, err
	}

	company := CompanyName(site)
	jobs := make([]types.ExternalJob, 0, len(payload))
	for _, item := range payload {
		job := types.ExternalJob{
			ID:                 fmt.Sprintf("lev-%s-%s", site, item.ID),
			Source:             types.SourceLever,
			ExternalID:         item.ID,
			Title:              orDefault(item.Text, untitledRole),
			Company:            company,
			Location:           orDefault(item.Categories.Location, unspecifiedLocation),
			URL:                item.HostedURL,
			DescriptionSnippet: DescriptionSnippet(item.DescriptionPlain),
		}
		if item.CreatedAt > 0 {
			t := time.UnixMilli(item.CreatedAt).UTC()
			job.PostedAt = &t
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
