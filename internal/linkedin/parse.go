package linkedin

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonathan/found/internal/fetch"
	"github.com/jonathan/found/internal/types"
)

// UnknownCompany is used when a job card does not name its company.
const UnknownCompany = "Unknown Company"

const jobCardSelector = "a[href*='/jobs/view/']"

// companySeparators are tried in order; the text after the first one that
// splits the card is taken as the company.
var companySeparators = []string{"·", "|", "-", " at "}

// CompanyFromText guesses the company named in free text such as a job
// card or a search query.
func CompanyFromText(text string) string {
	cleaned := fetch.CollapseWhitespace(text)
	for _, sep := range companySeparators {
		if !strings.Contains(cleaned, sep) {
			continue
		}
		var parts []string
		for _, part := range strings.Split(cleaned, sep) {
			if part = strings.TrimSpace(part); part != "" {
				parts = append(parts, part)
			}
		}
		if len(parts) >= 2 {
			return parts[1]
		}
	}
	return UnknownCompany
}

// ParseJobCards extracts up to limit job links from a search results page,
// keeping the first occurrence of each href.
func ParseJobCards(html, baseURL string, limit int) ([]types.DiscoveredJob, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse search results: %w", err)
	}

	if limit <= 0 {
		limit = DefaultMaxJobs
	}
	seen := make(map[string]bool)
	var jobs []types.DiscoveredJob
	doc.Find(jobCardSelector).EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		if href == "" || seen[href] {
			return true
		}
		title := fetch.CollapseWhitespace(a.Text())
		if title == "" {
			return true
		}

		card := a.Closest("li")
		if card.Length() == 0 {
			card = a.Parent()
		}

		seen[href] = true
		url := href
		if !strings.HasPrefix(href, "http") {
			url = strings.TrimRight(baseURL, "/") + href
		}
		jobs = append(jobs, types.DiscoveredJob{
			Title:   title,
			Company: CompanyFromText(card.Text()),
			URL:     url,
		})
		return len(jobs) < limit
	})
	return jobs, nil
}
