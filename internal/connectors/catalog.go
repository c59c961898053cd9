package connectors

import (
	"fmt"
	"strings"

	"github.com/jonathan/found/internal/store"
	"github.com/jonathan/found/internal/types"
)

const (
	baseMatchScore        = 72
	preferredCompanyBoost = 12
	targetRoleBoost       = 8
	maxImportedScore      = 98
)

// levelKeywords are checked in order; the first hit names the level.
var levelKeywords = []struct {
	keyword string
	level   string
}{
	{"principal", "Principal"},
	{"staff", "Staff"},
	{"manager", "Manager"},
	{"lead", "Lead"},
	{"senior", "Senior"},
}

// InferLevel reads the seniority from a title. Unmarked titles default
// to Senior.
func InferLevel(title string) string {
	lowered := strings.ToLower(title)
	for _, kw := range levelKeywords {
		if strings.Contains(lowered, kw.keyword) {
			return kw.level
		}
	}
	return "Senior"
}

// MatchScore scores an imported posting against the profile's goals.
func MatchScore(title, company string, profile types.UserProfile) int {
	score := baseMatchScore
	for _, preferred := range profile.CareerGoals.PreferredCompanies {
		if strings.EqualFold(preferred, company) {
			score += preferredCompanyBoost
			break
		}
	}
	lowered := strings.ToLower(title)
	for _, role := range profile.CareerGoals.TargetRoles {
		words := strings.Fields(strings.ToLower(role))
		if len(words) > 0 && strings.Contains(lowered, words[0]) {
			score += targetRoleBoost
			break
		}
	}
	return min(score, maxImportedScore)
}

// ToCatalogJob converts a feed posting into a catalog job.
func ToCatalogJob(external types.ExternalJob, profile types.UserProfile) types.Job {
	posted := "Recently"
	if external.PostedAt != nil {
		posted = external.PostedAt.Format("Jan 2")
	}
	logo := []rune(strings.ToUpper(external.Company))
	return types.Job{
		ID:         store.NewID("extjob"),
		Title:      external.Title,
		Company:    external.Company,
		Logo:       string(logo[:min(2, len(logo))]),
		Location:   external.Location,
		Salary:     "Not disclosed",
		MatchScore: MatchScore(external.Title, external.Company, profile),
		Type:       "Full-time",
		Level:      InferLevel(external.Title),
		Posted:     posted,
		Skills:     []string{},
		MatchReasons: []string{
			"Imported from external ATS feed",
			fmt.Sprintf("Source: %s", external.Source),
			"AI can generate a tailored application package",
		},
		Description: fmt.Sprintf("%s\n\nApply: %s", external.DescriptionSnippet, external.URL),
		SkillGap:    []string{},
	}
}
