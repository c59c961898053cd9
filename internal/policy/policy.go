// Package policy decides whether a gated agent action may execute now.
// Every function is pure over its inputs; quotas are evaluated against the
// store at the moment of the call.
package policy

import (
	"github.com/jonathan/found/internal/types"
)

// QuotaKind names a daily-capped action.
type QuotaKind string

const (
	// QuotaApplications caps applications filed per day.
	QuotaApplications QuotaKind = "applications"
	// QuotaOutreach caps recruiter follow-ups scheduled per day.
	QuotaOutreach QuotaKind = "outreach"
)

// Counter is the slice of the store the quota check needs.
type Counter interface {
	CountApplicationsOn(date string) int
	CountFollowUpsOn(date string) int
}

// ShouldWaitForApproval reports whether a gated action must stop at
// pending_approval. Assist mode always waits. Autopilot waits only when the
// configuration requires a human and the request carries no approval.
func ShouldWaitForApproval(mode types.Mode, cfg types.AgentConfig, approved bool) bool {
	if mode != types.ModeAutopilot {
		return true
	}
	return cfg.RequireHumanApproval && !approved
}

// Used returns how much of the daily quota has been consumed on today.
func Used(kind QuotaKind, counter Counter, today string) int {
	switch kind {
	case QuotaApplications:
		return counter.CountApplicationsOn(today)
	case QuotaOutreach:
		return counter.CountFollowUpsOn(today)
	}
	return 0
}

// Limit returns the configured daily cap for kind.
func Limit(kind QuotaKind, cfg types.AgentConfig) int {
	switch kind {
	case QuotaApplications:
		return cfg.DailyApplicationLimit
	case QuotaOutreach:
		return cfg.DailyOutreachLimit
	}
	return 0
}

// RemainingQuota is the number of kind actions still allowed today. It is
// never negative.
func RemainingQuota(kind QuotaKind, cfg types.AgentConfig, counter Counter, today string) int {
	return max(0, Limit(kind, cfg)-Used(kind, counter, today))
}
