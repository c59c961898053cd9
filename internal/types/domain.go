// Package types defines the records shared by the store, the automation
// agents and the HTTP API.
package types

import "time"

// ApplicationStatus tracks where an application sits in the hiring funnel.
type ApplicationStatus string

const (
	ApplicationApplied   ApplicationStatus = "applied"
	ApplicationScreening ApplicationStatus = "screening"
	ApplicationInterview ApplicationStatus = "interview"
	ApplicationOffer     ApplicationStatus = "offer"
	ApplicationRejected  ApplicationStatus = "rejected"
	ApplicationError     ApplicationStatus = "error"
)

// ConnectionStatus is the state of a networking contact.
type ConnectionStatus string

const (
	ConnectionSuggested ConnectionStatus = "suggested"
	ConnectionConnected ConnectionStatus = "connected"
	ConnectionPending   ConnectionStatus = "pending"
)

// ReferralStatus is the state of a referral request.
type ReferralStatus string

const (
	ReferralSent      ReferralStatus = "sent"
	ReferralViewed    ReferralStatus = "viewed"
	ReferralResponded ReferralStatus = "responded"
	ReferralReferred  ReferralStatus = "referred"
)

// FollowUpStatus is the state of a scheduled follow-up message.
type FollowUpStatus string

const (
	FollowUpScheduled FollowUpStatus = "scheduled"
	FollowUpPending   FollowUpStatus = "pending"
	FollowUpDraft     FollowUpStatus = "draft"
	FollowUpSent      FollowUpStatus = "sent"
)

// ApplicationSource records whether a human or an agent filed an application.
type ApplicationSource string

const (
	SourceManual     ApplicationSource = "manual"
	SourceAutomation ApplicationSource = "automation"
)

// Skill is a profile skill with a self-assessed level.
type Skill struct {
	Name  string `json:"name" yaml:"name"`
	Level int    `json:"level" yaml:"level"`
}

// SalaryRange is the desired compensation band.
type SalaryRange struct {
	Min int `json:"min" yaml:"min"`
	Max int `json:"max" yaml:"max"`
}

// CareerGoals steer query defaults and job scoring.
type CareerGoals struct {
	TargetRoles        []string    `json:"targetRoles" yaml:"targetRoles"`
	SalaryRange        SalaryRange `json:"salaryRange" yaml:"salaryRange"`
	PreferredCompanies []string    `json:"preferredCompanies" yaml:"preferredCompanies"`
	PreferredLocations []string    `json:"preferredLocations" yaml:"preferredLocations"`
}

// UserProfile is the single job seeker this service works for.
type UserProfile struct {
	Name        string      `json:"name" yaml:"name"`
	Headline    string      `json:"headline" yaml:"headline"`
	Location    string      `json:"location" yaml:"location"`
	Avatar      string      `json:"avatar" yaml:"avatar"`
	Email       string      `json:"email" yaml:"email"`
	Skills      []Skill     `json:"skills" yaml:"skills"`
	CareerGoals CareerGoals `json:"careerGoals" yaml:"careerGoals"`
}

// Job is a listing in the catalog.
type Job struct {
	ID           string   `json:"id" yaml:"id"`
	Title        string   `json:"title" yaml:"title"`
	Company      string   `json:"company" yaml:"company"`
	Logo         string   `json:"logo" yaml:"logo"`
	Location     string   `json:"location" yaml:"location"`
	Salary       string   `json:"salary" yaml:"salary"`
	MatchScore   int      `json:"matchScore" yaml:"matchScore"`
	Type         string   `json:"type" yaml:"type"`
	Level        string   `json:"level" yaml:"level"`
	Posted       string   `json:"posted" yaml:"posted"`
	Skills       []string `json:"skills" yaml:"skills"`
	MatchReasons []string `json:"matchReasons" yaml:"matchReasons"`
	Description  string   `json:"description" yaml:"description"`
	SkillGap     []string `json:"skillGap" yaml:"skillGap"`
}

// Connection is a contact in the user's network.
type Connection struct {
	ID                string           `json:"id" yaml:"id"`
	Name              string           `json:"name" yaml:"name"`
	Headline          string           `json:"headline" yaml:"headline"`
	Company           string           `json:"company" yaml:"company"`
	Avatar            string           `json:"avatar" yaml:"avatar"`
	MutualConnections int              `json:"mutualConnections" yaml:"mutualConnections"`
	RelevanceScore    int              `json:"relevanceScore" yaml:"relevanceScore"`
	Status            ConnectionStatus `json:"status" yaml:"status"`
	Tags              []string         `json:"tags" yaml:"tags"`
}

// Application is a submitted (or in-progress) job application.
type Application struct {
	ID              string            `json:"id" yaml:"id"`
	JobTitle        string            `json:"jobTitle" yaml:"jobTitle"`
	Company         string            `json:"company" yaml:"company"`
	Logo            string            `json:"logo" yaml:"logo"`
	Status          ApplicationStatus `json:"status" yaml:"status"`
	AppliedDate     string            `json:"appliedDate" yaml:"appliedDate"`
	LastUpdate      string            `json:"lastUpdate" yaml:"lastUpdate"`
	NextStep        string            `json:"nextStep" yaml:"nextStep"`
	Notes           string            `json:"notes" yaml:"notes"`
	MatchScore      int               `json:"matchScore" yaml:"matchScore"`
	Source          ApplicationSource `json:"source,omitempty" yaml:"source,omitempty"`
	AutomationRunID string            `json:"automationRunId,omitempty" yaml:"automationRunId,omitempty"`
}

// Referral is a request to a contact to refer the user for a role.
type Referral struct {
	ID            string         `json:"id" yaml:"id"`
	TargetCompany string         `json:"targetCompany" yaml:"targetCompany"`
	TargetRole    string         `json:"targetRole" yaml:"targetRole"`
	Referrer      string         `json:"referrer" yaml:"referrer"`
	ReferrerTitle string         `json:"referrerTitle" yaml:"referrerTitle"`
	Status        ReferralStatus `json:"status" yaml:"status"`
	DateSent      string         `json:"dateSent" yaml:"dateSent"`
	Message       string         `json:"message" yaml:"message"`
}

// FollowUp is a scheduled outreach message to a contact.
type FollowUp struct {
	ID            string         `json:"id" yaml:"id"`
	ContactName   string         `json:"contactName" yaml:"contactName"`
	Company       string         `json:"company" yaml:"company"`
	ScheduledDate string         `json:"scheduledDate" yaml:"scheduledDate"`
	Type          string         `json:"type" yaml:"type"`
	AIMessage     string         `json:"aiMessage" yaml:"aiMessage"`
	Status        FollowUpStatus `json:"status" yaml:"status"`
}

// OutreachEntry is an append-only record of a message that went out.
type OutreachEntry struct {
	FollowUp
	SentAt time.Time `json:"sentAt" yaml:"sentAt"`
}

// ActivityType groups activity feed entries.
type ActivityType string

const (
	ActivityApplication ActivityType = "application"
	ActivityReferral    ActivityType = "referral"
	ActivityInterview   ActivityType = "interview"
	ActivityOffer       ActivityType = "offer"
	ActivityConnection  ActivityType = "connection"
	ActivityMatch       ActivityType = "match"
	ActivityNetwork     ActivityType = "network"
)

// Activity is one line of the dashboard feed.
type Activity struct {
	ID    string       `json:"id" yaml:"id"`
	Type  ActivityType `json:"type" yaml:"type"`
	Title string       `json:"title" yaml:"title"`
	Time  string       `json:"time" yaml:"time"`
	Icon  string       `json:"icon" yaml:"icon"`
}
