package types

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// RunActions toggles the agent steps. A nil toggle means enabled.
type RunActions struct {
	DiscoverJobs      *bool `json:"discoverJobs,omitempty"`
	FillApplication   *bool `json:"fillApplication,omitempty"`
	ContactRecruiters *bool `json:"contactRecruiters,omitempty"`
	RequestReferrals  *bool `json:"requestReferrals,omitempty"`
}

// Enabled reports whether the step with the given id should execute.
func (a RunActions) Enabled(id StepID) bool {
	var toggle *bool
	switch id {
	case StepDiscoverJobs:
		toggle = a.DiscoverJobs
	case StepFillApplication:
		toggle = a.FillApplication
	case StepContactRecruiters:
		toggle = a.ContactRecruiters
	case StepRequestReferrals:
		toggle = a.RequestReferrals
	}
	return toggle == nil || *toggle
}

// RunApprovals carries explicit human approvals for gated actions.
type RunApprovals struct {
	SubmitApplication bool `json:"submitApplication,omitempty"`
	SendOutreach      bool `json:"sendOutreach,omitempty"`
	RequestReferral   bool `json:"requestReferral,omitempty"`
}

// CreateRunRequest starts an agent run.
type CreateRunRequest struct {
	JobID       string       `json:"jobId,omitempty" validate:"omitempty,max=200"`
	SearchQuery string       `json:"searchQuery,omitempty" validate:"omitempty,max=200"`
	Mode        string       `json:"mode,omitempty" validate:"omitempty,oneof=assist autopilot"`
	Actions     RunActions   `json:"actions"`
	Approvals   RunApprovals `json:"approvals"`
}

// BrowserApprovals carries approvals for the browser-driven run.
type BrowserApprovals struct {
	SubmitApplications bool `json:"submitApplications,omitempty"`
	SendMessages       bool `json:"sendMessages,omitempty"`
}

// CreateBrowserRunRequest starts a browser-driven run.
type CreateBrowserRunRequest struct {
	SearchQuery           string           `json:"searchQuery,omitempty" validate:"omitempty,max=200"`
	Location              string           `json:"location,omitempty" validate:"omitempty,max=120"`
	Company               string           `json:"company,omitempty" validate:"omitempty,max=120"`
	MaxJobs               int              `json:"maxJobs,omitempty" validate:"gte=0"`
	SubmitApplications    bool             `json:"submitApplications,omitempty"`
	SendRecruiterMessages bool             `json:"sendRecruiterMessages,omitempty"`
	Approvals             BrowserApprovals `json:"approvals"`
	DryRun                bool             `json:"dryRun,omitempty"`
}

// AgentConfigUpdate lists the agent settings a caller may change. Nil
// fields are left as they are.
type AgentConfigUpdate struct {
	DailyApplicationLimit *int         `json:"dailyApplicationLimit,omitempty" validate:"omitempty,gte=0,lte=500"`
	DailyOutreachLimit    *int         `json:"dailyOutreachLimit,omitempty" validate:"omitempty,gte=0,lte=500"`
	RequireHumanApproval  *bool        `json:"requireHumanApproval,omitempty"`
	PreferredMessageTone  *MessageTone `json:"preferredMessageTone,omitempty" validate:"omitempty,oneof=professional casual formal"`
}

// FollowUpUpdate lists the follow-up fields a caller may change.
type FollowUpUpdate struct {
	AIMessage *string         `json:"aiMessage,omitempty"`
	Status    *FollowUpStatus `json:"status,omitempty" validate:"omitempty,oneof=scheduled pending draft sent"`
}

// ImportJobsRequest pulls postings from the public feeds into the catalog.
type ImportJobsRequest struct {
	Query   string `json:"query,omitempty" validate:"omitempty,max=200"`
	Company string `json:"company,omitempty" validate:"omitempty,max=120"`
	Limit   int    `json:"limit,omitempty" validate:"gte=0,lte=200"`
}

// Validate validates the CreateRunRequest using the validator.
func (r *CreateRunRequest) Validate() error {
	return validateStruct(r)
}

// Validate validates the CreateBrowserRunRequest using the validator.
func (r *CreateBrowserRunRequest) Validate() error {
	return validateStruct(r)
}

// Validate validates the AgentConfigUpdate using the validator.
func (r *AgentConfigUpdate) Validate() error {
	return validateStruct(r)
}

// Validate validates the FollowUpUpdate using the validator.
func (r *FollowUpUpdate) Validate() error {
	return validateStruct(r)
}

// Validate validates the ImportJobsRequest using the validator.
func (r *ImportJobsRequest) Validate() error {
	return validateStruct(r)
}

// validateStruct runs the tag validator and converts the first failure
// into an InvalidInput error naming the JSON-ish field.
func validateStruct(v any) error {
	validate := validator.New()
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return &Error{
			Kind:    KindInvalidInput,
			Field:   lowerFirst(fe.Field()),
			Message: describeTag(fe),
		}
	}
	return &Error{Kind: KindInvalidInput, Message: "invalid request", Cause: err}
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "lte", "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
