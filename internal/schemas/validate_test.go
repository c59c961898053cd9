package schemas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validState = `{
  "profile": {"name": "Ada", "email": "ada@example.com", "location": "Remote"},
  "linkedInAgentConfig": {
    "dailyApplicationLimit": 8,
    "dailyOutreachLimit": 20,
    "requireHumanApproval": true,
    "preferredMessageTone": "professional"
  },
  "jobs": [{"id": "job-1", "title": "Staff Engineer", "company": "Acme", "matchScore": 91}],
  "linkedInAgentRuns": [{
    "id": "lnrun_1", "mode": "assist", "status": "partial",
    "steps": [{"id": "fill_application", "label": "Fill application form", "status": "pending_approval"}]
  }],
  "linkedInBrowserRuns": null
}`

func TestValidateState_Valid(t *testing.T) {
	assert.NoError(t, ValidateState([]byte(validState)))
}

func TestValidateState_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{
			name: "missing agent config",
			doc:  `{"profile": {}}`,
		},
		{
			name: "unknown tone",
			doc: `{"profile": {}, "linkedInAgentConfig": {"dailyApplicationLimit": 1, "dailyOutreachLimit": 1,
				"requireHumanApproval": false, "preferredMessageTone": "snarky"}}`,
		},
		{
			name: "unknown step status",
			doc: `{"profile": {}, "linkedInAgentConfig": {"dailyApplicationLimit": 1, "dailyOutreachLimit": 1,
				"requireHumanApproval": false, "preferredMessageTone": "casual"},
				"linkedInAgentRuns": [{"id": "r", "mode": "assist", "status": "success",
				"steps": [{"id": "x", "label": "x", "status": "done"}]}]}`,
		},
		{
			name: "negative limit",
			doc: `{"profile": {}, "linkedInAgentConfig": {"dailyApplicationLimit": -1, "dailyOutreachLimit": 1,
				"requireHumanApproval": false, "preferredMessageTone": "casual"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateState([]byte(tt.doc))
			require.Error(t, err)
			validationErr, ok := err.(*ValidationError)
			require.True(t, ok, "error should be ValidationError type")
			assert.NotEmpty(t, validationErr.Errors)
		})
	}
}

func TestValidateState_MalformedJSON(t *testing.T) {
	err := ValidateState([]byte(`{"profile":`))
	require.Error(t, err)
	_, isValidation := err.(*ValidationError)
	assert.False(t, isValidation)
}
