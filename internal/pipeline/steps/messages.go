package steps

import (
	"fmt"

	"github.com/jonathan/found/internal/types"
)

// DraftRecruiterMessage renders the recruiter note for tone and signs it
// with the sender's name. Unknown tones fall back to professional.
func DraftRecruiterMessage(tone types.MessageTone, name, company, role, sender string) string {
	var body string
	switch tone {
	case types.ToneCasual:
		body = fmt.Sprintf("Hi %s, I saw the %s opening at %s and wanted to connect to learn how the team is hiring right now.", name, role, company)
	case types.ToneFormal:
		body = fmt.Sprintf("Hello %s, I am writing regarding the %s opportunity at %s. I would value any direction on next steps in the process.", name, role, company)
	default:
		body = fmt.Sprintf("Hi %s, I am exploring the %s role at %s and would appreciate your guidance on the current hiring process.", name, role, company)
	}
	return fmt.Sprintf("%s\n\nBest regards,\n%s", body, sender)
}

// DraftReferralMessage renders the referral request sent to a connection.
func DraftReferralMessage(referrer, company, role string) string {
	return fmt.Sprintf("Hi %s, I noticed the %s opening at %s. If you are open to it, I would really appreciate a referral or guidance on the best application path.", referrer, role, company)
}
