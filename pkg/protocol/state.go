package protocol

import "strings"

// ConversationState is the visitor state machine's current state.
// It is persisted alongside the transcript so a reload resumes mid-flow.
type ConversationState string

const (
	StateWelcome       ConversationState = "welcome"
	StateMenu          ConversationState = "menu"
	StateExplore       ConversationState = "explore"
	StateForm          ConversationState = "form"
	StateRequestChoice ConversationState = "request_choice"
	StateHandover      ConversationState = "handover"
)

// LeadProfile is the transient contact form collected in the form state.
type LeadProfile struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	CountryCode string `json:"countryCode"`
}

// Validate applies the lead form rules: the lowercased, trimmed email must
// end with .com, and +91 numbers must carry exactly 10 digits. Other country
// codes are not digit-length-validated.
func (l LeadProfile) Validate() error {
	email := strings.ToLower(strings.TrimSpace(l.Email))
	if !strings.HasSuffix(email, ".com") {
		return &ValidationError{Field: "email", Reason: "please use a .com email domain (e.g., name@company.com)"}
	}
	if l.CountryCode == "+91" && len(digitsOf(l.Phone)) != 10 {
		return &ValidationError{Field: "phone", Reason: "Indian mobile numbers must be exactly 10 digits"}
	}
	return nil
}

// FormattedPhone joins country code and number for ticket contact info.
func (l LeadProfile) FormattedPhone() string {
	if l.Phone == "" {
		return ""
	}
	return l.CountryCode + " " + l.Phone
}

// ValidationError is a recoverable lead-form failure. It is shown inline
// and never reaches the ticket repository or the AI assist client.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Reason
}

func digitsOf(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
