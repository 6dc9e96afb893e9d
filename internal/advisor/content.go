package advisor

import "github.com/ironlady-io/bridge/pkg/protocol"

// Scripted flow content. Texts and choice sets are fixed; the state machine
// only decides which of them to present next.

const (
	welcomeText   = "Welcome to Iron Lady. We are here to help you reach the top. \n\nPlease tell us about yourself:"
	reWelcomeText = "Please tell us about yourself:"
	menuText      = "Great! How can we help you reach the top today?"
	reMenuText    = "What would you like to explore?"
	exploreText   = "Here are our elite pathways:"
	requestText   = "How would you like our mentor to connect with you?"
	handoverText  = "A mentor has been notified. They will join this chat shortly. Feel free to ask me anything in the meantime!"
	resolvedText  = "Thank you for choosing Iron Lady. Your query has been completed. We look forward to seeing you at the top!"
	apologyText   = "I'm having a technical glitch. Could you rephrase that?"
)

func profileChoices() []protocol.Choice {
	return []protocol.Choice{
		{Label: "Working Professional", Action: protocol.ActionSelectProfile, Value: "Working Professional"},
		{Label: "Entrepreneur", Action: protocol.ActionSelectProfile, Value: "Entrepreneur"},
		{Label: "Student / Returning", Action: protocol.ActionSelectProfile, Value: "Student / Returning"},
	}
}

func menuChoices() []protocol.Choice {
	return []protocol.Choice{
		{Label: "Explore Programs", Action: protocol.ActionExplore},
		{Label: "Talk to a Mentor", Action: protocol.ActionTalkMentor},
	}
}

func exploreChoices() []protocol.Choice {
	return []protocol.Choice{
		{Label: "Leadership Essentials Program", Action: protocol.ActionProgramInfo, Value: "Essentials"},
		{Label: "100 Board Members Program", Action: protocol.ActionProgramInfo, Value: "Board"},
		{Label: "C-Suite League - Master of Business Warfare", Action: protocol.ActionProgramInfo, Value: "Warfare"},
		{Label: "Back", Action: protocol.ActionGoWelcome},
	}
}

func programChoices() []protocol.Choice {
	return []protocol.Choice{
		{Label: "Talk to a Mentor", Action: protocol.ActionTalkMentor},
		{Label: "Back", Action: protocol.ActionExplore},
	}
}

func requestChoices() []protocol.Choice {
	return []protocol.Choice{
		{Label: "Call Request", Action: protocol.ActionRequestType},
		{Label: "Message / Chat Request", Action: protocol.ActionRequestType},
		{Label: "Back", Action: protocol.ActionGoMenu},
	}
}

// programInfo returns the canned description for a program key. Unknown
// keys fall through to the flagship program.
func programInfo(key string) string {
	switch key {
	case "Essentials":
		return "Leadership Essentials is a 4-week program for women to master office politics and eliminate career blocks."
	case "Board":
		return "The 100 Board Members program is a 6-month journey to master boardroom strategy and governance."
	default:
		return "Business Warfare is our elite 1-year program for C-Suite aspiring leaders aiming for 1Cr+ salary breakthroughs."
	}
}
