package protocol

// Suggestion is one reply draft produced by intelligence extraction.
type Suggestion struct {
	Label    string `json:"label"`
	Short    string `json:"short"`
	Detailed string `json:"detailed"`
}

// Intelligence is the structured result of analyzing a ticket conversation,
// focused on the latest user turn.
type Intelligence struct {
	Intent      string       `json:"intent"`
	Summary     string       `json:"summary"`
	Suggestions []Suggestion `json:"suggestions"`
}
