package provider

import "context"

// Provider is the abstraction over the external language-model service.
type Provider interface {
	Chat(ctx context.Context, req Request) (*Response, error)
	Name() string
}

// Message is a single role-tagged turn sent to the model.
// Roles are "user" and "assistant"; the system instruction travels
// separately in Request.System.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request holds parameters for one chat call.
type Request struct {
	Model       string
	System      string
	Messages    []Message
	Temperature float64
	MaxTokens   int
	// JSONSchema, when set, requires the model to return a document
	// matching this schema. SchemaName labels it for the API.
	SchemaName string
	JSONSchema map[string]any
}

// Response is the parsed result of a chat call.
type Response struct {
	Content string `json:"content"`
	Usage   Usage  `json:"usage"`
}

// Usage tracks token consumption for a single call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// TotalTokens returns the sum of prompt and completion tokens.
func (u Usage) TotalTokens() int {
	return u.PromptTokens + u.CompletionTokens
}
