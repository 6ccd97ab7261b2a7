package models

// Turn is a single message in a conversation history.
type Turn struct {
	Role string `json:"role"` // "user" or "model"
	Text string `json:"text"`
}

const (
	RoleUser  = "user"
	RoleModel = "model"
)

// SessionIDHeader echoes the conversation id on chat replies.
const SessionIDHeader = "X-Session-ID"

// ChatRequest is the payload sent to the chat endpoint.
type ChatRequest struct {
	Prompt    string `json:"prompt"`
	SessionID string `json:"session_id,omitempty"`
}

// ChatResponse is the reply returned by the relay.
type ChatResponse struct {
	Text      string `json:"text"`
	SessionID string `json:"session_id,omitempty"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}
