package domain

import "time"

// Session is an ephemeral, bounded conversational window held in memory and
// used to assemble LLM call context. It never outlives the process.
type Session struct {
	ID           string     `json:"id"`
	SystemPrompt string     `json:"system_prompt,omitempty"`
	Messages     []Message  `json:"messages"`
	MessageCount int        `json:"message_count"`
	TokenUsage   TokenUsage `json:"token_usage"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// SessionSummary is the listing projection of a session, without message bodies.
type SessionSummary struct {
	ID           string     `json:"id"`
	MessageCount int        `json:"message_count"`
	TokenUsage   TokenUsage `json:"token_usage"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Conversation is a durable, unbounded conversational record. Unlike a
// Session it retains full history; window trimming is a session concept only.
type Conversation struct {
	ID           string         `json:"id"`
	SessionID    string         `json:"session_id"`
	Title        string         `json:"title,omitempty"`
	SystemPrompt string         `json:"system_prompt,omitempty"`
	Messages     []Message      `json:"messages"`
	MessageCount int            `json:"message_count"`
	TokenUsage   TokenUsage     `json:"token_usage"`
	CreatedAt    string         `json:"created_at"`
	UpdatedAt    string         `json:"updated_at"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// ConversationPreview is the listing projection of a conversation.
type ConversationPreview struct {
	ID           string     `json:"id"`
	Title        string     `json:"title,omitempty"`
	MessageCount int        `json:"message_count"`
	TokenUsage   TokenUsage `json:"token_usage"`
	CreatedAt    string     `json:"created_at"`
	UpdatedAt    string     `json:"updated_at"`
}
