// Package domain defines the core data types shared by the stores and the API layer.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ParseRole normalizes a role string to its canonical lowercase form.
// Unknown roles are rejected; the gateway validates input before it
// reaches the stores, so a failure here is a caller bug.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleUser:
		return RoleUser, nil
	case RoleAssistant:
		return RoleAssistant, nil
	case RoleSystem:
		return RoleSystem, nil
	default:
		return "", fmt.Errorf("invalid role %q", s)
	}
}

// Label returns a human-readable name for the role, used by text transcripts.
func (r Role) Label() string {
	switch r {
	case RoleUser:
		return "User"
	case RoleAssistant:
		return "Assistant"
	case RoleSystem:
		return "System"
	default:
		return string(r)
	}
}

// TokenUsage accumulates prompt and completion token counts.
type TokenUsage struct {
	Input  int `json:"input"`
	Output int `json:"output"`
}

// Total returns the combined token count.
func (u TokenUsage) Total() int {
	return u.Input + u.Output
}

// Add accumulates a message's token count into the running totals.
// User tokens count as input; assistant and system tokens as output.
func (u *TokenUsage) Add(role Role, tokens int) {
	if tokens <= 0 {
		return
	}
	if role == RoleUser {
		u.Input += tokens
	} else {
		u.Output += tokens
	}
}

// Message is a single chat message, either held in a session window or
// serialized into a conversation record.
type Message struct {
	ID         string    `json:"id"`
	Role       Role      `json:"role"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
	TokenCount int       `json:"token_count,omitempty"`
}

// ChatMessage is the projection used as LLM call input.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
