// Package model defines the core domain types shared across all beechat packages.
// It has zero dependencies on other beechat packages.
package model

import "time"

// Role identifies who authored a transcript message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// MessageStatus represents the lifecycle state of a transcript message.
type MessageStatus string

const (
	// StatusStreaming means the message is still receiving content chunks.
	StatusStreaming MessageStatus = "streaming"
	// StatusProgress marks a standalone progress notice from the agent.
	StatusProgress MessageStatus = "progress"
	StatusComplete MessageStatus = "complete"
	StatusError    MessageStatus = "error"
)

// Message is a single turn in the chat transcript.
//
// RawContent is the authoritative reconciled plain text. RenderedHTML is
// always derived from RawContent in full; it is never patched incrementally.
type Message struct {
	ID           string        `json:"id"`
	Role         Role          `json:"role"`
	Status       MessageStatus `json:"status"`
	RawContent   string        `json:"raw_content"`
	RenderedHTML string        `json:"rendered_html"`
	CreatedAt    time.Time     `json:"created_at"`
}

// AgentEvent is one inbound event from the agent WebSocket.
//
// Content carries the text fragment for "stream" events; its relationship to
// the content received so far is not guaranteed (snapshot, duplicate, or
// delta). Message carries the human-readable text for "progress" and "error".
type AgentEvent struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	Message string `json:"message,omitempty"`
}

// Agent event types.
const (
	EventStart    = "start"
	EventStream   = "stream"
	EventProgress = "progress"
	EventComplete = "complete"
	EventError    = "error"
)

// ClientEvent is one outbound event sent to the agent: a user chat
// submission or a debounced editor-state snapshot.
type ClientEvent struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Content string `json:"content,omitempty"`
}

// Client event types.
const (
	EventChat        = "chat"
	EventEditorState = "editor_state"
)

// Truncate shortens a string to maxLen runes, adding "..." if truncated.
func Truncate(s string, maxLen int) string {
	if maxLen <= 3 {
		r := []rune(s)
		if len(r) <= maxLen {
			return s
		}
		return string(r[:maxLen])
	}
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
