package internal

import "time"

// Role identifies who authored a turn
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Placeholder titles the backend assigns before a chat is named.
const (
	TitleUntitled = "Untitled Chat"
	TitleNewChat  = "New Chat"
)

// ChatSession represents one chat and its ordered turns
type ChatSession struct {
	ID       string    `json:"id" yaml:"id"`
	Title    string    `json:"title,omitempty" yaml:"title,omitempty"`
	Messages []Message `json:"messages" yaml:"messages"`
}

// Message represents a single turn
type Message struct {
	ID        string    `json:"id" yaml:"id"`
	Role      Role      `json:"role" yaml:"role"`
	Content   string    `json:"content" yaml:"content"`
	Streaming bool      `json:"-" yaml:"-"`
	ModelID   *int      `json:"model_id,omitempty" yaml:"model_id,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty" yaml:"created_at,omitempty"`
}

// ChatSummary is a chat list entry
type ChatSummary struct {
	ID    string `json:"chat_id" yaml:"chat_id"`
	Title string `json:"chat_name,omitempty" yaml:"chat_name,omitempty"`
}

// HasPlaceholderTitle reports whether the chat still needs a generated name.
func (c ChatSummary) HasPlaceholderTitle() bool {
	return IsPlaceholderTitle(c.Title)
}

// IsPlaceholderTitle reports whether title is empty or one of the backend placeholders.
func IsPlaceholderTitle(title string) bool {
	return title == "" || title == TitleUntitled || title == TitleNewChat
}

// LastMessage returns the final turn, if any.
func (s *ChatSession) LastMessage() (Message, bool) {
	if s == nil || len(s.Messages) == 0 {
		return Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}
