package internal

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kaptinlin/jsonrepair"
)

// HistoryEntry is one row of get-chat-history
type HistoryEntry struct {
	Message   json.RawMessage `json:"message"`
	MessageID string          `json:"message_id,omitempty"`
	TimeSent  string          `json:"time_sent,omitempty"`
}

// wireMessage is the persisted turn payload
type wireMessage struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	MessageID string `json:"message_id,omitempty"`
}

// Normalizer converts persisted chat history into Messages
type Normalizer struct{}

// NewNormalizer creates a new Normalizer
func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// NormalizeHistory converts history entries to messages in the order received.
// Entries that cannot be decoded are logged and skipped.
func (n *Normalizer) NormalizeHistory(chatID string, entries []HistoryEntry) []Message {
	messages := make([]Message, 0, len(entries))
	for i, entry := range entries {
		msg, err := n.normalizeEntry(chatID, i, entry)
		if err != nil {
			LogWarn("Skipping history entry %d of chat %s: %v", i, chatID, err)
			continue
		}
		messages = append(messages, msg)
	}
	return messages
}

// NormalizeSession builds a ChatSession from a chat summary and its history.
func (n *Normalizer) NormalizeSession(chat ChatSummary, entries []HistoryEntry) (*ChatSession, error) {
	if chat.ID == "" {
		return nil, fmt.Errorf("chat id is empty")
	}
	return &ChatSession{
		ID:       chat.ID,
		Title:    chat.Title,
		Messages: n.NormalizeHistory(chat.ID, entries),
	}, nil
}

func (n *Normalizer) normalizeEntry(chatID string, index int, entry HistoryEntry) (Message, error) {
	wm, err := decodeWireMessage(entry.Message)
	if err != nil {
		return Message{}, &ParseError{Source: "history", Key: chatID, Err: err}
	}

	id := wm.MessageID
	if id == "" {
		id = entry.MessageID
	}
	if id == "" {
		id = stableMessageID(chatID, index)
	}

	return Message{
		ID:        id,
		Role:      n.normalizeRole(wm.Role),
		Content:   wm.Content,
		CreatedAt: parseTimeSent(entry.TimeSent),
	}, nil
}

// decodeWireMessage accepts the message as an object, as a JSON-encoded
// string, or as a loosely quoted string that jsonrepair can fix.
func decodeWireMessage(raw json.RawMessage) (wireMessage, error) {
	var wm wireMessage
	if len(raw) == 0 {
		return wm, fmt.Errorf("message is missing")
	}

	if err := json.Unmarshal(raw, &wm); err == nil {
		if wm.Role == "" && wm.Content == "" {
			return wm, fmt.Errorf("message has neither role nor content")
		}
		return wm, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return wm, fmt.Errorf("message is neither an object nor a string: %w", err)
	}
	s = strings.TrimSpace(s)
	if err := json.Unmarshal([]byte(s), &wm); err == nil {
		return wm, nil
	}

	repaired, err := jsonrepair.JSONRepair(s)
	if err != nil {
		return wm, fmt.Errorf("message string is not JSON: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), &wm); err != nil {
		return wm, fmt.Errorf("message string is not a turn: %w", err)
	}
	return wm, nil
}

// normalizeRole maps persisted roles to Role. The web client stored "bot"
// for assistant turns.
func (n *Normalizer) normalizeRole(role string) Role {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "assistant", "bot":
		return RoleAssistant
	default:
		return RoleUser
	}
}

// stableMessageID derives an id for turns persisted without one, so the same
// history reconciles to the same ids every time.
func stableMessageID(chatID string, index int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("multichat:%s/%d", chatID, index))).String()
}

func parseTimeSent(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// ToWireHistory converts messages to the {role, content} pairs the inference
// process accepts.
func ToWireHistory(messages []Message) []HistoryMessage {
	out := make([]HistoryMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, HistoryMessage{Role: string(m.Role), Content: m.Content})
	}
	return out
}
