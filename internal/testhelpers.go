package internal

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// CreateTestSession creates a chat session with one completed exchange
func CreateTestSession(id string) *ChatSession {
	modelID := 0
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	return &ChatSession{
		ID:    id,
		Title: "Test Conversation",
		Messages: []Message{
			{
				ID:        id + "-u1",
				Role:      RoleUser,
				Content:   "Hello, how are you?",
				CreatedAt: now,
			},
			{
				ID:        id + "-a1",
				Role:      RoleAssistant,
				Content:   "**Model 1:**\nI'm doing well, thank you!",
				ModelID:   &modelID,
				CreatedAt: now.Add(time.Second),
			},
		},
	}
}

// CreateTestSessionWithMessages creates a chat session with custom messages
func CreateTestSessionWithMessages(id string, messages []Message) *ChatSession {
	return &ChatSession{
		ID:       id,
		Title:    "Test Conversation",
		Messages: messages,
	}
}

// CreateTestModels creates n valid model configurations with ids 0..n-1
// named A, B, C...
func CreateTestModels(n int) []ModelConfiguration {
	models := make([]ModelConfiguration, n)
	for i := range models {
		m := NewModelConfiguration(string(rune('A'+i)), Catalog[i%len(Catalog)].Value)
		m.ID = i
		models[i] = m
	}
	return models
}

// StreamBody renders fragments as the inference backend's NDJSON body.
// Strings starting with "!" become error fragments, strings of the form
// "--- Response from X ---" pass through as content.
func StreamBody(fragments ...string) string {
	var sb strings.Builder
	for _, f := range fragments {
		var line []byte
		if strings.HasPrefix(f, "!") {
			line, _ = json.Marshal(map[string]string{"error": f[1:]})
		} else {
			line, _ = json.Marshal(map[string]string{"content": f})
		}
		sb.Write(line)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// BoundaryText is the separator the inference backend emits before a model's output.
func BoundaryText(name string) string {
	return fmt.Sprintf("\n\n--- Response from %s ---\n\n", name)
}
