package export

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/iksnae/multichat/internal"
)

func TestJSONLExporter_Export(t *testing.T) {
	tests := []struct {
		name    string
		session *internal.ChatSession
		want    []string
		wantErr bool
	}{
		{
			name:    "empty session",
			session: internal.CreateTestSessionWithMessages("test1", []internal.Message{}),
			want:    []string{},
		},
		{
			name:    "session with messages",
			session: internal.CreateTestSession("test2"),
			want: []string{
				`"role":"user"`,
				`"role":"assistant"`,
				`"model_id":0`,
				`"chat_id":"test2"`,
			},
		},
		{
			name: "session with timestamp",
			session: internal.CreateTestSessionWithMessages("test3", []internal.Message{
				{
					ID:        "m1",
					Role:      internal.RoleUser,
					Content:   "Hello",
					CreatedAt: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
				},
			}),
			want: []string{
				`"created_at":"2023-01-01T00:00:00Z"`,
			},
		},
		{
			name: "session without timestamp",
			session: internal.CreateTestSessionWithMessages("test4", []internal.Message{
				{ID: "m1", Role: internal.RoleUser, Content: "Hello"},
			}),
			want: []string{
				`"role":"user"`,
				`"content":"Hello"`,
			},
		},
		{
			name:    "nil session",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			exporter := &JSONLExporter{}

			err := exporter.Export(tt.session, &buf)
			if (err != nil) != tt.wantErr {
				t.Errorf("JSONLExporter.Export() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				return
			}

			output := buf.String()
			if len(tt.session.Messages) == 0 {
				if output != "" {
					t.Errorf("Empty session should produce empty output, got: %q", output)
				}
				return
			}

			lines := strings.Split(strings.TrimSpace(output), "\n")
			if len(lines) != len(tt.session.Messages) {
				t.Errorf("got %d lines, want %d", len(lines), len(tt.session.Messages))
			}
			for i, line := range lines {
				var msg map[string]interface{}
				if err := json.Unmarshal([]byte(line), &msg); err != nil {
					t.Errorf("Line %d is not valid JSON: %v", i, err)
				}
				for _, field := range []string{"id", "role", "content"} {
					if _, ok := msg[field]; !ok {
						t.Errorf("Line %d missing %q field", i, field)
					}
				}
			}
			if strings.Contains(output, `"created_at"`) && tt.name == "session without timestamp" {
				t.Error("zero timestamp was exported")
			}

			for _, wantStr := range tt.want {
				if !strings.Contains(output, wantStr) {
					t.Errorf("Output should contain %q, got %s", wantStr, output)
				}
			}
		})
	}
}

func TestJSONLExporter_Extension(t *testing.T) {
	exporter := &JSONLExporter{}
	if got := exporter.Extension(); got != "jsonl" {
		t.Errorf("JSONLExporter.Extension() = %v, want jsonl", got)
	}
}
