package export

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/iksnae/multichat/internal"
)

func TestJSONExporter_Export(t *testing.T) {
	tests := []struct {
		name      string
		session   *internal.ChatSession
		wantCount int
		wantErr   bool
	}{
		{
			name:      "basic session",
			session:   internal.CreateTestSession("test1"),
			wantCount: 2,
		},
		{
			name:      "empty session",
			session:   internal.CreateTestSessionWithMessages("test2", []internal.Message{}),
			wantCount: 0,
		},
		{
			name:    "nil session",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			exporter := &JSONExporter{}

			err := exporter.Export(tt.session, &buf)
			if (err != nil) != tt.wantErr {
				t.Errorf("JSONExporter.Export() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				return
			}

			var doc struct {
				ChatID   string                   `json:"chat_id"`
				Title    string                   `json:"title"`
				Count    int                      `json:"message_count"`
				Messages []map[string]interface{} `json:"messages"`
			}
			if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
				t.Fatalf("Output is not valid JSON: %v", err)
			}
			if doc.ChatID != tt.session.ID || doc.Title != tt.session.Title {
				t.Errorf("header = %q/%q", doc.ChatID, doc.Title)
			}
			if doc.Count != tt.wantCount || len(doc.Messages) != tt.wantCount {
				t.Errorf("count = %d, messages = %d, want %d", doc.Count, len(doc.Messages), tt.wantCount)
			}
			if doc.Messages == nil {
				t.Error("messages should be an array, not null")
			}
			if !strings.Contains(buf.String(), "\n  ") {
				t.Error("Output should be indented")
			}
		})
	}
}

func TestJSONExporter_Extension(t *testing.T) {
	exporter := &JSONExporter{}
	if got := exporter.Extension(); got != "json" {
		t.Errorf("JSONExporter.Extension() = %v, want json", got)
	}
}
