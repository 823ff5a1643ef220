package export

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/iksnae/multichat/internal"
)

// JSONLExporter exports chats in JSONL format (one message per line)
type JSONLExporter struct{}

// Export exports a chat to JSONL format
func (e *JSONLExporter) Export(session *internal.ChatSession, w io.Writer) error {
	if session == nil {
		return errNilSession
	}
	enc := json.NewEncoder(w)

	for _, msg := range session.Messages {
		rec := toRecord(msg)
		rec.ChatID = session.ID
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("failed to encode message: %w", err)
		}
	}

	return nil
}

// Extension returns the file extension for this format
func (e *JSONLExporter) Extension() string {
	return "jsonl"
}
