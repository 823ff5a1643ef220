package export

import (
	"encoding/json"
	"io"

	"github.com/iksnae/multichat/internal"
)

// JSONExporter exports chats in JSON format (pretty-printed)
type JSONExporter struct{}

// Export exports a chat to JSON format
func (e *JSONExporter) Export(session *internal.ChatSession, w io.Writer) error {
	if session == nil {
		return errNilSession
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(toDocument(session))
}

// Extension returns the file extension for this format
func (e *JSONExporter) Extension() string {
	return "json"
}
