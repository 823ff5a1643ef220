package export

import (
	"io"

	"github.com/iksnae/multichat/internal"
	"gopkg.in/yaml.v3"
)

// YAMLExporter exports chats in YAML format
type YAMLExporter struct{}

// Export exports a chat to YAML format
func (e *YAMLExporter) Export(session *internal.ChatSession, w io.Writer) error {
	if session == nil {
		return errNilSession
	}
	enc := yaml.NewEncoder(w)
	defer func() { _ = enc.Close() }()

	return enc.Encode(toDocument(session))
}

// Extension returns the file extension for this format
func (e *YAMLExporter) Extension() string {
	return "yaml"
}
