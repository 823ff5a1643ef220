package export

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/iksnae/multichat/internal"
)

// Exporter defines the interface for all export formats
type Exporter interface {
	Export(session *internal.ChatSession, w io.Writer) error
	Extension() string
}

// NewExporter creates a new exporter based on format
func NewExporter(format string) (Exporter, error) {
	switch format {
	case "jsonl":
		return &JSONLExporter{}, nil
	case "md", "markdown":
		return &MarkdownExporter{}, nil
	case "yaml":
		return &YAMLExporter{}, nil
	case "json":
		return &JSONExporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s (supported: jsonl, md, yaml, json)", format)
	}
}

var errNilSession = errors.New("no chat to export")

// messageRecord is the serialized form of one turn
type messageRecord struct {
	ChatID    string `json:"chat_id,omitempty" yaml:"chat_id,omitempty"`
	ID        string `json:"id" yaml:"id"`
	Role      string `json:"role" yaml:"role"`
	Content   string `json:"content" yaml:"content"`
	ModelID   *int   `json:"model_id,omitempty" yaml:"model_id,omitempty"`
	CreatedAt string `json:"created_at,omitempty" yaml:"created_at,omitempty"`
}

// chatDocument is the serialized form of a whole chat
type chatDocument struct {
	ChatID   string          `json:"chat_id" yaml:"chat_id"`
	Title    string          `json:"title,omitempty" yaml:"title,omitempty"`
	Count    int             `json:"message_count" yaml:"message_count"`
	Messages []messageRecord `json:"messages" yaml:"messages"`
}

func toRecord(msg internal.Message) messageRecord {
	rec := messageRecord{
		ID:      msg.ID,
		Role:    string(msg.Role),
		Content: msg.Content,
		ModelID: msg.ModelID,
	}
	if !msg.CreatedAt.IsZero() {
		rec.CreatedAt = msg.CreatedAt.UTC().Format(time.RFC3339)
	}
	return rec
}

func toDocument(session *internal.ChatSession) chatDocument {
	doc := chatDocument{
		ChatID:   session.ID,
		Title:    session.Title,
		Count:    len(session.Messages),
		Messages: make([]messageRecord, 0, len(session.Messages)),
	}
	for _, msg := range session.Messages {
		doc.Messages = append(doc.Messages, toRecord(msg))
	}
	return doc
}
