package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/iksnae/multichat/internal"
)

// MarkdownExporter exports chats in Markdown format
type MarkdownExporter struct{}

// Export exports a chat to Markdown format
func (e *MarkdownExporter) Export(session *internal.ChatSession, w io.Writer) error {
	if session == nil {
		return errNilSession
	}

	title := session.Title
	if title == "" {
		title = "Chat " + session.ID
	}
	_, _ = fmt.Fprintf(w, "# %s\n\n", escapeMarkdown(title))
	_, _ = fmt.Fprintf(w, "**Chat:** %s  \n", session.ID)
	_, _ = fmt.Fprintf(w, "**Messages:** %d\n\n", len(session.Messages))

	_, _ = fmt.Fprintf(w, "---\n\n")

	for i, msg := range session.Messages {
		heading := "User"
		if msg.Role == internal.RoleAssistant {
			heading = "Assistant"
		}
		if !msg.CreatedAt.IsZero() {
			heading += fmt.Sprintf(" (%s)", msg.CreatedAt.UTC().Format("2006-01-02 15:04:05"))
		}

		// assistant turns already carry a "**Name:**" header and are markdown
		content := msg.Content
		if msg.Role != internal.RoleAssistant {
			content = escapeMarkdown(content)
		}

		_, _ = fmt.Fprintf(w, "### %s\n\n%s\n\n", heading, strings.TrimRight(content, "\n"))

		if i < len(session.Messages)-1 {
			_, _ = fmt.Fprintf(w, "---\n\n")
		}
	}

	return nil
}

// escapeMarkdown escapes emphasis markers outside code blocks
func escapeMarkdown(text string) string {
	lines := strings.Split(text, "\n")
	var result []string
	inCodeBlock := false

	for _, line := range lines {
		if strings.HasPrefix(line, "```") {
			inCodeBlock = !inCodeBlock
			result = append(result, line)
		} else if inCodeBlock {
			result = append(result, line)
		} else {
			line = strings.ReplaceAll(line, "**", "\\*\\*")
			line = strings.ReplaceAll(line, "__", "\\_\\_")
			result = append(result, line)
		}
	}

	return strings.Join(result, "\n")
}

// Extension returns the file extension for this format
func (e *MarkdownExporter) Extension() string {
	return "md"
}
