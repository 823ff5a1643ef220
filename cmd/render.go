package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/iksnae/multichat/internal"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	idStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Italic(true)

	countStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	dateStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	userMessageStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("39")).
				Bold(true).
				Padding(0, 1)

	assistantMessageStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("135")).
				Bold(true).
				Padding(0, 1)

	timestampStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)
)

// markdownWidth is used when stdout is not a terminal
const markdownWidth = 80

// renderMarkdown renders content for a terminal. Piped output and renderer
// failures get the raw text.
func renderMarkdown(w io.Writer, content string) string {
	if !internal.IsTerminal(w) {
		return content
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(internal.TerminalWidth(markdownWidth)-4),
	)
	if err != nil {
		internal.LogDebug("Markdown renderer unavailable: %v", err)
		return content
	}
	out, err := r.Render(content)
	if err != nil {
		return content
	}
	return out
}

// roleLabel renders the heading shown above a message.
func roleLabel(msg internal.Message) string {
	if msg.Role == internal.RoleUser {
		return userMessageStyle.Render("👤 You")
	}
	return assistantMessageStyle.Render("🤖 Assistant")
}

// printMessage writes one turn with its heading and optional timestamp.
func printMessage(w io.Writer, msg internal.Message) {
	heading := roleLabel(msg)
	if !msg.CreatedAt.IsZero() {
		heading += " " + timestampStyle.Render(msg.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintln(w, heading)
	fmt.Fprintln(w, strings.TrimRight(renderMarkdown(w, msg.Content), "\n"))
	fmt.Fprintln(w)
}

// chatLabel returns the title, or a placeholder for unnamed chats.
func chatLabel(c internal.ChatSummary) string {
	if c.Title == "" {
		return "Untitled"
	}
	return c.Title
}

// isStdout reports whether the output target is "-"
func isStdout(path string) bool {
	return path == "-" || path == os.Stdout.Name()
}
