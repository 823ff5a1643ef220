package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/iksnae/multichat/internal"
	"github.com/spf13/cobra"
)

var (
	showLimit int
	showLocal bool
)

var (
	sessionHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("212")).
				Padding(0, 1).
				MarginBottom(1)

	sessionMetaStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("243")).
				MarginBottom(1)
)

// showCmd represents the show command
var showCmd = &cobra.Command{
	Use:   "show <chat-id>",
	Short: "Show the messages of a chat",
	Long: `Display the messages of a chat.

The history is fetched from the backend, or read from the local transcript
database with --local.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmdContext(cmd)

		a, err := newApp(ctx, false)
		if err != nil {
			return err
		}
		defer a.Close()

		session, err := loadSession(ctx, a, args[0], showLocal)
		if err != nil {
			return err
		}
		displaySession(cmd.OutOrStdout(), session, showLimit)
		return nil
	},
}

// loadSession fetches a chat remotely, or from the transcript database when
// local is set. Remote titles come from the chat list.
func loadSession(ctx context.Context, a *app, chatID string, local bool) (*internal.ChatSession, error) {
	if local {
		session, err := a.storage.LoadSession(ctx, chatID)
		if err != nil {
			return nil, err
		}
		if session == nil {
			return nil, fmt.Errorf("chat not found locally: %s", chatID)
		}
		return session, nil
	}

	var entries []internal.HistoryEntry
	err := internal.ShowProgress(ctx, "Fetching chat history...", func() error {
		var err error
		entries, err = a.client.GetChatHistory(ctx, chatID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chat %s: %w", chatID, err)
	}

	summary := internal.ChatSummary{ID: chatID}
	if chats, err := a.client.ListChats(ctx); err != nil {
		internal.LogDebug("Chat list unavailable, showing without title: %v", err)
	} else {
		for _, c := range chats {
			if c.ID == chatID {
				summary = c
				break
			}
		}
	}
	return internal.NewNormalizer().NormalizeSession(summary, entries)
}

func displaySession(out io.Writer, session *internal.ChatSession, limit int) {
	title := session.Title
	if title == "" {
		title = "Untitled"
	}
	fmt.Fprintln(out, sessionHeaderStyle.Render("💬 "+title))
	fmt.Fprintln(out, sessionMetaStyle.Render(fmt.Sprintf("Chat: %s | Messages: %d", session.ID, len(session.Messages))))

	messages := session.Messages
	if limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
		fmt.Fprintln(out, sessionMetaStyle.Render(fmt.Sprintf("Showing last %d messages", limit)))
	}
	if len(messages) == 0 {
		fmt.Fprintln(out, sessionMetaStyle.Render("No messages"))
		return
	}
	for _, msg := range messages {
		printMessage(out, msg)
	}
}

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().IntVarP(&showLimit, "limit", "n", 0, "Show only the last N messages (0 = all)")
	showCmd.Flags().BoolVar(&showLocal, "local", false, "Read the chat from the local transcript database")
}
