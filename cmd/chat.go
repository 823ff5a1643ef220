package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/iksnae/multichat/internal"
	"github.com/peterh/liner"
	"github.com/spf13/cobra"
)

var chatOpenID string

const chatHelp = `Commands:
  /new           start a new chat
  /open <id>     open an existing chat
  /list          list chats
  /models        show the configured models
  /history       show the messages of the current chat
  /help          show this help
  /quit          leave`

// chatCmd represents the interactive chat command
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat",
	Long: `Start an interactive chat with every configured model.

Each line you type is sent to the models in order and their replies stream
back one after the other. Type /help for the available commands.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmdContext(cmd)

		a, err := newApp(ctx, true)
		if err != nil {
			return err
		}
		defer a.Close()

		out := cmd.OutOrStdout()
		s := &chatSession{app: a, out: out}
		if chatOpenID != "" {
			if err := s.open(ctx, chatOpenID); err != nil {
				return err
			}
		}

		line := liner.NewLiner()
		defer line.Close()
		line.SetCtrlCAborts(true)
		historyFile := filepath.Join(internal.DefaultConfigDir(), "chat_history")
		if f, err := os.Open(historyFile); err == nil {
			_, _ = line.ReadHistory(f)
			f.Close()
		}
		defer saveLineHistory(line, historyFile)

		fmt.Fprintln(out, headerStyle.Render("💬 multichat"))
		fmt.Fprintln(out, dateStyle.Render(strings.Join(internal.ModelNames(a.store.Models()), ", ")+" | /help for commands"))
		fmt.Fprintln(out)

		for {
			input, err := line.Prompt(promptLabel(a.store))
			if err != nil {
				if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
					fmt.Fprintln(out)
					return nil
				}
				return err
			}
			input = strings.TrimSpace(input)
			if input == "" {
				continue
			}
			line.AppendHistory(input)

			if strings.HasPrefix(input, "/") {
				quit, err := s.command(ctx, input)
				if err != nil {
					internal.PrintError(err.Error())
				}
				if quit {
					return nil
				}
				continue
			}
			s.send(ctx, input)
		}
	},
}

func promptLabel(store *internal.Store) string {
	id := store.ActiveChatID()
	if id == "" {
		return "new> "
	}
	if chat, ok := store.ChatByID(id); ok && chat.Title != "" && !chat.HasPlaceholderTitle() {
		return chat.Title + "> "
	}
	return id + "> "
}

func saveLineHistory(line *liner.State, path string) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = line.WriteHistory(f)
}

// chatSession runs the REPL commands against one app
type chatSession struct {
	app *app
	out io.Writer
}

// send runs one send cycle. Ctrl+C cancels the stream without leaving the REPL.
func (s *chatSession) send(ctx context.Context, text string) {
	sendCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	printer := newStreamPrinter(s.out)
	unsubscribe := printer.attach(s.app.store)
	res := s.app.coordinator.Send(sendCtx, text)
	unsubscribe()
	printer.finish()

	if !res.OK {
		if errors.Is(res.Err, context.Canceled) {
			internal.PrintWarning("Cancelled")
			return
		}
		internal.PrintError(res.Err.Error())
	}
}

func (s *chatSession) open(ctx context.Context, chatID string) error {
	err := internal.ShowProgress(ctx, "Opening chat "+chatID, func() error {
		return s.app.coordinator.Activate(ctx, chatID)
	})
	if err != nil {
		return fmt.Errorf("failed to open chat %s: %w", chatID, err)
	}
	for _, msg := range s.app.store.Messages() {
		printMessage(s.out, msg)
	}
	return nil
}

// command handles a slash command and reports whether the REPL should exit.
func (s *chatSession) command(ctx context.Context, input string) (bool, error) {
	fields := strings.Fields(input)
	switch fields[0] {
	case "/quit", "/exit", "/q":
		return true, nil

	case "/help", "/?":
		fmt.Fprintln(s.out, chatHelp)

	case "/new":
		if err := s.app.coordinator.Activate(ctx, ""); err != nil {
			return false, err
		}
		internal.PrintInfo("Started a new chat; it is created with your first message")

	case "/open":
		if len(fields) != 2 {
			return false, fmt.Errorf("usage: /open <chat-id>")
		}
		return false, s.open(ctx, fields[1])

	case "/list":
		if err := s.app.coordinator.RefreshChats(ctx); err != nil {
			return false, err
		}
		displayChats(s.out, s.app.store.Chats())

	case "/models":
		displayModels(s.out, s.app.store.Models())

	case "/history":
		for _, msg := range s.app.store.Messages() {
			printMessage(s.out, msg)
		}

	default:
		return false, fmt.Errorf("unknown command %s (try /help)", fields[0])
	}
	return false, nil
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringVar(&chatOpenID, "chat", "", "Open an existing chat")
}
