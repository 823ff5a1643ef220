package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
)

var sendChatID string

// sendCmd represents the send command
var sendCmd = &cobra.Command{
	Use:   "send <message>",
	Short: "Send one message and print the replies",
	Long: `Send a single message to every configured model and stream the replies.

Without --chat a new chat is created. The chat id is printed when the send
completes so the conversation can be continued with --chat.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmdContext(cmd), os.Interrupt)
		defer stop()

		a, err := newApp(ctx, true)
		if err != nil {
			return err
		}
		defer a.Close()

		if sendChatID != "" {
			if err := a.coordinator.Activate(ctx, sendChatID); err != nil {
				return fmt.Errorf("failed to open chat %s: %w", sendChatID, err)
			}
		}

		out := cmd.OutOrStdout()
		printer := newStreamPrinter(out)
		unsubscribe := printer.attach(a.store)
		res := a.coordinator.Send(ctx, strings.Join(args, " "))
		unsubscribe()
		printer.finish()

		if !res.OK {
			return fmt.Errorf("send failed: %w", res.Err)
		}

		// a generated title is saved in the background
		a.coordinator.Wait()
		if chat, ok := a.store.ChatByID(res.ChatID); ok && chat.Title != "" {
			fmt.Fprintln(out, idStyle.Render(fmt.Sprintf("chat %s: %s", res.ChatID, chat.Title)))
		} else {
			fmt.Fprintln(out, idStyle.Render("chat "+res.ChatID))
		}
		return nil
	},
}

// cmdContext returns the command's context, or Background when run outside
// Execute.
func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringVar(&sendChatID, "chat", "", "Continue an existing chat")
}
