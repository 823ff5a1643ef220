package cmd

import (
	"fmt"

	"github.com/iksnae/multichat/internal"
	"github.com/spf13/cobra"
)

var deleteLocalOnly bool

// deleteCmd represents the delete command
var deleteCmd = &cobra.Command{
	Use:   "delete <chat-id>",
	Short: "Delete a chat",
	Long: `Delete a chat from the backend and from the local transcript database.

With --local only the local copy is removed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmdContext(cmd)
		chatID := args[0]

		a, err := newApp(ctx, !deleteLocalOnly)
		if err != nil {
			return err
		}
		defer a.Close()

		if deleteLocalOnly {
			if err := a.storage.DeleteTranscript(ctx, chatID); err != nil {
				return err
			}
			internal.PrintSuccess(fmt.Sprintf("Deleted local copy of %s", chatID))
			return nil
		}

		if err := a.coordinator.DeleteChat(ctx, chatID); err != nil {
			return fmt.Errorf("failed to delete chat %s: %w", chatID, err)
		}
		internal.PrintSuccess(fmt.Sprintf("Deleted chat %s", chatID))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
	deleteCmd.Flags().BoolVar(&deleteLocalOnly, "local", false, "Only delete the local transcript copy")
}
