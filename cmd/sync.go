package cmd

import (
	"fmt"

	"github.com/iksnae/multichat/internal"
	"github.com/spf13/cobra"
)

// syncCmd represents the sync command
var syncCmd = &cobra.Command{
	Use:   "sync [chat-id...]",
	Short: "Copy chats from the backend into the local transcript database",
	Long: `Fetch chats from the backend and save them to the local transcript
database, replacing any local copy. Without chat ids every chat is synced.

Synced chats can be listed, shown and exported offline with --local.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmdContext(cmd)

		a, err := newApp(ctx, false)
		if err != nil {
			return err
		}
		defer a.Close()

		chats, err := a.client.ListChats(ctx)
		if err != nil {
			return fmt.Errorf("failed to list chats: %w", err)
		}
		if len(args) > 0 {
			titles := make(map[string]string, len(chats))
			for _, c := range chats {
				titles[c.ID] = c.Title
			}
			chats = chats[:0]
			for _, id := range args {
				chats = append(chats, internal.ChatSummary{ID: id, Title: titles[id]})
			}
		}

		normalizer := internal.NewNormalizer()
		var synced, failed int
		for i, chat := range chats {
			entries, err := a.client.GetChatHistory(ctx, chat.ID)
			if err != nil {
				internal.LogError("Failed to fetch chat %s: %v", chat.ID, err)
				failed++
				continue
			}
			session, err := normalizer.NormalizeSession(chat, entries)
			if err != nil {
				internal.LogError("Failed to normalize chat %s: %v", chat.ID, err)
				failed++
				continue
			}
			if err := a.storage.SaveTranscript(ctx, session); err != nil {
				return err
			}
			synced++
			internal.LogInfo("Synced chat %d/%d: %s (%d messages)", i+1, len(chats), chat.ID, len(session.Messages))
		}

		if failed > 0 {
			return fmt.Errorf("synced %d chat(s), %d failed", synced, failed)
		}
		internal.PrintSuccess(fmt.Sprintf("Synced %d chat(s) to %s", synced, cfg.Storage.Path))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
