package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/iksnae/multichat/internal"
	"github.com/spf13/cobra"
)

var listLocal bool

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List chats",
	Long: `List the chats stored by the backend.

With --local the chats mirrored into the local transcript database are
listed instead, which works without a connection.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmdContext(cmd)

		a, err := newApp(ctx, !listLocal)
		if err != nil {
			return err
		}
		defer a.Close()

		var chats []internal.ChatSummary
		if listLocal {
			chats, err = a.storage.ListChats(ctx)
			if err != nil {
				return err
			}
		} else {
			err = internal.ShowProgress(ctx, "Loading chats...", func() error {
				return a.coordinator.RefreshChats(ctx)
			})
			if err != nil {
				return fmt.Errorf("failed to list chats: %w", err)
			}
			chats = a.store.Chats()
		}

		displayChats(cmd.OutOrStdout(), chats)
		return nil
	},
}

func displayChats(out io.Writer, chats []internal.ChatSummary) {
	if len(chats) == 0 {
		fmt.Fprintln(out, headerStyle.Render("📋 No chats found"))
		return
	}

	fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("📋 Found %d chat(s)", len(chats))))
	fmt.Fprintln(out)

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintln(w, titleStyle.Render("ID")+"\t"+titleStyle.Render("Title")+"\t")
	_, _ = fmt.Fprintln(w, strings.Repeat("─", 60))
	for _, c := range chats {
		title := chatLabel(c)
		if len(title) > 50 {
			title = title[:47] + "..."
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t\n", idStyle.Render(c.ID), title)
	}
	_ = w.Flush()
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().BoolVar(&listLocal, "local", false, "List chats from the local transcript database")
}
