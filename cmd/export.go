package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/iksnae/multichat/internal"
	"github.com/iksnae/multichat/internal/export"
	"github.com/spf13/cobra"
)

var (
	format      string
	outputDir   string
	exportLocal bool
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export [chat-id...]",
	Short: "Export chats to file",
	Long: `Export chats to various formats (jsonl, md, yaml, json).

Without chat ids every chat is exported. Each chat is written to
chat_<id>.<ext> in the output directory; --output - writes to stdout.
Use 'multichat list' to see available chat ids.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmdContext(cmd)

		exporter, err := export.NewExporter(format)
		if err != nil {
			return err
		}

		a, err := newApp(ctx, false)
		if err != nil {
			return err
		}
		defer a.Close()

		ids := args
		if len(ids) == 0 {
			var chats []internal.ChatSummary
			if exportLocal {
				chats, err = a.storage.ListChats(ctx)
			} else {
				chats, err = a.client.ListChats(ctx)
			}
			if err != nil {
				return fmt.Errorf("failed to list chats: %w", err)
			}
			for _, c := range chats {
				ids = append(ids, c.ID)
			}
		}
		if len(ids) == 0 {
			internal.PrintInfo("No chats to export")
			return nil
		}

		sessions := make([]*internal.ChatSession, 0, len(ids))
		for _, id := range ids {
			session, err := loadSession(ctx, a, id, exportLocal)
			if err != nil {
				return err
			}
			sessions = append(sessions, session)
		}

		if isStdout(outputDir) {
			return exportAll(cmd.OutOrStdout(), exporter, sessions)
		}

		if err := os.MkdirAll(outputDir, 0755); err != nil {
			return &internal.ExportError{Format: format, Path: outputDir, Err: err}
		}
		var written int
		err = internal.ShowProgress(ctx, fmt.Sprintf("Exporting %d chat(s) to %s", len(sessions), outputDir), func() error {
			for _, session := range sessions {
				path := filepath.Join(outputDir, fmt.Sprintf("chat_%s.%s", safeFileName(session.ID), exporter.Extension()))
				if err := exportFile(exporter, session, path); err != nil {
					internal.LogError("%v", err)
					continue
				}
				written++
			}
			return nil
		})
		if err != nil {
			return err
		}
		if written < len(sessions) {
			return fmt.Errorf("exported %d of %d chat(s)", written, len(sessions))
		}

		internal.PrintSuccess(fmt.Sprintf("Exported %d chat(s) to %s", written, outputDir))
		return nil
	},
}

func exportAll(w io.Writer, exporter export.Exporter, sessions []*internal.ChatSession) error {
	for _, session := range sessions {
		if err := exporter.Export(session, w); err != nil {
			return &internal.ExportError{Format: format, Path: "-", Err: err}
		}
	}
	return nil
}

func exportFile(exporter export.Exporter, session *internal.ChatSession, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return &internal.ExportError{Format: format, Path: path, Err: err}
	}
	if err := exporter.Export(session, file); err != nil {
		_ = file.Close()
		return &internal.ExportError{Format: format, Path: path, Err: err}
	}
	if err := file.Close(); err != nil {
		return &internal.ExportError{Format: format, Path: path, Err: err}
	}
	return nil
}

// safeFileName replaces path separators so a chat id cannot escape the
// output directory.
func safeFileName(id string) string {
	out := []rune(id)
	for i, r := range out {
		switch r {
		case '/', '\\', ':', 0:
			out[i] = '_'
		}
	}
	if s := string(out); s != "." && s != ".." {
		return s
	}
	return "_"
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&format, "format", "f", "jsonl", "Export format (jsonl, md, yaml, json)")
	exportCmd.Flags().StringVarP(&outputDir, "output", "o", "./exports", "Output directory, or - for stdout")
	exportCmd.Flags().BoolVar(&exportLocal, "local", false, "Export from the local transcript database")
}
