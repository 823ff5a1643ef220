package cmd

import (
	"fmt"
	"os"

	"github.com/iksnae/multichat/internal"
	"github.com/spf13/cobra"
)

var (
	verbose    bool
	configPath string
	logLevel   string
	version    string = "dev"
	commit     string = "unknown"
	date       string = "unknown"

	// cfg is loaded once per invocation by PersistentPreRunE
	cfg *internal.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "multichat",
	Short: "Chat with several models at once from the terminal",
	Long: `A CLI client for a multi-model chat backend.

One prompt is answered by every configured model in turn. Each model's
reply streams into its own message, and the conversation is saved to the
chat backend and mirrored into a local transcript database.

Features:
  • Interactive chat with streaming, per-model responses
  • Model sets with history sharing and prompt templates
  • Chat listing, naming, deletion and export (JSONL, Markdown, YAML, JSON)
  • Local transcript mirror usable offline

Quick Start:
  multichat login                        # Sign in to the chat backend
  multichat models add --name A --value deepseek-ai/DeepSeek-R1
  multichat chat                         # Start an interactive chat
  multichat send "hello"                 # One-shot send
  multichat export <chat-id> --format md # Export a chat as Markdown`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := internal.LoadConfig(configPath)
		if err != nil {
			return err
		}
		cfg = loaded

		level := cfg.Log.Level
		if cmd.Flags().Changed("log-level") {
			level = logLevel
		}
		internal.SetLogLevel(internal.ParseLogLevel(level))
		if verbose {
			internal.SetVerbose(true)
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default ~/.multichat/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	// Set version template to ensure --version flag works
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}
