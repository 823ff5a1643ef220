package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/iksnae/multichat/internal"
	"github.com/spf13/cobra"
)

var healthcheckVerbose bool

var (
	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39"))

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("62")).
			Bold(true).
			Underline(true)
)

// errUnhealthy is returned when a required check fails
var errUnhealthy = errors.New("health check failed")

// healthcheckCmd represents the healthcheck command
var healthcheckCmd = &cobra.Command{
	Use:   "healthcheck",
	Short: "Check that multichat can reach its backends and local state",
	Long: `Check the health of multichat by verifying:
  • Configuration
  • Local transcript database and schema
  • Model set
  • Persistence API and inference process reachability
  • Sign-in status

Warnings do not fail the check; errors do.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmdContext(cmd)
		out := cmd.OutOrStdout()
		healthy := true

		fmt.Fprintln(out, sectionStyle.Render("🔍 multichat Health Check"))
		fmt.Fprintln(out)

		fmt.Fprintln(out, infoStyle.Render("Step 1: Loading configuration..."))
		fmt.Fprintln(out, successStyle.Render("✅ Configuration loaded"))
		if healthcheckVerbose {
			fmt.Fprintf(out, "   API: %s\n", cfg.API.BaseURL)
			fmt.Fprintf(out, "   Inference: %s\n", cfg.Inference.BaseURL)
			fmt.Fprintf(out, "   Timeout: %s\n", cfg.HTTP.Timeout)
		}
		fmt.Fprintln(out)

		fmt.Fprintln(out, infoStyle.Render("Step 2: Opening transcript database..."))
		a, err := newApp(ctx, false)
		if err != nil {
			fail(out, "Failed to open local state", err)
			return errUnhealthy
		}
		defer a.Close()
		version, err := internal.SchemaVersion(ctx, a.db)
		if err != nil {
			fail(out, "Failed to read schema version", err)
			healthy = false
		} else {
			fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("✅ Database ready (schema v%d)", version)))
		}
		if chats, err := a.storage.ListChats(ctx); err == nil {
			fmt.Fprintf(out, "   %d chat(s) stored locally\n", len(chats))
		}
		if healthcheckVerbose {
			fmt.Fprintf(out, "   Path: %s\n", cfg.Storage.Path)
		}
		fmt.Fprintln(out)

		fmt.Fprintln(out, infoStyle.Render("Step 3: Checking model set..."))
		models := a.store.Models()
		if err := internal.ValidateModels(models); err != nil {
			fail(out, "Model set is not usable", err)
			healthy = false
		} else {
			fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("✅ %d model(s) configured", len(models))))
		}
		if healthcheckVerbose {
			fmt.Fprintf(out, "   File: %s\n", a.models.Path())
		}
		fmt.Fprintln(out)

		fmt.Fprintln(out, infoStyle.Render("Step 4: Probing backends..."))
		apiErr, inferenceErr := a.client.Probe(ctx)
		if apiErr != nil {
			fail(out, "Persistence API unreachable", apiErr)
			healthy = false
		} else {
			fmt.Fprintln(out, successStyle.Render("✅ Persistence API reachable"))
		}
		if inferenceErr != nil {
			fail(out, "Inference process unreachable", inferenceErr)
			healthy = false
		} else {
			fmt.Fprintln(out, successStyle.Render("✅ Inference process reachable"))
		}
		fmt.Fprintln(out)

		if apiErr == nil {
			fmt.Fprintln(out, infoStyle.Render("Step 5: Checking sign-in..."))
			status, err := a.client.SessionCheck(ctx)
			switch {
			case err != nil:
				fmt.Fprintln(out, warningStyle.Render("⚠️  Session check failed:"), err)
			case status.Authenticated:
				fmt.Fprintln(out, successStyle.Render("✅ Signed in as "+status.Username))
			default:
				fmt.Fprintln(out, warningStyle.Render("⚠️  Not signed in (run 'multichat login')"))
			}
			fmt.Fprintln(out)
		}

		if !healthy {
			fmt.Fprintln(out, errorStyle.Render("❌ Health check failed"))
			return errUnhealthy
		}
		fmt.Fprintln(out, successStyle.Render("✅ All checks passed"))
		return nil
	},
}

func fail(out io.Writer, msg string, err error) {
	fmt.Fprintln(out, errorStyle.Render("❌ "+msg+":"), err)
}

func init() {
	rootCmd.AddCommand(healthcheckCmd)
	healthcheckCmd.Flags().BoolVar(&healthcheckVerbose, "verbose", false, "Show detailed information")
}
