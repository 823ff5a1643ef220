package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/iksnae/multichat/internal"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	loginUsername string
	loginPassword string
	loginRemember bool
)

// loginCmd represents the login command
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to the chat backend",
	Long: `Sign in to the chat backend. The session cookie is kept in the local
database so later commands stay signed in.

The password is read from the terminal without echo unless --password is
given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmdContext(cmd)

		username := loginUsername
		if username == "" {
			var err error
			username, err = promptLine("Username: ")
			if err != nil {
				return err
			}
		}
		password := loginPassword
		if !cmd.Flags().Changed("password") {
			var err error
			password, err = readPassword("Password: ")
			if err != nil {
				return err
			}
		}
		if username == "" || password == "" {
			return fmt.Errorf("username and password are required")
		}

		a, err := newApp(ctx, false)
		if err != nil {
			return err
		}
		defer a.Close()

		creds := internal.Credentials{Username: username, Password: password, RememberMe: loginRemember}
		err = internal.ShowProgressWithSteps(ctx, []internal.ProgressStep{
			{Message: "Signing in as " + username, Fn: func() error { return a.client.Login(ctx, creds) }},
			{Message: "Saving session", Fn: func() error { return a.saveCookies(ctx) }},
		})
		if err != nil {
			return fmt.Errorf("login failed: %w", err)
		}
		internal.PrintSuccess(fmt.Sprintf("Signed in as %s", username))
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the saved session",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmdContext(cmd)

		a, err := newApp(ctx, false)
		if err != nil {
			return err
		}
		defer a.Close()
		a.forgetCookies = true

		if err := a.client.Logout(ctx); err != nil {
			internal.LogWarn("Backend logout failed: %v", err)
		}
		if err := a.storage.ClearCookies(ctx, a.cookieHost); err != nil {
			return err
		}
		internal.PrintSuccess("Signed out")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmdContext(cmd)

		a, err := newApp(ctx, false)
		if err != nil {
			return err
		}
		defer a.Close()

		status, err := a.client.SessionCheck(ctx)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if !status.Authenticated {
			fmt.Fprintln(out, dateStyle.Render("Not signed in (run 'multichat login')"))
			return nil
		}

		profile, err := a.client.Profile(ctx)
		if err != nil {
			return err
		}
		name := profile.Name
		if name == "" {
			name = profile.Username
		}
		fmt.Fprintln(out, titleStyle.Render(name))
		fmt.Fprintln(out, idStyle.Render(fmt.Sprintf("username: %s  id: %s", profile.Username, profile.UserID)))
		return nil
	},
}

func promptLine(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func readPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return promptLine(prompt)
	}
	fmt.Fprint(os.Stderr, prompt)
	data, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(data), nil
}

func init() {
	rootCmd.AddCommand(loginCmd, logoutCmd, whoamiCmd)
	loginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "Username")
	loginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "Password (prompted when omitted)")
	loginCmd.Flags().BoolVar(&loginRemember, "remember", true, "Ask the backend for a long-lived session")
}
