package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mvollmer/tablebook/internal/google"
)

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage backend credentials",
		Long: `Manage the stored calendar backend credentials tablebook uses.

Credentials are stored per account, so one machine can hold tokens for
several calendars (e.g. different locations of the same restaurant).`,
	}

	cmd.AddCommand(newAuthLoginCmd())
	cmd.AddCommand(newAuthStatusCmd())
	return cmd
}

func newAuthLoginCmd() *cobra.Command {
	var account string
	var authCode string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authorize tablebook against the calendar backend",
		Long: `Authorize tablebook against the calendar backend and store the token
for the given account.

Without --code, prints the authorization URL and reads the code from
standard input.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := google.MigrateDefaultToken(); err != nil {
				return fmt.Errorf("failed to migrate existing token: %w", err)
			}

			if authCode == "" {
				fmt.Printf("Visit this URL in your browser and grant calendar access:\n\n  %s\n\n", google.GetAuthURLForAccount(account))
				fmt.Print("Paste the authorization code: ")

				reader := bufio.NewReader(os.Stdin)
				line, err := reader.ReadString('\n')
				if err != nil {
					return fmt.Errorf("failed to read authorization code: %w", err)
				}
				authCode = strings.TrimSpace(line)
			}

			if authCode == "" {
				return fmt.Errorf("no authorization code provided")
			}

			if err := google.SaveTokenForAccount(context.Background(), account, authCode); err != nil {
				return fmt.Errorf("failed to save token for account %q: %w", account, err)
			}

			fmt.Printf("Token stored for account %q.\n", account)
			return nil
		},
	}

	cmd.Flags().StringVar(&account, "account", google.DefaultAccount, "Account name to store the token under")
	cmd.Flags().StringVar(&authCode, "code", "", "Authorization code (skips the interactive prompt)")
	return cmd
}

func newAuthStatusCmd() *cobra.Command {
	var account string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show whether a token is stored for an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := google.MigrateDefaultToken(); err != nil {
				return fmt.Errorf("failed to migrate existing token: %w", err)
			}

			if google.HasTokenForAccount(account) {
				fmt.Printf("Account %q has a stored token.\n", account)
				return nil
			}
			fmt.Printf("Account %q has no stored token. Run \"tablebook auth login --account %s\".\n", account, account)
			return nil
		},
	}

	cmd.Flags().StringVar(&account, "account", google.DefaultAccount, "Account name to check")
	return cmd
}
