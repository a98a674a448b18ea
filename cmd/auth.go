package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teemow/calendar-mcp/internal/google"
)

func newAuthCmd() *cobra.Command {
	var account string

	cmd := &cobra.Command{
		Use:   "auth [authorization-code]",
		Short: "Authorize access to Google Calendar",
		Long: `Authorize calendar-mcp to access Google Calendar on your behalf.

Run without arguments to print the authorization URL. Visit it in a
browser, sign in, grant access, and copy the authorization code. Then run
the command again with the code to store the token:

  calendar-mcp auth
  calendar-mcp auth 4/0AbCdEf...

Tokens are stored per account; use --account to manage several Google
accounts. GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET must be set.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				if google.HasTokenForAccount(account) {
					fmt.Printf("Account %q is already authorized. Re-run with an authorization code to replace the token.\n\n", account)
				}
				fmt.Println("Visit this URL in your browser and grant access:")
				fmt.Println()
				fmt.Println("  " + google.GetAuthURL())
				fmt.Println()
				fmt.Println("Then run: calendar-mcp auth <authorization-code>")
				return nil
			}

			if err := google.SaveTokenForAccount(cmd.Context(), account, args[0]); err != nil {
				return fmt.Errorf("saving token for account %s: %w", account, err)
			}
			fmt.Printf("Token stored for account %q.\n", account)
			return nil
		},
	}

	cmd.Flags().StringVar(&account, "account", "default", "Account name used to store the token")
	return cmd
}
