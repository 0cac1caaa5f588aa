package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"kis-board/internal/security"
)

// addAuthCommands adds authentication commands.
func addAuthCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newTokenCmd(app))
}

func newTokenCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Issue an access token and show its expiry",
		Long: `Issue an access token with the configured app key pair.

The token itself is printed masked. A successful run proves the credentials
and base URL work.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			tokens, err := app.tokenManager()
			if err != nil {
				output.Error("%v", err)
				return err
			}
			if _, err := tokens.Token(ctx); err != nil {
				output.Error("Token issuance failed: %v", err)
				return err
			}
			cred := tokens.Credential()

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"token":      security.MaskCredential(cred.Token),
					"expires_at": cred.ExpiresAt,
				})
			}
			output.Success("✓ Access token issued")
			output.Printf("  Token:   %s\n", security.MaskCredential(cred.Token))
			output.Printf("  Expires: %s (in %s)\n",
				cred.ExpiresAt.Format(time.RFC3339),
				time.Until(cred.ExpiresAt).Round(time.Second))
			return nil
		},
	}
}
