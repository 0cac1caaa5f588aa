package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"kis-board/internal/models"
	"kis-board/pkg/utils"
)

// addPortfolioCommands adds portfolio management commands.
func addPortfolioCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:   "portfolio",
		Short: "Show or replace the watched portfolio",
	}
	cmd.AddCommand(newPortfolioShowCmd(app))
	cmd.AddCommand(newPortfolioSetCmd(app))
	rootCmd.AddCommand(cmd)
}

func newPortfolioShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the stored portfolio",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			st, err := app.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			p, err := st.Load(cmd.Context())
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(p)
			}
			if p.Len() == 0 {
				output.Dim("Portfolio is empty")
				return nil
			}
			output.Bold("%-4s %-10s %-20s %10s %14s", "MKT", "CODE", "NAME", "BALANCE", "PRICE")
			for _, h := range p.Items {
				output.Printf("%-4s %-10s %-20s %10s %14s\n",
					h.Market, h.Code, h.Name,
					utils.FormatAmount(h.Balance), utils.FormatFloat(h.Price))
			}
			return nil
		},
	}
}

func newPortfolioSetCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "set <file>",
		Short: "Replace the portfolio with a JSON file ('-' reads stdin)",
		Example: `  board portfolio set items.json
  echo '{"items":[]}' | board portfolio set -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			var r io.Reader
			if args[0] == "-" {
				r = cmd.InOrStdin()
			} else {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}

			var p models.Portfolio
			if err := json.NewDecoder(r).Decode(&p); err != nil {
				return fmt.Errorf("decoding portfolio: %w", err)
			}

			st, err := app.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.Replace(cmd.Context(), p); err != nil {
				output.Error("Portfolio rejected: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]int{"holdings": p.Len()})
			}
			output.Success("✓ Portfolio replaced (%d holdings)", p.Len())
			return nil
		},
	}
}
