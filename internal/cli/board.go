package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"kis-board/internal/render"
	"kis-board/internal/stream"
	"kis-board/pkg/utils"
)

// addBoardCommands adds the terminal valuation commands.
func addBoardCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newSummaryCmd(app))
	rootCmd.AddCommand(newConclusionsCmd(app))
	rootCmd.AddCommand(newWatchCmd(app))
}

func newSummaryCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Value the portfolio once and print it",
		Example: `  board summary
  board summary --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			market, err := app.marketData()
			if err != nil {
				output.Error("%v", err)
				return err
			}
			st, err := app.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			v, err := app.engine(market, st).Refresh(ctx)
			if err != nil {
				output.Error("Valuation failed: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(v)
			}
			render.NewTerminal(output.Writer(), output.Colored()).Valuation(v)
			if !utils.IsDomesticSession(time.Now()) {
				output.Dim("KRX is closed; domestic prices are from the last session")
			}
			return nil
		},
	}
}

func newConclusionsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "conclusions <code>",
		Short: "Show intraday executions of a domestic security",
		Example: `  board conclusions 005930
  board conclusions 005930 --hour 100000`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			hour, _ := cmd.Flags().GetString("hour")

			client, err := app.kisClient()
			if err != nil {
				output.Error("%v", err)
				return err
			}
			items, err := client.Conclusions(ctx, args[0], hour)
			if err != nil {
				output.Error("Lookup failed: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(items)
			}
			render.NewTerminal(output.Writer(), output.Colored()).Conclusions(args[0], items)
			return nil
		},
	}
	cmd.Flags().String("hour", "", "latest execution time HHMMSS (default: now, KST)")
	return cmd
}

func newWatchCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print the board on a schedule until interrupted",
		Example: `  board watch
  board watch --schedule "@every 30s"
  board watch --paper quotes.json --count 1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			schedule, _ := cmd.Flags().GetString("schedule")
			if schedule == "" {
				schedule = app.Config.Server.RefreshSchedule
			}
			if schedule == "" {
				schedule = "@every 5s"
			}
			count, _ := cmd.Flags().GetInt("count")

			market, err := app.marketData()
			if err != nil {
				output.Error("%v", err)
				return err
			}
			st, err := app.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			hub := stream.NewHub(app.Logger)
			hub.Start(ctx)
			defer hub.Stop()

			// updates are printed from this goroutine; the consumer only hands off
			updates := make(chan stream.Update, 1)
			consumer := stream.NewConsumerFunc(func(u stream.Update) {
				select {
				case updates <- u:
				default:
				}
			})
			hub.RegisterConsumer(consumer)
			defer hub.UnregisterConsumer(consumer)

			sched := stream.NewScheduler(app.Logger)
			job := stream.NewRefreshJob(hub, app.engine(market, st), render.NewTerminalFrames(output.Colored()), app.Config.KIS.Timeout*3)
			if err := sched.AddJob(schedule, job); err != nil {
				output.Error("Invalid schedule %q: %v", schedule, err)
				return err
			}
			if err := sched.RunNow(job); err != nil {
				output.Error("Valuation failed: %v", err)
				return err
			}
			sched.Start()
			defer sched.Stop()

			for printed := 0; count <= 0 || printed < count; printed++ {
				select {
				case <-ctx.Done():
					return nil
				case u := <-updates:
					if output.IsJSON() {
						if err := output.JSON(u.Valuation); err != nil {
							return err
						}
						continue
					}
					fmt.Fprint(output.Writer(), u.Frame)
				}
			}
			return nil
		},
	}
	cmd.Flags().String("schedule", "", "cron schedule (default: server.refresh_schedule)")
	cmd.Flags().Int("count", 0, "stop after this many boards (0 = until interrupted)")
	return cmd
}
