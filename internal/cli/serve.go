package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"kis-board/internal/render"
	"kis-board/internal/server"
	"kis-board/internal/stream"
)

func addServeCommand(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newServeCmd(app))
}

func newServeCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the web board",
		Long: `Serve the board page, the portfolio save endpoint and the websocket feed.

Clients either poll over the websocket or send "watch" to receive the
scheduled refreshes configured by server.refresh_schedule.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), app)
		},
	}
}

func runServe(ctx context.Context, app *App) error {
	log := app.Logger
	cfg := app.Config

	market, err := app.marketData()
	if err != nil {
		return err
	}
	st, err := app.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	html, err := render.NewHTML()
	if err != nil {
		return err
	}
	engine := app.engine(market, st)

	hub := stream.NewHub(log)
	hub.Start(ctx)
	defer hub.Stop()

	sched := stream.NewScheduler(log)
	if cfg.Server.RefreshSchedule != "" {
		job := stream.NewRefreshJob(hub, engine, html, cfg.KIS.Timeout*3)
		if err := sched.AddJob(cfg.Server.RefreshSchedule, job); err != nil {
			return err
		}
	}
	sched.Start()
	defer sched.Stop()

	srv := server.New(server.Config{
		Addr:           cfg.ListenAddr(),
		DisplayHost:    cfg.Server.DisplayHost,
		PollInterval:   cfg.Server.PollInterval,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Log:            log,
	}, server.Deps{
		Store:     st,
		Refresher: engine,
		HTML:      html,
		Hub:       hub,
		Breaker:   app.breaker,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// ctx is cancelled on SIGINT/SIGTERM by main
	select {
	case err := <-errCh:
		log.Error().Err(err).Msg("Server failed")
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
	return nil
}
