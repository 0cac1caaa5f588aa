// Package cli provides the command-line interface for the portfolio board.
package cli

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"kis-board/internal/broker"
	"kis-board/internal/config"
	"kis-board/internal/logging"
	"kis-board/internal/resilience"
	"kis-board/internal/security"
	"kis-board/internal/store"
	"kis-board/internal/valuation"
	"kis-board/pkg/utils"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2024-03-04"
)

var errNoCredentials = errors.New("no KIS app key/secret configured (set APP_KEY and APP_SECRET or credentials.toml)")

// App holds the application dependencies.
type App struct {
	ConfigDir string
	Config    *config.Config
	Logger    zerolog.Logger

	breaker   *resilience.CircuitBreaker
	paperPath string
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	rootCmd := &cobra.Command{
		Use:   "board",
		Short: "KIS Board - live portfolio profit/loss board",
		Long: `KIS Board values a watched portfolio against live quotes from the
Korea Investment & Securities open API and shows the result on a web page,
over a websocket, or in the terminal.

Use 'board serve' to run the web board.
Use 'board summary' for a one-off valuation in the terminal.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if dir, _ := cmd.Flags().GetString("config"); dir != "" && dir != app.ConfigDir {
				loaded, err := config.Load(dir)
				if err != nil {
					return err
				}
				app.ConfigDir = dir
				app.Config = loaded
			}
			app.paperPath, _ = cmd.Flags().GetString("paper")
			if n := app.Config.KIS.BreakerFailures; n > 0 {
				app.breaker = broker.NewCircuitBreaker(n, app.Config.KIS.BreakerCooldown)
			}

			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/kis-board)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().String("paper", "", "value against a JSON quote sheet instead of the KIS API")

	addCoreCommands(rootCmd, app)
	addAuthCommands(rootCmd, app)
	addBoardCommands(rootCmd, app)
	addPortfolioCommands(rootCmd, app)
	addServeCommand(rootCmd, app)

	return rootCmd
}

// configDir is the directory the active config was loaded from.
func (a *App) configDir() string {
	if a.ConfigDir != "" {
		return a.ConfigDir
	}
	return config.DefaultConfigDir()
}

func (a *App) tokenManager() (*broker.TokenManager, error) {
	if !a.Config.HasCredentials() {
		return nil, errNoCredentials
	}
	creds := a.Config.Credentials.KIS
	return broker.NewTokenManager(a.Config.KIS.BaseURL, creds.AppKey, creds.AppSecret,
		broker.WithTokenLogger(a.Logger),
		broker.WithTokenHTTPClient(a.httpClient()),
	), nil
}

func (a *App) kisClient() (*broker.KISClient, error) {
	tokens, err := a.tokenManager()
	if err != nil {
		return nil, err
	}
	creds := a.Config.Credentials.KIS
	opts := []broker.ClientOption{
		broker.WithLogger(a.Logger),
		broker.WithHTTPClient(a.httpClient()),
		broker.WithRateLimit(a.Config.KIS.RateLimit),
		broker.WithLocation(utils.LoadLocation(a.Config.Valuation.Timezone)),
	}
	if a.breaker != nil {
		opts = append(opts, broker.WithCircuitBreaker(a.breaker))
	}
	return broker.NewKISClient(a.Config.KIS.BaseURL, creds.AppKey, creds.AppSecret, tokens, opts...), nil
}

// marketData returns the quote source: the --paper sheet when given,
// otherwise the KIS API.
func (a *App) marketData() (broker.MarketData, error) {
	if a.paperPath != "" {
		paper, err := broker.LoadPaperMarketData(a.paperPath)
		if err != nil {
			return nil, err
		}
		a.Logger.Info().Str("path", a.paperPath).Msg("Using paper quotes")
		return paper, nil
	}
	client, err := a.kisClient()
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (a *App) httpClient() *http.Client {
	timeout := a.Config.KIS.Timeout
	if timeout <= 0 {
		timeout = broker.DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

func (a *App) openStore() (store.PortfolioStore, error) {
	return store.Open(a.Config.Store.Backend, a.Config.Store.Path, a.Logger)
}

func (a *App) engine(market broker.MarketData, portfolios valuation.PortfolioSource) *valuation.Engine {
	return valuation.NewEngine(market, portfolios,
		valuation.WithLogger(a.Logger),
		valuation.WithConcurrency(a.Config.Valuation.Concurrency),
		valuation.WithLocation(utils.LoadLocation(a.Config.Valuation.Timezone)),
	)
}

// addCoreCommands adds core utility commands.
func addCoreCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			} else {
				output.Printf("KIS Board v%s\n", Version)
				output.Dim("Build date: %s", BuildDate)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(redactedConfig(app.Config))
			}
			return showConfig(output, app.Config)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"path": app.configDir()})
			} else {
				output.Println(app.configDir())
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration files",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				output.JSON(map[string]bool{"valid": true, "credentials": app.Config.HasCredentials()})
			} else {
				output.Success("✓ Configuration is valid")
				if !app.Config.HasCredentials() {
					output.Warning("No app key/secret configured; quote commands will fail")
				}
			}
			return nil
		},
	})

	return cmd
}

// redactedConfig is the config with credentials masked, for display.
func redactedConfig(cfg *config.Config) map[string]interface{} {
	return map[string]interface{}{
		"kis":       cfg.KIS,
		"server":    cfg.Server,
		"store":     cfg.Store,
		"valuation": cfg.Valuation,
		"log":       cfg.Log,
		"credentials": map[string]string{
			"app_key":    maskOrEmpty(cfg.Credentials.KIS.AppKey),
			"app_secret": maskOrEmpty(cfg.Credentials.KIS.AppSecret),
		},
	}
}

func showConfig(output *Output, cfg *config.Config) error {
	output.Bold("KIS API")
	output.Printf("  Base URL:        %s\n", cfg.KIS.BaseURL)
	output.Printf("  Rate Limit:      %d req/s\n", cfg.KIS.RateLimit)
	output.Printf("  Timeout:         %s\n", cfg.KIS.Timeout)
	output.Printf("  App Key:         %s\n", maskOrEmpty(cfg.Credentials.KIS.AppKey))
	output.Println()

	output.Bold("Server")
	output.Printf("  Listen:          %s\n", cfg.ListenAddr())
	output.Printf("  Display Host:    %s\n", cfg.Server.DisplayHost)
	output.Printf("  Poll Interval:   %s\n", cfg.Server.PollInterval)
	output.Printf("  Refresh:         %s\n", fallback(cfg.Server.RefreshSchedule, "disabled"))
	output.Println()

	output.Bold("Store")
	output.Printf("  Backend:         %s\n", cfg.Store.Backend)
	output.Printf("  Path:            %s\n", cfg.Store.Path)
	output.Println()

	output.Bold("Valuation")
	output.Printf("  Concurrency:     %d\n", cfg.Valuation.Concurrency)
	output.Printf("  Timezone:        %s\n", cfg.Valuation.Timezone)

	return nil
}

func fallback(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func maskOrEmpty(s string) string {
	if s == "" {
		return "(not set)"
	}
	return security.MaskCredential(s)
}
