// Package cli provides the command-line interface for the research data service.
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"frc-research/internal/api"
	"frc-research/internal/config"
	"frc-research/internal/logging"
	"frc-research/internal/reconcile"
	"frc-research/internal/resilience"
	"frc-research/internal/security"
	"frc-research/internal/store"
	"frc-research/internal/view"
	"frc-research/pkg/utils"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2024-06-01"
)

// App holds the application dependencies. They are built after flags are parsed
// so --config and --debug take effect.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Client *api.Client
	Loader *view.Loader
	Store  store.DataStore
}

// Close releases resources held by the app.
func (a *App) Close() {
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close store")
		}
	}
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd() *cobra.Command {
	app := &App{Logger: zerolog.Nop()}

	rootCmd := &cobra.Command{
		Use:   "frc",
		Short: "FRC research data - company views, report metrics and coverage impact",
		Long: `frc loads company research data from the FRC research API and normalizes it
into a single company view: price/volume chart, per-report performance metrics,
coverage impact statistics and research analyses.

Use 'frc <command> --help' for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.initialize(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			app.Close()
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/frc-research)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	addCoreCommands(rootCmd, app)
	addCompanyCommands(rootCmd, app)
	addSnapshotCommands(rootCmd, app)
	addServiceCommands(rootCmd, app)

	return rootCmd
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// initialize loads configuration and wires the client, loader and store.
func (a *App) initialize(cmd *cobra.Command) error {
	switch cmd.Name() {
	case "version", "help", cobra.ShellCompRequestCmd:
		return nil
	}

	dir, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(dir)
	if err != nil {
		return err
	}
	a.Config = cfg

	logCfg := cfg.LogConfig()
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		logCfg.Level = "debug"
	}
	a.Logger = logging.NewLoggerWithConfig(logCfg)

	// config subcommands only need the loaded file
	if p := cmd.Parent(); p != nil && p.Name() == "config" {
		return nil
	}

	a.Client, err = newClient(cfg, a.Logger)
	if err != nil {
		return err
	}

	opts := []view.Option{
		view.WithWindows(cfg.Coverage.Windows),
		view.WithReportWindow(cfg.Coverage.ReportWindow),
		view.WithLogger(a.Logger),
	}
	if cfg.Coverage.FieldPaths != "" {
		table, err := reconcile.LoadTable(cfg.Coverage.FieldPaths)
		if err != nil {
			return fmt.Errorf("loading field paths: %w", err)
		}
		opts = append(opts, view.WithTable(table))
	}
	a.Loader = view.NewLoader(a.Client, opts...)

	if cfg.Store.Enabled {
		s, err := store.NewSQLiteStore(cfg.Store.Path)
		if err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to initialize store, snapshots unavailable")
		} else {
			a.Store = s
			a.Logger.Debug().Str("path", cfg.Store.Path).Msg("SQLite store initialized")
		}
	}
	return nil
}

func newClient(cfg *config.Config, logger zerolog.Logger) (*api.Client, error) {
	retry := utils.DefaultRetryConfig()
	retry.MaxAttempts = cfg.API.RetryAttempts
	retry.InitialDelay = cfg.API.RetryDelay

	breaker := resilience.DefaultCircuitBreakerConfig()
	breaker.FailureThreshold = cfg.API.BreakerThreshold
	breaker.Cooldown = cfg.API.BreakerCooldown

	opts := []api.ClientOption{
		api.WithTimeout(cfg.API.Timeout),
		api.WithRateLimit(cfg.API.RateLimit),
		api.WithRetry(retry),
		api.WithCircuitBreaker(breaker),
		api.WithLogger(logger),
	}
	if cfg.Credentials.APIToken != "" {
		opts = append(opts, api.WithStaticToken(cfg.Credentials.APIToken))
	}
	for kind, tmpl := range cfg.API.Endpoints {
		opts = append(opts, api.WithEndpoint(kind, tmpl))
	}
	return api.NewClient(cfg.API.BaseURL, opts...)
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
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			}
			output.Printf("frc v%s\n", Version)
			output.Dim("Build date: %s", BuildDate)
			return nil
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
				return output.JSON(redacted(app.Config))
			}
			showConfig(output, app.Config)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]string{"path": app.Config.ConfigPath()})
			}
			output.Println(app.Config.ConfigPath())
			return nil
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
				return output.JSON(map[string]bool{"valid": true})
			}
			output.Success("Configuration is valid")
			return nil
		},
	})

	return cmd
}

// redacted returns a copy of cfg safe to print.
func redacted(cfg *config.Config) config.Config {
	out := *cfg
	out.Credentials.APIToken = security.MaskCredential(out.Credentials.APIToken)
	return out
}

func showConfig(output *Output, cfg *config.Config) {
	output.Bold("API")
	output.Printf("  Base URL:        %s\n", cfg.API.BaseURL)
	output.Printf("  Timeout:         %s\n", cfg.API.Timeout)
	output.Printf("  Rate Limit:      %.1f req/s\n", cfg.API.RateLimit)
	output.Printf("  Retry Attempts:  %d\n", cfg.API.RetryAttempts)
	output.Printf("  Breaker:         %d failures, %s cooldown\n", cfg.API.BreakerThreshold, cfg.API.BreakerCooldown)
	output.Printf("  Token:           %s\n", yesNo(cfg.Credentials.APIToken != ""))
	output.Println()

	output.Bold("Coverage")
	windows := make([]string, len(cfg.Coverage.Windows))
	for i, w := range cfg.Coverage.Windows {
		windows[i] = fmt.Sprintf("%dd", w)
	}
	output.Printf("  Windows:         %s\n", strings.Join(windows, ", "))
	output.Printf("  Report Window:   %dd\n", cfg.Coverage.ReportWindow)
	output.Println()

	output.Bold("Store")
	output.Printf("  Enabled:         %v\n", cfg.Store.Enabled)
	output.Printf("  Path:            %s\n", cfg.Store.Path)
	output.Println()

	output.Bold("Watch")
	output.Printf("  Tickers:         %s\n", strings.Join(cfg.Watch.Tickers, ", "))
	output.Printf("  Schedule:        %s\n", cfg.Watch.Schedule)
	output.Printf("  Workers:         %d\n", cfg.Watch.Workers)
	output.Println()

	output.Bold("Logging")
	output.Printf("  Level:           %s\n", cfg.Logging.Level)
	output.Printf("  File:            %v\n", cfg.Logging.File)
}

func yesNo(b bool) string {
	if b {
		return "configured"
	}
	return "not set"
}
