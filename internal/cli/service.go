package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"frc-research/internal/config"
	"frc-research/internal/scheduler"
	"frc-research/internal/server"
)

// addServiceCommands adds the long-running commands.
func addServiceCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newWatchCmd(app))
	rootCmd.AddCommand(newServeCmd(app))
}

func (a *App) newWatcher(tickers []string) *scheduler.Watcher {
	var sink scheduler.SnapshotSink
	if a.Store != nil {
		sink = a.Store
	}
	return scheduler.NewWatcher(a.Loader, sink, tickers, a.Config.Watch.Workers, a.Logger)
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func newWatchCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [tickers...]",
		Short: "Refresh a watchlist on a schedule",
		Long: `Reload the company view of each watched ticker on the configured cron schedule
and store a snapshot of each. Tickers default to [watch].tickers in config.toml.`,
		Example: `  frc watch
  frc watch ACME BETA --once
  frc watch --schedule "@every 6h"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			tickers := args
			if len(tickers) == 0 {
				tickers = app.Config.Watch.Tickers
			}
			if len(tickers) == 0 {
				output.Error("No tickers to watch. Pass tickers or set [watch].tickers in %s", app.Config.ConfigPath())
				return fmt.Errorf("empty watchlist")
			}
			w := app.newWatcher(tickers)

			if once, _ := cmd.Flags().GetBool("once"); once {
				run := w.RefreshAll(cmd.Context())
				return reportRun(output, run)
			}

			spec, _ := cmd.Flags().GetString("schedule")
			if spec == "" {
				spec = app.Config.Watch.Schedule
			}
			sched, err := config.ParseSchedule(spec)
			if err != nil {
				output.Error("Invalid schedule %q: %v", spec, err)
				return err
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			w.Register(ctx, sched)
			w.Start()
			if !output.IsJSON() {
				output.Info("Watching %d tickers, next refresh %s", len(w.Tickers()), w.Next().Local().Format("2006-01-02 15:04:05"))
				output.Dim("Press Ctrl+C to stop")
			}

			<-ctx.Done()
			w.Stop()
			return nil
		},
	}

	cmd.Flags().String("schedule", "", "cron schedule (default: [watch].schedule)")
	cmd.Flags().Bool("once", false, "refresh once and exit")

	return cmd
}

func reportRun(output *Output, run scheduler.RunResult) error {
	if output.IsJSON() {
		type row struct {
			scheduler.TickerResult
			Error string `json:"error,omitempty"`
		}
		rows := make([]row, len(run.Results))
		for i, r := range run.Results {
			rows[i] = row{TickerResult: r}
			if r.Err != nil {
				rows[i].Error = r.Err.Error()
			}
		}
		if err := output.JSON(map[string]interface{}{"started_at": run.StartedAt, "results": rows}); err != nil {
			return err
		}
	} else {
		table := NewTable(output, "TICKER", "SNAPSHOT", "CHART", "METRICS", "RESULT")
		for _, r := range run.Results {
			result := output.Green("ok")
			if r.Err != nil {
				result = output.Red(truncate(r.Err.Error(), 60))
			}
			table.AddRow(r.Ticker, orDash(r.SnapshotID), orDash(string(r.Sections.Chart)), orDash(string(r.Sections.Metrics)), result)
		}
		table.Render()
	}

	if failed := run.Failed(); failed > 0 {
		return fmt.Errorf("%d of %d tickers failed", failed, len(run.Results))
	}
	return nil
}

func newServeCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve company views as JSON",
		Long: `Start a read-only JSON API for the presentation layer:

  GET /api/companies/{ticker}/view
  GET /api/companies/{ticker}/chart
  GET /api/companies/{ticker}/metrics?timeline=true
  GET /api/companies/{ticker}/coverage?window=N
  GET /healthz

With --watch the watchlist scheduler runs alongside the server.`,
		Example: `  frc serve
  frc serve --addr :9090 --watch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			addr, _ := cmd.Flags().GetString("addr")
			if addr == "" {
				addr = app.Config.Server.Addr
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			if watch, _ := cmd.Flags().GetBool("watch"); watch && len(app.Config.Watch.Tickers) > 0 {
				sched, err := config.ParseSchedule(app.Config.Watch.Schedule)
				if err != nil {
					return err
				}
				w := app.newWatcher(app.Config.Watch.Tickers)
				w.Register(ctx, sched)
				w.Start()
				defer w.Stop()
			}

			srv := server.New(app.Loader, app.Client, server.Options{
				Addr:           addr,
				AllowedOrigins: app.Config.Server.AllowedOrigins,
				ReadTimeout:    app.Config.Server.ReadTimeout,
				WriteTimeout:   app.Config.Server.WriteTimeout,
			}, app.Logger)

			if !output.IsJSON() {
				output.Info("Serving on http://%s", addr)
			}
			return srv.ListenAndServe(ctx)
		},
	}

	cmd.Flags().String("addr", "", "listen address (default: [server].addr)")
	cmd.Flags().Bool("watch", false, "also run the watchlist scheduler")

	return cmd
}
