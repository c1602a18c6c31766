package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"frc-research/internal/errors"
	"frc-research/internal/models"
	"frc-research/internal/store"
)

// addSnapshotCommands adds snapshot store commands.
func addSnapshotCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:     "snapshots",
		Aliases: []string{"snap"},
		Short:   "Stored company view snapshots",
		Long: `Save, list and inspect company views stored in the local SQLite database.
Snapshots are written by 'snapshots save' and by the 'watch' scheduler.`,
	}

	cmd.AddCommand(newSnapshotSaveCmd(app))
	cmd.AddCommand(newSnapshotListCmd(app))
	cmd.AddCommand(newSnapshotShowCmd(app))
	cmd.AddCommand(newSnapshotHistoryCmd(app))

	rootCmd.AddCommand(cmd)
}

func (a *App) requireStore(output *Output) error {
	if a.Store == nil {
		output.Error("Snapshot store not available. Check [store] in %s", a.Config.ConfigPath())
		return fmt.Errorf("store not configured")
	}
	return nil
}

func newSnapshotSaveCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "save <ticker>",
		Short:   "Load a company view and store it",
		Example: `  frc snapshots save ACME`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.requireStore(output); err != nil {
				return err
			}

			v, err := app.loadView(cmd, output, args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			snap, err := app.Store.SaveSnapshot(ctx, v)
			if err != nil {
				output.Error("Failed to save snapshot: %v", err)
				return err
			}
			if err := app.Store.SaveMetrics(ctx, v.Company.Ticker, v.Metrics); err != nil {
				app.Logger.Warn().Err(err).Msg("Failed to save metrics history")
			}
			if err := app.Store.SetLastSync(v.Company.Ticker, v.LoadedAt); err != nil {
				app.Logger.Warn().Err(err).Msg("Failed to record sync time")
			}

			if output.IsJSON() {
				return output.JSON(snap.SnapshotInfo)
			}
			output.Success("Saved snapshot %s for %s", snap.ID, snap.Ticker)
			return nil
		},
	}
}

func newSnapshotListCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored snapshots",
		Example: `  frc snapshots list
  frc snapshots list --ticker ACME --since 168h`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.requireStore(output); err != nil {
				return err
			}

			ticker, _ := cmd.Flags().GetString("ticker")
			limit, _ := cmd.Flags().GetInt("limit")
			since, _ := cmd.Flags().GetDuration("since")

			filter := store.SnapshotFilter{Ticker: ticker, Limit: limit}
			if since > 0 {
				filter.Since = time.Now().Add(-since)
			}

			snaps, err := app.Store.ListSnapshots(cmd.Context(), filter)
			if err != nil {
				output.Error("Failed to list snapshots: %v", err)
				return err
			}

			if output.IsJSON() {
				if snaps == nil {
					snaps = []store.SnapshotInfo{}
				}
				return output.JSON(snaps)
			}
			if len(snaps) == 0 {
				output.Info("No snapshots stored")
				return nil
			}

			table := NewTable(output, "ID", "TICKER", "CREATED", "REPORTS", "CHART", "METRICS", "COVERAGE")
			for _, s := range snaps {
				table.AddRow(
					s.ID,
					s.Ticker,
					s.CreatedAt.Local().Format("2006-01-02 15:04"),
					fmt.Sprintf("%d", s.Reports),
					string(s.Sections.Chart),
					string(s.Sections.Metrics),
					string(s.Sections.Coverage),
				)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().StringP("ticker", "t", "", "only snapshots of this ticker")
	cmd.Flags().IntP("limit", "l", 20, "maximum number of snapshots")
	cmd.Flags().Duration("since", 0, "only snapshots newer than this (e.g. 24h)")

	return cmd
}

func newSnapshotShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id|ticker>",
		Short: "Show a stored snapshot",
		Long:  "Show a snapshot by ID, or the latest snapshot of a ticker.",
		Example: `  frc snapshots show 3f2b8c1e-...
  frc snapshots show ACME`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.requireStore(output); err != nil {
				return err
			}

			snap, err := findSnapshot(cmd.Context(), app.Store, args[0])
			if err != nil {
				if errors.IsNotFound(err) {
					output.Error("No snapshot found for %s", args[0])
				} else {
					output.Error("Failed to read snapshot: %v", err)
				}
				return err
			}

			if output.IsJSON() {
				return output.JSON(snap)
			}
			output.Dim("Snapshot %s taken %s", snap.ID, snap.CreatedAt.Local().Format("2006-01-02 15:04:05"))
			output.Println()
			displayView(output, snap.View)
			return nil
		},
	}
}

// findSnapshot resolves ref as a snapshot ID first, then as a ticker.
func findSnapshot(ctx context.Context, ds store.DataStore, ref string) (*store.Snapshot, error) {
	snap, err := ds.GetSnapshot(ctx, ref)
	if err == nil || !errors.IsNotFound(err) {
		return snap, err
	}
	return ds.LatestSnapshot(ctx, ref)
}

func newSnapshotHistoryCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "history <ticker>",
		Short:   "Show stored report metrics for a ticker",
		Example: `  frc snapshots history ACME`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.requireStore(output); err != nil {
				return err
			}

			ticker := models.NormalizeTicker(args[0])
			records, err := app.Store.GetMetrics(cmd.Context(), ticker)
			if err != nil {
				output.Error("Failed to read metrics history: %v", err)
				return err
			}
			lastSync := app.Store.GetLastSync(ticker)

			if output.IsJSON() {
				if records == nil {
					records = []models.MetricsRecord{}
				}
				return output.JSON(map[string]interface{}{
					"ticker":    ticker,
					"last_sync": lastSync,
					"records":   records,
				})
			}

			if len(records) == 0 {
				output.Info("No stored metrics for %s", ticker)
				return nil
			}
			table := NewTable(output, "PUBLISHED", "REPORT ID", "30D CHG", "VOL CHG")
			for _, r := range records {
				published := "-"
				if r.HasPublicationDate() {
					published = r.PublicationDate.Format(models.DateLayout)
				}
				table.AddRow(published, r.ReportID, output.Change(&r.PriceChange30DayPct), output.Change(&r.VolumeChangePrePost30DayPct))
			}
			table.Render()
			if !lastSync.IsZero() {
				output.Println()
				output.Dim("Last synced %s", lastSync.Local().Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
}
