package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"frc-research/internal/chart"
	"frc-research/internal/coverage"
	"frc-research/internal/errors"
	"frc-research/internal/metrics"
	"frc-research/internal/models"
	"frc-research/pkg/utils"
)

const loadTimeout = 60 * time.Second

// addCompanyCommands adds the company data commands.
func addCompanyCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newViewCmd(app))
	rootCmd.AddCommand(newChartCmd(app))
	rootCmd.AddCommand(newMetricsCmd(app))
	rootCmd.AddCommand(newCoverageCmd(app))
}

// loadView loads the company view and reports a load failure through output.
func (a *App) loadView(cmd *cobra.Command, output *Output, ticker string) (*models.CompanyView, error) {
	ctx, cancel := context.WithTimeout(cmd.Context(), loadTimeout)
	defer cancel()

	v, err := a.Loader.LoadCompanyView(ctx, ticker)
	if err != nil {
		switch {
		case errors.IsNotFound(err):
			output.Error("No FRC coverage found for %s", strings.ToUpper(ticker))
		case errors.IsTransport(err):
			output.Error("Research API unavailable: %v", err)
		default:
			output.Error("Failed to load %s: %v", strings.ToUpper(ticker), err)
		}
		return nil, err
	}
	return v, nil
}

func newViewCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "view <ticker>",
		Short: "Show the full company view",
		Long: `Load the company profile, price/volume chart, report metrics, coverage impact
and research analysis for a ticker.

Sections that failed to load are marked unavailable; sections with no data yet
are marked as such. Only a missing company or an unreachable API fails the command.`,
		Example: `  frc view ACME
  frc view acme --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			v, err := app.loadView(cmd, output, args[0])
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(v)
			}
			displayView(output, v)
			return nil
		},
	}
	return cmd
}

func displayView(output *Output, v *models.CompanyView) {
	c := v.Company
	title := c.Ticker
	if c.Name != "" {
		title = fmt.Sprintf("%s  %s", c.Name, c.Ticker)
	}

	lines := []string{
		fmt.Sprintf("Exchange:  %s (%s)", orDash(c.Exchange), c.Currency),
		fmt.Sprintf("Sector:    %s", orDash(c.Sector)),
		fmt.Sprintf("Industry:  %s", orDash(c.Industry)),
		fmt.Sprintf("Reports:   %d", c.ReportsCount),
		fmt.Sprintf("Status:    %s", c.Status),
	}
	output.Box(title, lines)
	output.Println()

	output.Bold("Sections")
	output.Printf("  Chart:     %s\n", output.Section(v.Sections.Chart))
	output.Printf("  Metrics:   %s\n", output.Section(v.Sections.Metrics))
	output.Printf("  Analysis:  %s\n", output.Section(v.Sections.Analysis))
	output.Printf("  Coverage:  %s\n", output.Section(v.Sections.Coverage))
	output.Println()

	if sum := chart.Summarize(v.Chart); sum != nil {
		displayChartSummary(output, sum, v.Chart.Currency)
		output.Println()
	}

	if len(v.Coverage) > 0 {
		output.Bold("Coverage Impact")
		displayWindows(output, v.Coverage)
		output.Println()
	}

	if sum := metrics.Summarize(v.Metrics); sum != nil {
		output.Bold("Report Metrics")
		output.Printf("  Reports:             %d\n", sum.Reports)
		output.Printf("  Avg 30-day price:    %s\n", output.Change(&sum.AvgPriceChange30DayPct))
		output.Printf("  Avg volume change:   %s\n", output.Change(&sum.AvgVolumeChangePct))
		output.Println()
	}

	if a := v.Analysis; a != nil {
		output.Bold("Analysis (%s)", a.Kind)
		if a.Summary != "" {
			output.Printf("  %s\n", a.Summary)
		}
		for _, h := range a.Highlights {
			output.Printf("  • %s\n", h)
		}
		if !a.GeneratedAt.IsZero() {
			output.Dim("  Generated: %s", a.GeneratedAt.Format("2006-01-02 15:04"))
		}
		output.Println()
	}

	output.Dim("Loaded %s", v.LoadedAt.Format("2006-01-02 15:04:05"))
}

func newChartCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chart <ticker>",
		Short: "Show the price/volume series",
		Long: `Show the daily price line and volume bars for a ticker.

With --json the renderer figure is printed: a price trace on the left axis and a
volume bar trace on its own panel, sharing the date axis.`,
		Example: `  frc chart ACME
  frc chart ACME --points 30
  frc chart ACME --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			v, err := app.loadView(cmd, output, args[0])
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"ticker":  v.Company.Ticker,
					"state":   v.Sections.Chart,
					"figure":  chart.Figure(v.Chart),
					"summary": chart.Summarize(v.Chart),
				})
			}

			if v.Chart.Len() == 0 {
				output.Warning("No chart data for %s (%s)", v.Company.Ticker, v.Sections.Chart)
				return nil
			}

			displayChartSummary(output, chart.Summarize(v.Chart), v.Chart.Currency)
			if v.Chart.IsPassthrough() {
				output.Dim("Pre-built figure from upstream; --json prints it unchanged.")
			}
			output.Println()

			n, _ := cmd.Flags().GetInt("points")
			points := v.Chart.Points
			if n > 0 && n < len(points) {
				points = points[len(points)-n:]
			}
			table := NewTable(output, "DATE", "PRICE", "VOLUME")
			for _, p := range points {
				price := "-"
				if p.HasPrice() {
					price = utils.FormatCurrency(p.Price.Decimal.InexactFloat64(), v.Chart.Currency)
				}
				table.AddRow(p.Date.Format(models.DateLayout), price, utils.FormatVolume(p.Volume))
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().IntP("points", "n", 20, "number of most recent points to list (0 for all)")

	return cmd
}

func displayChartSummary(output *Output, sum *chart.Summary, currency string) {
	if sum == nil {
		return
	}
	output.Bold("Price (%s)", currency)
	output.Printf("  Range:     %s to %s (%d days)\n", sum.FirstDate, sum.LastDate, sum.Points)
	output.Printf("  Last:      %s  %s\n", utils.FormatCurrency(sum.LastPrice, currency), output.Change(sum.ChangePct))
	output.Printf("  Low/High:  %s / %s\n", utils.FormatCurrency(sum.MinPrice, currency), utils.FormatCurrency(sum.MaxPrice, currency))
	output.Printf("  Avg Vol:   %s\n", utils.FormatCompact(sum.AvgVolume))
}

func newMetricsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "metrics <ticker>",
		Short: "Show per-report performance metrics",
		Long: `Show the price and volume performance of each published report.

Records are listed in source order; --timeline sorts them by publication date.`,
		Example: `  frc metrics ACME
  frc metrics ACME --timeline`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			v, err := app.loadView(cmd, output, args[0])
			if err != nil {
				return err
			}

			records := v.Metrics
			if timeline, _ := cmd.Flags().GetBool("timeline"); timeline && records != nil {
				records = metrics.Timeline(records)
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"ticker":  v.Company.Ticker,
					"state":   v.Sections.Metrics,
					"source":  v.MetricsSource,
					"records": records,
					"summary": metrics.Summarize(v.Metrics),
				})
			}

			switch {
			case v.Sections.Metrics == models.SectionUnavailable:
				output.Warning("Metrics for %s are temporarily unavailable", v.Company.Ticker)
				return nil
			case len(records) == 0:
				output.Info("No report metrics for %s yet", v.Company.Ticker)
				return nil
			}

			output.Bold("%s report metrics", v.Company.Ticker)
			output.Dim("Source: %s", v.MetricsSource)
			output.Println()

			table := NewTable(output, "PUBLISHED", "REPORT", "RELEASE", "+30D", "30D CHG", "VOL CHG")
			for _, r := range records {
				published := "-"
				if r.HasPublicationDate() {
					published = r.PublicationDate.Format(models.DateLayout)
				}
				table.AddRow(
					published,
					truncate(orDash(r.ReportTitle), 40),
					utils.FormatCurrency(r.PriceOnRelease, v.Company.Currency),
					utils.FormatCurrency(r.PriceAfter30Days, v.Company.Currency),
					output.Change(&r.PriceChange30DayPct),
					output.Change(&r.VolumeChangePrePost30DayPct),
				)
			}
			table.Render()

			if sum := metrics.Summarize(v.Metrics); sum != nil {
				output.Println()
				output.Printf("Average 30-day price change: %s\n", output.Change(&sum.AvgPriceChange30DayPct))
				output.Printf("Average volume change:       %s\n", output.Change(&sum.AvgVolumeChangePct))
			}
			return nil
		},
	}

	cmd.Flags().Bool("timeline", false, "sort records by publication date")

	return cmd
}

func newCoverageCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "coverage <ticker>",
		Short: "Show price and volume impact around coverage",
		Long: `Compare mean price and volume in the N trading days before and after the first
report, for the standard windows or a single --window. Per-report windows are
anchored at each report's own publication date.`,
		Example: `  frc coverage ACME
  frc coverage ACME --window 30`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			window, _ := cmd.Flags().GetInt("window")
			if window < 0 {
				err := errors.NewValidationError("window", window, "must be a positive number of days")
				output.Error("%v", err)
				return err
			}

			v, err := app.loadView(cmd, output, args[0])
			if err != nil {
				return err
			}

			windows, reports := v.Coverage, v.ReportCoverage
			if window > 0 {
				windows, err = coverage.OverallImpact(v.Chart, v.ReportDates, []int{window})
				if err != nil {
					output.Warning("Cannot compute coverage impact for %s: %v", v.Company.Ticker, err)
					return err
				}
				reports = coverage.PerReport(v.Chart, metrics.Dated(v.Metrics), window)
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"ticker":  v.Company.Ticker,
					"state":   v.Sections.Coverage,
					"windows": windows,
					"reports": reports,
				})
			}

			if len(windows) == 0 {
				output.Warning("No coverage impact for %s (%s)", v.Company.Ticker, v.Sections.Coverage)
				return nil
			}

			output.Bold("%s coverage impact", v.Company.Ticker)
			output.Dim("Anchored at first report %s", windows[0].AnchorDate.Format(models.DateLayout))
			output.Println()
			displayWindows(output, windows)

			if len(reports) > 0 {
				output.Println()
				output.Bold("Per report")
				table := NewTable(output, "REPORT", "ANCHOR", "PRICE", "VOLUME", "NOTE")
				for _, rc := range reports {
					if rc.Stats == nil {
						table.AddRow(rc.ReportID, "-", "-", "-", output.DimText(rc.Gap))
						continue
					}
					table.AddRow(
						rc.ReportID,
						rc.Stats.AnchorDate.Format(models.DateLayout),
						output.Change(rc.Stats.PriceChangePct),
						output.Change(rc.Stats.VolumeChangePct),
						"",
					)
				}
				table.Render()
			}
			return nil
		},
	}

	cmd.Flags().IntP("window", "w", 0, "single window in trading days (default: standard windows)")

	return cmd
}

func displayWindows(output *Output, windows []models.CoverageWindowStats) {
	table := NewTable(output, "WINDOW", "AVG PRICE", "PRICE CHG", "AVG VOLUME", "VOLUME CHG")
	for _, w := range windows {
		table.AddRow(
			fmt.Sprintf("%dd", w.WindowDays),
			fmt.Sprintf("%.4g → %.4g", w.AvgPriceBefore, w.AvgPriceAfter),
			output.Change(w.PriceChangePct),
			fmt.Sprintf("%s → %s", utils.FormatCompact(w.AvgVolumeBefore), utils.FormatCompact(w.AvgVolumeAfter)),
			output.Change(w.VolumeChangePct),
		)
	}
	table.Render()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// truncate shortens s to maxLen runes.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
