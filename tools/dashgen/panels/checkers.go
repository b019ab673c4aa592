package panels

import (
	"fmt"

	"github.com/grafana/grafana-foundation-sdk/go/common"
	"github.com/grafana/grafana-foundation-sdk/go/stat"
	"github.com/grafana/grafana-foundation-sdk/go/timeseries"
)

// CheckerRuns returns a timeseries panel showing checker iterations per
// minute by checker and outcome.
func CheckerRuns() *timeseries.PanelBuilder {
	return timeseries.NewPanelBuilder().
		Title("Checker Runs / min").
		Description("Checker iterations per minute by outcome").
		Datasource(DSRef()).
		Height(TSHeight).
		Span(8).
		WithTarget(PromQuery(
			fmt.Sprintf(`sum(rate(restock_checker_runs_total{job=%q}[5m])) by (checker, status) * 60`, Job),
			"{{checker}} {{status}}", "A",
		)).
		FillOpacity(10).
		LineWidth(2).
		Legend(TableLegend("mean", "max")).
		Tooltip(MultiTooltip()).
		Thresholds(ThresholdsGreenOnly()).
		ColorScheme(ColorSchemePaletteClassic()).
		DrawStyle(common.GraphDrawStyleLine)
}

// CheckerDuration returns a timeseries panel showing the p95 check cycle
// duration per checker.
func CheckerDuration() *timeseries.PanelBuilder {
	return timeseries.NewPanelBuilder().
		Title("Check Duration (p95)").
		Description("95th percentile check cycle duration per checker").
		Datasource(DSRef()).
		Height(TSHeight).
		Span(8).
		WithTarget(PromQuery(P95("restock_checker_duration_seconds_bucket", "checker"), "{{checker}}", "A")).
		Unit("s").
		FillOpacity(10).
		LineWidth(2).
		Tooltip(MultiTooltip()).
		Thresholds(ThresholdsGreenOnly()).
		ColorScheme(ColorSchemePaletteClassic()).
		DrawStyle(common.GraphDrawStyleLine)
}

// CheckerFailures returns a stat panel showing failed checker iterations in
// the last hour.
func CheckerFailures() *stat.PanelBuilder {
	return stat.NewPanelBuilder().
		Title("Checker Failures (1h)").
		Description("Failed checker iterations in the last hour").
		Datasource(DSRef()).
		Height(TSHeight).
		Span(8).
		WithTarget(PromQuery(
			fmt.Sprintf(`sum(increase(restock_checker_runs_total{job=%q,status="error"}[1h]))`, Job),
			"", "A",
		)).
		Thresholds(ThresholdsGreenYellowRed(1, 10)).
		ColorScheme(ColorSchemeThresholds()).
		ColorMode(common.BigValueColorModeBackground).
		GraphMode(common.BigValueGraphModeArea)
}
