package panels

import (
	"fmt"

	"github.com/grafana/grafana-foundation-sdk/go/common"
	"github.com/grafana/grafana-foundation-sdk/go/stat"
	"github.com/grafana/grafana-foundation-sdk/go/timeseries"
)

// SourceRequests returns a timeseries panel showing upstream requests by
// source, request kind and HTTP status.
func SourceRequests() *timeseries.PanelBuilder {
	return timeseries.NewPanelBuilder().
		Title("Upstream Requests").
		Description("Requests to product sources per second").
		Datasource(DSRef()).
		Height(TSHeight).
		Span(8).
		WithTarget(PromQuery(
			fmt.Sprintf(`sum(rate(restock_source_requests_total{job=%q}[5m])) by (source, kind, status)`, Job),
			"{{source}} {{kind}} {{status}}", "A",
		)).
		Unit("reqps").
		FillOpacity(10).
		LineWidth(2).
		Legend(TableLegend("mean", "max")).
		Tooltip(MultiTooltip()).
		Thresholds(ThresholdsGreenOnly()).
		ColorScheme(ColorSchemePaletteClassic()).
		DrawStyle(common.GraphDrawStyleLine)
}

// ObservationsRate returns a timeseries panel showing product observations
// applied per minute.
func ObservationsRate() *timeseries.PanelBuilder {
	return timeseries.NewPanelBuilder().
		Title("Observations / min").
		Description("Product observations applied to the state table per minute").
		Datasource(DSRef()).
		Height(TSHeight).
		Span(8).
		WithTarget(PromQuery(
			fmt.Sprintf(`sum(rate(restock_observations_total{job=%q}[5m])) by (source) * 60`, Job),
			"{{source}}", "A",
		)).
		FillOpacity(10).
		LineWidth(2).
		Thresholds(ThresholdsGreenOnly()).
		ColorScheme(ColorSchemePaletteClassic()).
		DrawStyle(common.GraphDrawStyleLine)
}

// DailyLimitHits returns a stat panel showing requests refused by a source
// daily limit in the last 24 hours.
func DailyLimitHits() *stat.PanelBuilder {
	return stat.NewPanelBuilder().
		Title("Daily Limit Hits (24h)").
		Description("Checks skipped because a source reached its daily request limit").
		Datasource(DSRef()).
		Height(TSHeight).
		Span(8).
		WithTarget(PromQuery(
			fmt.Sprintf(`sum(increase(restock_source_daily_limit_hits_total{job=%q}[24h]))`, Job),
			"", "A",
		)).
		Thresholds(ThresholdsGreenYellowRed(1, 3)).
		ColorScheme(ColorSchemeThresholds()).
		ColorMode(common.BigValueColorModeBackground).
		GraphMode(common.BigValueGraphModeArea)
}

// ChangesRate returns a timeseries panel showing availability transitions
// per hour, split into restocks and sell-outs.
func ChangesRate() *timeseries.PanelBuilder {
	return timeseries.NewPanelBuilder().
		Title("Availability Changes / h").
		Description("Restocks (available=true) and sell-outs (available=false) per hour").
		Datasource(DSRef()).
		Height(TSHeight).
		Span(TSWidth).
		WithTarget(PromQuery(
			fmt.Sprintf(`sum(rate(restock_changes_total{job=%q}[1h])) by (available) * 3600`, Job),
			"available={{available}}", "A",
		)).
		FillOpacity(10).
		LineWidth(2).
		DrawStyle(common.GraphDrawStyleBars).
		Tooltip(MultiTooltip()).
		Thresholds(ThresholdsGreenOnly()).
		ColorScheme(ColorSchemePaletteClassic())
}

// StaleKeysRemoved returns a timeseries panel showing product keys pruned
// from the state table.
func StaleKeysRemoved() *timeseries.PanelBuilder {
	return timeseries.NewPanelBuilder().
		Title("Stale Keys Removed").
		Description("Product keys removed because a source no longer lists them").
		Datasource(DSRef()).
		Height(TSHeight).
		Span(TSWidth).
		WithTarget(PromQuery(
			fmt.Sprintf(`sum(increase(restock_stale_keys_removed_total{job=%q}[1h])) by (source)`, Job),
			"{{source}}", "A",
		)).
		FillOpacity(10).
		LineWidth(2).
		Thresholds(ThresholdsGreenOnly()).
		ColorScheme(ColorSchemePaletteClassic()).
		DrawStyle(common.GraphDrawStyleLine)
}
