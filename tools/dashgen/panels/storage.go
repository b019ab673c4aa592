package panels

import (
	"fmt"

	"github.com/grafana/grafana-foundation-sdk/go/common"
	"github.com/grafana/grafana-foundation-sdk/go/stat"
	"github.com/grafana/grafana-foundation-sdk/go/timeseries"
)

// LockWait returns a timeseries panel showing the p95 time spent waiting for
// a document lock.
func LockWait() *timeseries.PanelBuilder {
	return timeseries.NewPanelBuilder().
		Title("Lock Wait (p95)").
		Description("95th percentile wait for an exclusive document lock").
		Datasource(DSRef()).
		Height(TSHeight).
		Span(8).
		WithTarget(PromQuery(`restock:store_lock_wait:p95_5m`, "{{document}}", "A")).
		Unit("s").
		FillOpacity(10).
		LineWidth(2).
		Tooltip(MultiTooltip()).
		Thresholds(ThresholdsGreenYellowRed(0.5, 2)).
		ColorScheme(ColorSchemePaletteClassic()).
		DrawStyle(common.GraphDrawStyleLine)
}

// CacheHitRate returns a timeseries panel showing document reads served from
// the mtime cache.
func CacheHitRate() *timeseries.PanelBuilder {
	return timeseries.NewPanelBuilder().
		Title("Cache Hits").
		Description("Document reads served from the in-memory cache per second").
		Datasource(DSRef()).
		Height(TSHeight).
		Span(8).
		WithTarget(PromQuery(fmt.Sprintf(`rate(restock_store_cache_hits_total{job=%q}[5m])`, Job), "hits/s", "A")).
		Unit("ops").
		FillOpacity(10).
		LineWidth(2).
		Thresholds(ThresholdsGreenOnly()).
		ColorScheme(ColorSchemePaletteClassic()).
		DrawStyle(common.GraphDrawStyleLine)
}

// CorruptReads returns a stat panel showing reads that fell back to a
// default document in the last 24 hours.
func CorruptReads() *stat.PanelBuilder {
	return stat.NewPanelBuilder().
		Title("Corrupt Reads (24h)").
		Description("Document reads that could not be parsed and fell back to the default").
		Datasource(DSRef()).
		Height(TSHeight).
		Span(8).
		WithTarget(PromQuery(
			fmt.Sprintf(`sum(increase(restock_store_corrupt_reads_total{job=%q}[24h]))`, Job),
			"", "A",
		)).
		Thresholds(ThresholdsGreenYellowRed(1, 5)).
		ColorScheme(ColorSchemeThresholds()).
		ColorMode(common.BigValueColorModeBackground).
		GraphMode(common.BigValueGraphModeNone)
}
