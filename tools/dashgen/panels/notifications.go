package panels

import (
	"fmt"

	"github.com/grafana/grafana-foundation-sdk/go/common"
	"github.com/grafana/grafana-foundation-sdk/go/stat"
	"github.com/grafana/grafana-foundation-sdk/go/timeseries"
)

// SMSRate returns a timeseries panel showing delivered and failed messages
// per minute.
func SMSRate() *timeseries.PanelBuilder {
	return timeseries.NewPanelBuilder().
		Title("SMS / min").
		Description("Messages delivered and failed per minute").
		Datasource(DSRef()).
		Height(TSHeight).
		Span(StatWidth).
		WithTarget(PromQuery(`restock:sms_sent:rate5m * 60`, "sent", "A")).
		WithTarget(PromQuery(`restock:sms_failures:rate5m * 60`, "failed", "B")).
		FillOpacity(10).
		LineWidth(2).
		Tooltip(MultiTooltip()).
		Thresholds(ThresholdsGreenOnly()).
		ColorScheme(ColorSchemePaletteClassic()).
		DrawStyle(common.GraphDrawStyleLine)
}

// SMSBlocked returns a timeseries panel showing messages suppressed before
// reaching the provider, by reason.
func SMSBlocked() *timeseries.PanelBuilder {
	return timeseries.NewPanelBuilder().
		Title("SMS Suppressed").
		Description("Messages dropped by the blocklist or the daily cap").
		Datasource(DSRef()).
		Height(TSHeight).
		Span(StatWidth).
		WithTarget(PromQuery(
			fmt.Sprintf(`sum(increase(restock_sms_blocked_total{job=%q}[1h])) by (reason)`, Job),
			"{{reason}}", "A",
		)).
		FillOpacity(10).
		LineWidth(2).
		DrawStyle(common.GraphDrawStyleBars).
		Thresholds(ThresholdsGreenOnly()).
		ColorScheme(ColorSchemePaletteClassic())
}

// NotificationLatency returns a timeseries panel showing the p95 SMS
// provider latency.
func NotificationLatency() *timeseries.PanelBuilder {
	return timeseries.NewPanelBuilder().
		Title("Provider Latency (p95)").
		Description("95th percentile SMS provider call latency").
		Datasource(DSRef()).
		Height(TSHeight).
		Span(StatWidth).
		WithTarget(PromQuery(`restock:notification_duration:p95_5m`, "p95", "A")).
		Unit("s").
		FillOpacity(10).
		LineWidth(2).
		Thresholds(ThresholdsGreenYellowRed(1, 5)).
		ColorScheme(ColorSchemePaletteClassic()).
		DrawStyle(common.GraphDrawStyleLine)
}

// AutoUnsubscribes returns a stat panel showing subscriptions removed by the
// high-stock rule in the last 24 hours.
func AutoUnsubscribes() *stat.PanelBuilder {
	return stat.NewPanelBuilder().
		Title("Auto-unsubscribes (24h)").
		Description("Subscriptions removed after a high-stock restock was notified").
		Datasource(DSRef()).
		Height(TSHeight).
		Span(StatWidth).
		WithTarget(PromQuery(
			fmt.Sprintf(`sum(increase(restock_auto_unsubscribes_total{job=%q}[24h]))`, Job),
			"", "A",
		)).
		Thresholds(ThresholdsGreenOnly()).
		ColorScheme(ColorSchemeThresholds()).
		GraphMode(common.BigValueGraphModeArea)
}
