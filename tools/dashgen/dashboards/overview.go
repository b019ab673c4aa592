// Package dashboards assembles Grafana dashboard definitions from panel builders.
package dashboards

import (
	"github.com/grafana/grafana-foundation-sdk/go/dashboard"

	"github.com/donaldgifford/restock-tracker/tools/dashgen/panels"
)

// BuildOverview constructs the Restock Overview dashboard with all metric rows.
func BuildOverview() *dashboard.DashboardBuilder {
	b := dashboard.NewDashboardBuilder("Restock Overview").
		Uid("restock-overview").
		Tags([]string{"restock", "restock-tracker"}).
		Refresh("30s").
		Time("now-6h", "now").
		Timezone("browser").
		Editable().
		Tooltip(dashboard.DashboardCursorSyncCrosshair).
		WithVariable(datasourceVar())

	// Row 1: Overview.
	b.WithRow(dashboard.NewRowBuilder("Overview").
		WithPanel(panels.HealthzStat()).
		WithPanel(panels.ReadyzStat()).
		WithPanel(panels.SMSSentStat()).
		WithPanel(panels.UptimeStat()))

	// Row 2: HTTP.
	b.WithRow(dashboard.NewRowBuilder("HTTP").
		WithPanel(panels.RequestRate()).
		WithPanel(panels.LatencyPercentiles()).
		WithPanel(panels.ErrorRate()))

	// Row 3: Checkers.
	b.WithRow(dashboard.NewRowBuilder("Checkers").
		WithPanel(panels.CheckerRuns()).
		WithPanel(panels.CheckerDuration()).
		WithPanel(panels.CheckerFailures()))

	// Row 4: Sources.
	b.WithRow(dashboard.NewRowBuilder("Sources").
		WithPanel(panels.SourceRequests()).
		WithPanel(panels.ObservationsRate()).
		WithPanel(panels.DailyLimitHits()))

	// Row 5: Availability.
	b.WithRow(dashboard.NewRowBuilder("Availability").
		WithPanel(panels.ChangesRate()).
		WithPanel(panels.StaleKeysRemoved()))

	// Row 6: Storage.
	b.WithRow(dashboard.NewRowBuilder("Storage").
		WithPanel(panels.LockWait()).
		WithPanel(panels.CacheHitRate()).
		WithPanel(panels.CorruptReads()))

	// Row 7: Notifications.
	b.WithRow(dashboard.NewRowBuilder("Notifications").
		WithPanel(panels.SMSRate()).
		WithPanel(panels.SMSBlocked()).
		WithPanel(panels.NotificationLatency()).
		WithPanel(panels.AutoUnsubscribes()))

	return b
}

func datasourceVar() *dashboard.DatasourceVariableBuilder {
	return dashboard.NewDatasourceVariableBuilder("datasource").
		Label("Datasource").
		Type("prometheus")
}
