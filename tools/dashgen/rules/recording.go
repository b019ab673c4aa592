package rules

// RecordingRules returns a PrometheusRule CR containing pre-computed rate
// expressions used by dashboards and alert rules.
func RecordingRules() PrometheusRule {
	return newPrometheusRule("restock-recording-rules", RuleGroup{
		Name: "restock-recording",
		Rules: []Rule{
			{
				Record: "restock:http_requests:rate5m",
				Expr:   `sum(rate(restock_http_requests_total[5m]))`,
			},
			{
				Record: "restock:http_errors:rate5m",
				Expr:   `sum(rate(restock_http_requests_total{status=~"5.."}[5m]))`,
			},
			{
				Record: "restock:checker_failures:rate5m",
				Expr:   `sum(rate(restock_checker_runs_total{status="error"}[5m])) by (checker)`,
			},
			{
				Record: "restock:source_requests:rate5m",
				Expr:   `sum(rate(restock_source_requests_total[5m])) by (source, status)`,
			},
			{
				Record: "restock:changes:rate5m",
				Expr:   `sum(rate(restock_changes_total[5m])) by (source, available)`,
			},
			{
				Record: "restock:sms_sent:rate5m",
				Expr:   `rate(restock_sms_sent_total[5m])`,
			},
			{
				Record: "restock:sms_failures:rate5m",
				Expr:   `rate(restock_sms_failures_total[5m])`,
			},
			{
				Record: "restock:notification_duration:p95_5m",
				Expr:   `histogram_quantile(0.95, sum(rate(restock_notification_duration_seconds_bucket[5m])) by (le))`,
			},
			{
				Record: "restock:store_lock_wait:p95_5m",
				Expr:   `histogram_quantile(0.95, sum(rate(restock_store_lock_wait_seconds_bucket[5m])) by (le, document))`,
			},
		},
	})
}
