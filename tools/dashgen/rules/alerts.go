package rules

// AlertRules returns a PrometheusRule CR containing alert rules for
// restock-tracker operational monitoring.
func AlertRules() PrometheusRule {
	return newPrometheusRule("restock-alerts", RuleGroup{
		Name: "restock-alerts",
		Rules: []Rule{
			{
				Alert: "RestockDown",
				Expr:  `absent(up{job="restock-tracker"})`,
				For:   "2m",
				Labels: map[string]string{
					"severity": "critical",
				},
				Annotations: map[string]string{
					"summary":     "Restock tracker is down",
					"description": "The restock-tracker job has been absent for more than 2 minutes.",
				},
			},
			{
				Alert: "RestockReadinessDown",
				Expr:  `restock_readyz_up == 0`,
				For:   "2m",
				Labels: map[string]string{
					"severity": "critical",
				},
				Annotations: map[string]string{
					"summary":     "Restock tracker readiness check is failing",
					"description": "The state document has been unreadable for more than 2 minutes.",
				},
			},
			{
				Alert: "RestockHighErrorRate",
				Expr:  `restock:http_errors:rate5m / restock:http_requests:rate5m > 0.05`,
				For:   "5m",
				Labels: map[string]string{
					"severity": "warning",
				},
				Annotations: map[string]string{
					"summary":     "High HTTP error rate on the restock tracker API",
					"description": "More than 5% of HTTP requests are returning 5xx errors over the last 5 minutes.",
				},
			},
			{
				Alert: "RestockCheckerFailing",
				Expr:  `restock:checker_failures:rate5m > 0`,
				For:   "15m",
				Labels: map[string]string{
					"severity": "warning",
				},
				Annotations: map[string]string{
					"summary":     "Checker {{ $labels.checker }} is failing",
					"description": "Check cycles for {{ $labels.checker }} have been failing for more than 15 minutes.",
				},
			},
			{
				Alert: "RestockCheckerStalled",
				Expr:  `sum(increase(restock_checker_runs_total[30m])) by (checker) == 0`,
				For:   "5m",
				Labels: map[string]string{
					"severity": "warning",
				},
				Annotations: map[string]string{
					"summary":     "Checker {{ $labels.checker }} has stopped running",
					"description": "No check cycles completed for {{ $labels.checker }} in the last 30 minutes.",
				},
			},
			{
				Alert: "RestockSourceLimitReached",
				Expr:  `increase(restock_source_daily_limit_hits_total[5m]) > 0`,
				For:   "0m",
				Labels: map[string]string{
					"severity": "warning",
				},
				Annotations: map[string]string{
					"summary":     "Source {{ $labels.source }} reached its daily request limit",
					"description": "Checks for {{ $labels.source }} are paused until the limit resets at midnight UTC.",
				},
			},
			{
				Alert: "RestockSMSFailures",
				Expr:  `restock:sms_failures:rate5m > 0`,
				For:   "5m",
				Labels: map[string]string{
					"severity": "warning",
				},
				Annotations: map[string]string{
					"summary":     "SMS delivery failures detected",
					"description": "Restock notifications have been failing to send for more than 5 minutes.",
				},
			},
			{
				Alert: "RestockSMSDailyCapReached",
				Expr:  `increase(restock_sms_blocked_total{reason="daily_cap"}[5m]) > 0`,
				For:   "0m",
				Labels: map[string]string{
					"severity": "critical",
				},
				Annotations: map[string]string{
					"summary":     "SMS daily cap reached",
					"description": "Restock notifications are being dropped until the daily send cap resets.",
				},
			},
			{
				Alert: "RestockCorruptDocument",
				Expr:  `increase(restock_store_corrupt_reads_total[15m]) > 0`,
				For:   "0m",
				Labels: map[string]string{
					"severity": "critical",
				},
				Annotations: map[string]string{
					"summary":     "Data document {{ $labels.document }} could not be parsed",
					"description": "Reads of {{ $labels.document }} are falling back to the default; the next write will replace it.",
				},
			},
		},
	})
}
