/*
Package metrics exposes Prometheus metrics for the console's API traffic,
deployments and log channels.

Collectors are registered at init time; Handler returns the promhttp
handler for serving them. Metric names carry the console_ prefix:

	console_api_requests_total{method,outcome}
	console_api_errors_total{kind}
	console_deploys_total{outcome}
	console_deploy_ticks_total
	console_deploy_duration_seconds
	console_log_lines_total{mode}
	console_stream_fallbacks_total
*/
package metrics
