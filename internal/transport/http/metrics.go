package httptransport

import "expvar"

var (
	metricRequestErrors = expvar.NewInt("http_request_errors_total")
	metricAuthFailures  = expvar.NewInt("http_auth_failures_total")
	metricRateLimited   = expvar.NewInt("http_rate_limited_total")
)
