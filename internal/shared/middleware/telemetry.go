package middleware

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Telemetry records the standard otelhttp server metrics and spans.
func Telemetry(next http.Handler) http.Handler {
	return otelhttp.NewMiddleware("finsync-api")(next)
}
