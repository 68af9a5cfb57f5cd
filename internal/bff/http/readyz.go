package http

import (
	"net/http"
	"time"

	"github.com/envention/union/pkg/authsdk"
	"github.com/envention/union/pkg/httpx"
)

// ReadyzHandler reports ready once IdP signing keys are loaded, trying to
// load them if they are not. Without keys no login can succeed.
func ReadyzHandler(startTime time.Time, version string, keys KeyStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := &authsdk.HealthChecks{JWKS: "ok"}
		overallStatus := "ok"
		statusCode := http.StatusOK

		if !keys.KeysReady() {
			if err := keys.PrefetchKeys(r.Context()); err != nil {
				checks.JWKS = "error: " + err.Error()
				overallStatus = "degraded"
				statusCode = http.StatusServiceUnavailable
			}
		}

		httpx.WriteJSON(w, statusCode, authsdk.HealthResponse{
			Status:  overallStatus,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		})
	}
}
