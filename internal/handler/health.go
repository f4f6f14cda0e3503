package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/club-payments/internal/failover"
)

// Health is a liveness probe.  It does not touch the backends.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// StatusReporter exposes backend availability.
type StatusReporter interface {
	Status() map[string]failover.Status
}

// StorageStatus handles GET /v1/storage/status.  It answers 200 while at
// least one backend is healthy and 503 otherwise.
func StorageStatus(r StatusReporter) echo.HandlerFunc {
	return func(c echo.Context) error {
		backends := r.Status()
		code := http.StatusServiceUnavailable
		for _, s := range backends {
			if s == failover.Healthy {
				code = http.StatusOK
				break
			}
		}
		return c.JSON(code, map[string]any{"backends": backends})
	}
}
