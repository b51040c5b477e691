package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/printbridge/backend/api/responses"
	"github.com/printbridge/backend/pkg/logger"
)

// Pinger is the dependency health surface.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Health reports service and dependency liveness.
func Health(dbPing, redisPing Pinger, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := map[string]string{
			"service": "ok",
			"db":      "ok",
			"redis":   "ok",
		}
		healthy := true

		if dbPing != nil {
			if err := dbPing.Ping(ctx); err != nil {
				status["db"] = "unavailable"
				healthy = false
			}
		}
		if redisPing != nil {
			if err := redisPing.Ping(ctx); err != nil {
				status["redis"] = "unavailable"
				healthy = false
			}
		}

		code := http.StatusOK
		if !healthy {
			code = http.StatusServiceUnavailable
		}
		responses.WriteSuccessStatus(w, code, status)
	}
}
