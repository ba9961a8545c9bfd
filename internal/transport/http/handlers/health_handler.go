package handlers

import (
	"context"
	"net/http"
	"time"

	httperrors "github.com/ivankudzin/kinship/internal/transport/http/errors"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type HealthHandler struct {
	checks map[string]Pinger
}

// NewHealthHandler reports ok when every named dependency answers a ping.
// Nil entries are skipped.
func NewHealthHandler(checks map[string]Pinger) *HealthHandler {
	return &HealthHandler{checks: checks}
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (h *HealthHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	res := healthResponse{Status: "ok"}
	status := http.StatusOK
	for name, check := range h.checks {
		if check == nil {
			continue
		}
		if res.Checks == nil {
			res.Checks = make(map[string]string, len(h.checks))
		}
		if err := check.Ping(ctx); err != nil {
			res.Checks[name] = "down"
			res.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		res.Checks[name] = "up"
	}

	httperrors.Write(w, status, res)
}
