package v1

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/fitstudio/staff-console/internal/models"
)

type pinger interface {
	Ping(ctx context.Context) error
}

func HealthHandler(s pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		err := s.Ping(ctx)
		ok := err == nil
		resp := models.APIResponse{
			Success: ok,
			Message: "ok",
			Data: map[string]interface{}{
				"db":   ok,
				"time": time.Now(),
			},
		}
		w.Header().Set("Content-Type", "application/json")
		if !ok {
			resp.Message = "db unreachable"
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}
