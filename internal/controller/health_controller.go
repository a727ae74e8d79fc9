package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

// DBPinger is satisfied by *pgxpool.Pool.
type DBPinger interface {
	Ping(ctx context.Context) error
}

type HealthController struct {
	checks []dependencyCheck
}

type dependencyCheck struct {
	name string
	ping func(ctx context.Context) error
}

func NewHealthController(db DBPinger, rdb redis.UniversalClient) *HealthController {
	h := &HealthController{}
	if db != nil {
		h.checks = append(h.checks, dependencyCheck{name: "database", ping: db.Ping})
	}
	if rdb != nil {
		h.checks = append(h.checks, dependencyCheck{name: "redis", ping: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}
	return h
}

func (h *HealthController) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HealthController) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// Readiness pings every dependency concurrently. The slot registry and the
// capture lock both have to be reachable to take reservations.
func (h *HealthController) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	results := make([]string, len(h.checks))
	var g errgroup.Group
	for i, c := range h.checks {
		g.Go(func() error {
			results[i] = "up"
			if err := c.ping(ctx); err != nil {
				results[i] = "down"
			}
			return nil
		})
	}
	g.Wait()

	status, code := "ready", http.StatusOK
	checks := make(map[string]string, len(h.checks))
	for i, c := range h.checks {
		checks[c.name] = results[i]
		if results[i] != "up" {
			status, code = "not ready", http.StatusServiceUnavailable
		}
	}
	writeJSON(w, code, map[string]any{"status": status, "checks": checks})
}
