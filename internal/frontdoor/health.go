package frontdoor

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/it-era/chat-gateway/internal/cache"
)

// HealthHandler serves GET /health with component readiness and cache
// statistics, enough for the uptime probe and for eyeballing hit rates.
type HealthHandler struct {
	cache        *cache.ResponseCache
	orchestrator bool
	ai           bool
	started      time.Time
}

func NewHealthHandler(c *cache.ResponseCache, orchestratorConfigured, aiConfigured bool) *HealthHandler {
	return &HealthHandler{
		cache:        c,
		orchestrator: orchestratorConfigured,
		ai:           aiConfigured,
		started:      time.Now(),
	}
}

type healthReply struct {
	Status     string            `json:"status"`
	UptimeSecs int64             `json:"uptimeSeconds"`
	Components map[string]string `json:"components"`
	Cache      cache.Stats       `json:"cache"`
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	components := map[string]string{
		"fallback":     "ok",
		"orchestrator": enabledLabel(h.orchestrator),
		"ai":           enabledLabel(h.ai),
	}

	reply := healthReply{
		Status:     "ok",
		UptimeSecs: int64(time.Since(h.started).Seconds()),
		Components: components,
		Cache:      h.cache.Stats(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(reply)
}

func enabledLabel(enabled bool) string {
	if enabled {
		return "ok"
	}
	return "disabled"
}
