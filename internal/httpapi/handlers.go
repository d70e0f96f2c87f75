// Package httpapi is the bot's operational HTTP surface: health and
// readiness probes, Prometheus metrics and a live moderation event stream.
// It carries no moderation commands; those arrive through the chat platform.
package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/KanuckLemonFTW/Core-Bot-V2/internal/obs"
	"github.com/KanuckLemonFTW/Core-Bot-V2/internal/stream"
)

// ReadyProbe reports whether dependencies are reachable. DB is optional;
// file-store deployments have nothing to ping.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

type API struct {
	mux         *http.ServeMux
	readyProbe  ReadyProbe
	version     string
	events      *stream.Stream
	requireAuth bool
}

func New(rp ReadyProbe, version string, events *stream.Stream, requireAuth bool) *API {
	a := &API{
		mux:         http.NewServeMux(),
		readyProbe:  rp,
		version:     version,
		events:      events,
		requireAuth: requireAuth,
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)
	a.mux.HandleFunc("/v1/events", a.Events)

	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Middleware defaults for the ops surface. Generous enough for probes and
// dashboards, tight enough to shed an abusive client.
const (
	maxBodyBytes    = 1 << 20
	rateLimitBurst  = 60
	rateLimitPerSec = 30
)

// Handler returns the full middleware-wrapped handler for the server.
func (a *API) Handler() http.Handler {
	h := MaxBodyBytes(a.withAuth(a.mux), maxBodyBytes)
	h = RateLimit(h, rateLimitBurst, rateLimitPerSec)
	h = Logging(h)
	return obs.Instrument(RequestID(h))
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "core-bot",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "core-bot",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"error": msg})
}
