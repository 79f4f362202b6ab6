// Package health serves the liveness and readiness endpoints of the
// diagnostics HTTP server.
//
//   - /healthz reports that the process is up and how long it has been.
//   - /readyz runs every registered [Checker] concurrently and returns 200
//     only when all of them pass. voicemcp registers one checker per loaded
//     provider and one for the audio device.
//
// Responses are JSON objects with a top-level "status" field ("ok" or "fail")
// and a "checks" map containing the result of each named checker.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// checkTimeout bounds a single readiness check.
const checkTimeout = 5 * time.Second

// maxParallelChecks caps concurrently running checkers.
const maxParallelChecks = 4

// Checker is a named readiness check. Check returns nil when the dependency
// is usable.
type Checker struct {
	// Name is the key of this check in the JSON response (e.g. "stt",
	// "audio").
	Name string

	// Check probes the dependency. It must respect context cancellation.
	Check func(ctx context.Context) error
}

// result is the JSON response body for health endpoints.
type result struct {
	Status string            `json:"status"`
	Uptime string            `json:"uptime,omitempty"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler serves /healthz and /readyz. The checker list is fixed at
// construction time.
type Handler struct {
	checkers []Checker
	started  time.Time
	now      func() time.Time
}

// New creates a [Handler] that evaluates the given checkers on each /readyz
// request.
func New(checkers ...Checker) *Handler {
	return &Handler{
		checkers: append([]Checker(nil), checkers...),
		started:  time.Now(),
		now:      time.Now,
	}
}

// Healthz is a liveness probe that always returns 200 OK.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	up := h.now().Sub(h.started).Truncate(time.Second)
	writeJSON(w, http.StatusOK, result{Status: "ok", Uptime: up.String()})
}

// Readyz returns 200 when every [Checker] passes and 503 otherwise. Each
// checker gets its own [checkTimeout] deadline derived from the request.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	checks, ok := h.run(r.Context())

	res := result{Status: "ok", Checks: checks}
	status := http.StatusOK
	if !ok {
		res.Status = "fail"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, res)
}

// run evaluates all checkers and returns their results by name.
func (h *Handler) run(ctx context.Context) (map[string]string, bool) {
	var (
		mu     sync.Mutex
		checks = make(map[string]string, len(h.checkers))
		allOK  = true
	)

	var g errgroup.Group
	g.SetLimit(maxParallelChecks)
	for _, c := range h.checkers {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, checkTimeout)
			defer cancel()
			err := c.Check(cctx)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				checks[c.Name] = "fail: " + err.Error()
				allOK = false
			} else {
				checks[c.Name] = "ok"
			}
			return nil
		})
	}
	_ = g.Wait()
	return checks, allOK
}

// Register adds the /healthz and /readyz routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
