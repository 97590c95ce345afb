package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/crlsmrls/lowandslow/metrics"
)

// setupRoutes wires the three endpoints spec.md's C12 names. There is
// deliberately no route that mutates engine state: pause/resume/
// skip-guessed stay interactive stdin prompts (spec.md §9).
func setupRoutes(router *chi.Mux, reg *prometheus.Registry, status StatusFunc) {
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	router.Handle("/metrics", metrics.MetricsHandler(reg))

	router.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if status == nil {
			w.Write([]byte(`{}`))
			return
		}
		if err := json.NewEncoder(w).Encode(status()); err != nil {
			log.Ctx(r.Context()).Error().Err(err).Msg("failed to encode status snapshot")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		}
	})
}
