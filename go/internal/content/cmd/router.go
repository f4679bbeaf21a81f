package main

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/buzzquiz/go/internal/content"
	"github.com/mcdev12/buzzquiz/go/internal/content/rpc"
	"github.com/mcdev12/buzzquiz/go/internal/metrics"
	"github.com/mcdev12/buzzquiz/go/internal/middleware"
)

func newRouter(svc *content.Service, rpcService *rpc.Service) http.Handler {
	r := chi.NewRouter()

	r.Use(metrics.HTTP)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(log.Logger))
	r.Use(chimw.Recoverer)

	path, handler := rpc.NewHandler(rpcService)
	r.Handle(path+"*", handler)

	r.Get("/debug/content", func(w http.ResponseWriter, r *http.Request) {
		contents, err := svc.ListContent(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		type entry struct {
			ID        string `json:"id"`
			Title     string `json:"title"`
			WordCount int    `json:"word_count"`
			Status    string `json:"status"`
			Questions int    `json:"questions"`
		}
		out := make([]entry, 0, len(contents))
		for _, c := range contents {
			qs, _ := svc.Questions(r.Context(), c.ID)
			out = append(out, entry{ID: c.ID, Title: c.Title, WordCount: c.WordCount, Status: string(c.Status), Questions: len(qs)})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content_count": len(out),
			"contents":      out,
		})
	})
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	})
	r.Handle("/metrics", promhttp.Handler())

	c := cors.New(cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(r)
}
