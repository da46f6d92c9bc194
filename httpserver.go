package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/litch/lndbalancer/balancer"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	log "github.com/sirupsen/logrus"
)

type reportSource interface {
	LastReport() *balancer.TickReport
}

type httpServerConfig struct {
	port               uint16
	reports            reportSource
	gatherer           prometheus.Gatherer
	corsAllowedOrigins []string
	version            string
	commit             string
}

type httpServer struct {
	reports            reportSource
	gatherer           prometheus.Gatherer
	corsAllowedOrigins []string
	version            string
	commit             string
	server             *http.Server
}

type statusResponse struct {
	Version  string               `json:"version"`
	Commit   string               `json:"commit"`
	LastTick *balancer.TickReport `json:"last_tick"`
}

func newHTTPServer(config *httpServerConfig) *httpServer {
	s := &httpServer{
		reports:            config.reports,
		gatherer:           config.gatherer,
		corsAllowedOrigins: config.corsAllowedOrigins,
		version:            config.version,
		commit:             config.commit,
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", config.port),
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

func (s *httpServer) routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", s.health)
	r.Get("/status", s.status)
	if s.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	if len(s.corsAllowedOrigins) == 0 {
		return r
	}

	return cors.New(cors.Options{
		AllowedOrigins: s.corsAllowedOrigins,
		AllowedMethods: []string{http.MethodGet},
	}).Handler(r)
}

func (s *httpServer) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, "OK")
}

func (s *httpServer) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		Version:  s.version,
		Commit:   s.commit,
		LastTick: s.reports.LastReport(),
	})
}

func (s *httpServer) ListenAndServe() error {
	log.Infof("Listening on http://%s", s.server.Addr)
	return s.server.ListenAndServe()
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
