// Package server exposes the HTTP surface: media submission, job status
// (polled and streamed over websocket), results, semantic search, transcript
// downloads, and the operational endpoints.
//
// All /api responses are JSON. Request tracing, correlation IDs, and request
// metrics come from the observe middleware wrapping the router.
package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/soundscribe/soundscribe/internal/health"
	"github.com/soundscribe/soundscribe/internal/job"
	"github.com/soundscribe/soundscribe/internal/observe"
	"github.com/soundscribe/soundscribe/internal/store"
	"github.com/soundscribe/soundscribe/pkg/provider/embeddings"
)

// defaultSearchLimit is the number of chunks returned by /api/search when the
// request does not specify one.
const defaultSearchLimit = 5

// Config carries the server's collaborators. Jobs, Store, and UploadDir are
// required. Embedder may be nil, which disables /api/search.
type Config struct {
	Jobs  *job.Manager
	Store store.Store

	// Embedder turns search queries into vectors. Nil means the search
	// endpoint answers 501.
	Embedder embeddings.Provider

	// UploadDir is where uploaded media files are written before processing.
	UploadDir string

	// MaxUploadBytes caps the accepted request body size for uploads.
	MaxUploadBytes int64

	// Health serves /healthz and /readyz. Nil gets a checker-less handler.
	Health *health.Handler

	// Metrics defaults to [observe.DefaultMetrics].
	Metrics *observe.Metrics
}

// Server holds the handler state. Construct with [New], mount via [Handler].
type Server struct {
	jobs           *job.Manager
	store          store.Store
	embedder       embeddings.Provider
	uploadDir      string
	maxUploadBytes int64
	health         *health.Handler
	metrics        *observe.Metrics
}

// New validates cfg and builds a Server.
func New(cfg Config) (*Server, error) {
	if cfg.Jobs == nil {
		return nil, errors.New("server: job manager must not be nil")
	}
	if cfg.Store == nil {
		return nil, errors.New("server: store must not be nil")
	}
	if cfg.UploadDir == "" {
		return nil, errors.New("server: upload directory must not be empty")
	}
	if cfg.MaxUploadBytes <= 0 {
		return nil, errors.New("server: max upload size must be positive")
	}

	s := &Server{
		jobs:           cfg.Jobs,
		store:          cfg.Store,
		embedder:       cfg.Embedder,
		uploadDir:      cfg.UploadDir,
		maxUploadBytes: cfg.MaxUploadBytes,
		health:         cfg.Health,
		metrics:        cfg.Metrics,
	}
	if s.health == nil {
		s.health = health.New()
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s, nil
}

// Handler returns the fully routed handler, wrapped in the observability
// middleware.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/upload", s.handleUpload).Methods(http.MethodPost)
	r.HandleFunc("/api/process-url", s.handleProcessURL).Methods(http.MethodPost)
	r.HandleFunc("/api/jobs", s.handleListJobs).Methods(http.MethodGet)
	r.HandleFunc("/api/status/{id}", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/result/{id}", s.handleResult).Methods(http.MethodGet)
	r.HandleFunc("/api/search", s.handleSearch).Methods(http.MethodGet)
	r.HandleFunc("/api/download/{format}/{id}", s.handleDownload).Methods(http.MethodGet)
	r.HandleFunc("/ws/status/{id}", s.handleStatusSocket).Methods(http.MethodGet)

	s.health.Register(r)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return observe.Middleware(s.metrics, routeLabeler(r))(r)
}

// routeLabeler resolves requests to their route template so /api/status/{id}
// appears once in the metrics instead of once per job.
func routeLabeler(router *mux.Router) observe.RouteLabeler {
	return func(r *http.Request) string {
		var match mux.RouteMatch
		if router.Match(r, &match) && match.Route != nil {
			if tpl, err := match.Route.GetPathTemplate(); err == nil {
				return tpl
			}
		}
		return r.URL.Path
	}
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encoding failed"}`, http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}
