// Package server exposes the dataset editor over HTTP.
//
// Routes mirror the editor's API: dataset listing, image listing and
// serving, caption/crop updates, resize and extend transforms, metadata
// export, and vocabulary extraction.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"capset/internal/config"
	"capset/pkg/captioner"
	"capset/pkg/dataset"
	"capset/pkg/store"
	"capset/pkg/transform"
	"capset/pkg/types"
	"capset/pkg/vocab"
)

var (
	errBadRequest        = errors.New("bad request")
	errCaptionerDisabled = errors.New("caption suggestions are not configured")
)

// Server wires the core components behind the HTTP API.
type Server struct {
	log            *logrus.Logger
	root           *dataset.Root
	store          *store.Store
	engine         *transform.Engine
	vocab          *vocab.Extractor
	captioner      *captioner.Client
	defaultMaxSide int
}

// New builds a Server from configuration.
func New(cfg *config.Config, log *logrus.Logger) (*Server, error) {
	root := dataset.NewRoot(cfg.Dataset.Root)
	st := store.New(root)

	s := &Server{
		log:            log,
		root:           root,
		store:          st,
		engine:         transform.NewWithQuality(cfg.Transform.Quality),
		vocab:          vocab.New(root, st),
		defaultMaxSide: cfg.Transform.DefaultMaxSide,
	}

	if cfg.Captioner.Enabled {
		client, err := captioner.New(cfg.Captioner.URL, cfg.Captioner.Model)
		if err != nil {
			return nil, err
		}
		s.captioner = client
	}
	return s, nil
}

// Handler returns the API handler with request logging attached.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/datasets", s.handleDatasets)
	mux.HandleFunc("/api/datasets/", s.handleDatasetRoutes)
	mux.HandleFunc("/api/vocabulary", s.handleGlobalVocabulary)
	return s.logRequests(mux)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		s.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   recorder.status,
			"duration": time.Since(start),
		}).Info("request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.WithError(err).Error("encode response")
	}
}

// writeError maps the error taxonomy onto HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, dataset.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, dataset.ErrInvalidPath),
		errors.Is(err, transform.ErrInvalidInput),
		errors.Is(err, errBadRequest):
		status = http.StatusBadRequest
	case errors.Is(err, errCaptionerDisabled):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		s.log.WithError(err).Error("request failed")
	}
	s.writeJSON(w, status, types.ErrorResponse{Detail: err.Error()})
}
