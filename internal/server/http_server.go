package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/GoSim-25-26J-441/topology-core/internal/metrics"
	"github.com/GoSim-25-26J-441/topology-core/pkg/config"
	"github.com/GoSim-25-26J-441/topology-core/pkg/models"
)

// HeaderRequestID carries the request id in requests and responses
const HeaderRequestID = "X-Request-ID"

type requestIDKey struct{}

// RequestID returns the request id stored in ctx
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// HTTPServer serves the map API
type HTTPServer struct {
	mux     *http.ServeMux
	service *MapService
	catalog *models.Catalog
	metrics *metrics.Recorder
	logger  *slog.Logger
}

// NewHTTPServer creates the HTTP API. recorder may be nil, in which case /metrics is not served.
func NewHTTPServer(service *MapService, catalog *models.Catalog, recorder *metrics.Recorder) *HTTPServer {
	if catalog == nil {
		catalog = models.DefaultCatalog()
	}
	s := &HTTPServer{
		mux:     http.NewServeMux(),
		service: service,
		catalog: catalog,
		metrics: recorder,
		logger:  service.logger,
	}

	// Other methods on these paths get 405 with an Allow header from the mux
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.HandleFunc("GET /v1/map", s.handleMap)
	if recorder != nil {
		s.mux.Handle("GET /metrics", recorder.Handler())
	}
	return s
}

// Handler returns the root handler with request ids and request metrics
func (s *HTTPServer) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := r.Header.Get(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, id)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		s.mux.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))

		elapsed := time.Since(start)
		if s.metrics != nil {
			s.metrics.RecordRequest(routeLabel(r.URL.Path), rec.status, elapsed)
		}
		s.logger.Debug("http request",
			"request_id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"elapsed", elapsed)
	})
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleMap handles GET /v1/map?from=&to=[&application=&service_type=]
func (s *HTTPServer) handleMap(w http.ResponseWriter, r *http.Request) {
	req, err := parseMapRequest(r.URL.Query(), s.catalog)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	m, err := s.service.Build(r.Context(), req)
	if err != nil {
		code := httpStatus(err)
		s.logger.Warn("map build failed", "request_id", RequestID(r.Context()), "status", code, "error", err)
		s.writeError(w, code, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, NewMapView(m, s.service.Schemas()))
}

// parseMapRequest reads the window and optional application from query parameters
func parseMapRequest(q url.Values, catalog *models.Catalog) (MapRequest, error) {
	from, err := config.ParseTimestamp(q.Get("from"))
	if err != nil {
		return MapRequest{}, fmt.Errorf("from: %w", err)
	}
	to, err := config.ParseTimestamp(q.Get("to"))
	if err != nil {
		return MapRequest{}, fmt.Errorf("to: %w", err)
	}
	window, err := models.NewTimeWindow(from, to)
	if err != nil {
		return MapRequest{}, err
	}
	req := MapRequest{Window: window}

	name := q.Get("application")
	typeName := q.Get("service_type")
	if name == "" && typeName == "" {
		return req, nil
	}
	if name == "" || typeName == "" {
		return MapRequest{}, fmt.Errorf("application and service_type must be given together")
	}
	st, ok := catalog.LookupName(typeName)
	if !ok {
		return MapRequest{}, fmt.Errorf("unknown service type %s", typeName)
	}
	app := models.NewApplication(name, st)
	req.Application = &app
	return req, nil
}

func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *HTTPServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]any{"error": message})
}

// routeLabel bounds the route label to the served paths
func routeLabel(path string) string {
	switch path {
	case "/healthz", "/v1/map", "/metrics":
		return path
	default:
		return "other"
	}
}

// statusRecorder remembers the status written by a handler
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
