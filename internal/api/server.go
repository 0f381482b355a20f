// Package api is the HTTP tool server: the same dispatcher the CLI
// uses, exposed as POST /api/tools/{tool} for the external host.
package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"eve-tactician/internal/errs"
	"eve-tactician/internal/logger"
	"eve-tactician/internal/tools"
)

// maxRequestBody bounds a tool request; fit pastes and valuation
// pastes stay well under this.
const maxRequestBody = 1 << 20

// Server serves the tool surface over HTTP.
type Server struct {
	dispatcher *tools.Dispatcher
}

// NewServer wraps a dispatcher.
func NewServer(d *tools.Dispatcher) *Server {
	return &Server{dispatcher: d}
}

// Handler returns the HTTP handler with all routes and CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/tools/{tool}", s.handleTool)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(204)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleTool(w http.ResponseWriter, r *http.Request) {
	tool := r.PathValue("tool")
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		writeError(w, errs.InvalidParameter("body", "unreadable request body"))
		return
	}

	start := time.Now()
	res, callErr := s.dispatcher.Call(r.Context(), tool, json.RawMessage(body))
	if callErr != nil {
		logger.Warn("API", fmt.Sprintf("%s failed in %s: %v", tool, time.Since(start).Round(time.Millisecond), callErr))
		writeError(w, callErr)
		return
	}
	logger.Info("API", fmt.Sprintf("%s served in %s", tool, time.Since(start).Round(time.Millisecond)))
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	res, err := s.dispatcher.Call(r.Context(), "status", nil)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps the taxonomy onto HTTP statuses and renders the
// wire shape {"error": {code, message, data}}.
func writeError(w http.ResponseWriter, err error) {
	e := errs.AsError(err)
	w.Header().Set("Content-Type", "application/json")
	if e.Kind == errs.KindRateLimited {
		if ra, ok := e.Data["retry_after_seconds"].(int); ok {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", ra))
		}
	}
	w.WriteHeader(httpStatus(e.Kind))
	w.Write(tools.EncodeError(e))
}

func httpStatus(kind errs.Kind) int {
	switch kind {
	case errs.KindInvalidParameter:
		return http.StatusBadRequest
	case errs.KindSystemNotFound, errs.KindTypeNotFound, errs.KindRouteNotFound:
		return http.StatusNotFound
	case errs.KindSourceUnavailable:
		return http.StatusServiceUnavailable
	case errs.KindRateLimited:
		return http.StatusTooManyRequests
	case errs.KindCancelled:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
