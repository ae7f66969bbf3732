package http

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/seawatch-io/seawatch/internal/pkg/metrics"
	"github.com/seawatch-io/seawatch/internal/relay/core"
)

// GatewayKeyHeader carries the shared gateway key on ingest requests.
const GatewayKeyHeader = "X-Gateway-Key"

const (
	maxLoginBytes = 4096
	checkTimeout  = 2 * time.Second
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxLoginBytes)).Decode(&req); err != nil {
		http.Error(w, "invalid login request", http.StatusBadRequest)
		return
	}

	cred, err := s.deps.Guard.IssueCredential(r.Context(), req.Username, req.Password)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cred)
}

func (s *Server) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	if !s.ingestAllowed(r) {
		http.Error(w, core.ErrUnauthorized.Error(), http.StatusUnauthorized)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxIngestBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			metrics.TelemetryIngested.WithLabelValues("malformed").Inc()
			http.Error(w, "telemetry record too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	if _, err := s.deps.Ingester.Ingest(r.Context(), body, r.Header.Get("Content-Type")); err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "ok\n")
}

// ingestAllowed accepts a matching gateway key or a valid bearer token.
// Without either the request is refused unless anonymous ingest is enabled.
func (s *Server) ingestAllowed(r *http.Request) bool {
	if s.anonymous {
		return true
	}
	if key := r.Header.Get(GatewayKeyHeader); key != "" {
		if s.gatewayKey != "" && subtle.ConstantTimeCompare([]byte(key), []byte(s.gatewayKey)) == 1 {
			return true
		}
		metrics.AuthFailures.WithLabelValues("gateway-key").Inc()
		return false
	}
	if s.deps.Guard == nil {
		return false
	}
	_, err := s.deps.Guard.FromRequest(r)
	return err == nil
}

func (s *Server) handleVehicles(w http.ResponseWriter, r *http.Request) {
	vehicles, err := s.deps.Vehicles.ListVehicles(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, vehicles)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReadyz runs every readiness check and lists the failing ones.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	var failed []string
	for name, check := range s.deps.Checks {
		if err := check(ctx); err != nil {
			s.logger.Warn("Readiness check failed", "check", name, "error", err.Error())
			failed = append(failed, name)
		}
	}
	if len(failed) > 0 {
		sort.Strings(failed)
		http.Error(w, "not ready: "+strings.Join(failed, ","), http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// writeError maps err onto its status. Internal errors are logged and
// answered with a generic message.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := core.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		s.logger.Error(err, "Request failed")
		http.Error(w, "internal error", status)
		return
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
