// Package server is the HTTP transport for the orchestrator.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/bgdnvk/resonance/internal/audit"
	apperrors "github.com/bgdnvk/resonance/internal/errors"
	"github.com/bgdnvk/resonance/internal/knowledge"
	"github.com/bgdnvk/resonance/internal/orchestrator"
)

const maxBodyBytes = 1 << 20

type Service interface {
	Handle(ctx context.Context, req orchestrator.ChatRequest) (orchestrator.ChatResponse, error)
	Retrieve(query string, k int) ([]knowledge.Snippet, error)
}

// AuditReader serves GET /api/audit. Optional.
type AuditReader interface {
	Recent(ctx context.Context, n int) ([]audit.Entry, error)
}

type RetrieveRequest struct {
	Query string `json:"query"`
	K     int    `json:"k,omitempty"`
}

type RetrieveResponse struct {
	Results []knowledge.Snippet `json:"results"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type Server struct {
	svc    Service
	audit  AuditReader
	server *http.Server
	logger *zap.Logger
}

func New(addr string, svc Service, auditLog AuditReader, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{svc: svc, audit: auditLog, logger: logger}
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// dual dispatch at maximum intensity can take 45s
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("POST /api/retrieve", s.handleRetrieve)
	mux.HandleFunc("GET /api/audit", s.handleAudit)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return s.recover(mux)
}

// Start blocks until the server stops. A graceful shutdown returns nil.
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

func (s *Server) recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("Handler panic", zap.Any("panic", rec), zap.String("path", r.URL.Path))
				writeError(w, http.StatusInternalServerError, "internal error", "")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req orchestrator.ChatRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	}

	resp, err := s.svc.Handle(r.Context(), req)
	if err != nil {
		if errors.Is(err, orchestrator.ErrEmptyMessage) {
			writeError(w, http.StatusBadRequest, err.Error(), "")
			return
		}
		s.logger.Error("Chat failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "chat failed", string(apperrors.CodeOf(err)))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	var req RetrieveRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	}

	hits, err := s.svc.Retrieve(req.Query, req.K)
	if err != nil {
		status := http.StatusInternalServerError
		if apperrors.Is(err, apperrors.QueryError) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error(), string(apperrors.CodeOf(err)))
		return
	}
	if hits == nil {
		hits = []knowledge.Snippet{}
	}
	writeJSON(w, http.StatusOK, RetrieveResponse{Results: hits})
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeError(w, http.StatusNotFound, "audit log disabled", "")
		return
	}
	n := 20
	if raw := r.URL.Query().Get("n"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			writeError(w, http.StatusBadRequest, "n must be a positive integer", "")
			return
		}
		n = v
	}
	entries, err := s.audit.Recent(r.Context(), n)
	if err != nil {
		s.logger.Error("Audit query failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "audit query failed", "")
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg, code string) {
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}
