// Package api provides the HTTP server and handlers.
package api

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/galleylabs/galley/internal/auth"
	"github.com/galleylabs/galley/internal/events"
	"github.com/galleylabs/galley/internal/logging"
	"github.com/galleylabs/galley/internal/metadata"
	"github.com/galleylabs/galley/internal/metrics"
	"github.com/galleylabs/galley/internal/ratelimit"
	"github.com/galleylabs/galley/internal/storage"
	"github.com/galleylabs/galley/pkg/protocol"
)

// Package-level compiled regex for Range header parsing.
var rangeRegex = regexp.MustCompile(`bytes=(\d*)-(\d*)`)

// Pool gzip writers to reduce allocations on listing endpoints.
var gzipPool = sync.Pool{
	New: func() any { return gzip.NewWriter(nil) },
}

// Server is the HTTP server.
type Server struct {
	store         metadata.Store
	storage       storage.Backend
	auth          *auth.Auth
	broadcaster   *events.Broadcaster
	limiter       *ratelimit.Limiter
	maxUploadSize int64
}

// NewServer creates a new server.
func NewServer(
	store metadata.Store,
	backend storage.Backend,
	authHandler *auth.Auth,
	broadcaster *events.Broadcaster,
	limiter *ratelimit.Limiter,
	maxUploadSize int64,
) *Server {
	return &Server{
		store:         store,
		storage:       backend,
		auth:          authHandler,
		broadcaster:   broadcaster,
		limiter:       limiter,
		maxUploadSize: maxUploadSize,
	}
}

// Handler returns the HTTP handler with auth, rate limiting, logging,
// and metrics middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Public endpoints (no auth required)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/v1/auth/token", s.auth.HandleLogin)

	// Protected endpoints
	protected := http.NewServeMux()

	// Projects
	protected.HandleFunc("GET /api/v1/projects", s.handleListProjects)
	protected.HandleFunc("POST /api/v1/projects", s.handleCreateProject)
	protected.HandleFunc("DELETE /api/v1/projects/{project}", s.auth.RequireAdmin(s.handleDeleteProject))

	// Tree
	protected.HandleFunc("GET /api/v1/projects/{project}/tree", s.handleList)
	protected.HandleFunc("GET /api/v1/projects/{project}/tree/{path...}", s.handleList)
	protected.HandleFunc("PUT /api/v1/projects/{project}/tree/{path...}", s.handleCreateEntry)
	protected.HandleFunc("DELETE /api/v1/projects/{project}/tree/{path...}", s.handleDeleteEntry)
	protected.HandleFunc("POST /api/v1/projects/{project}/rename", s.handleRename)
	protected.HandleFunc("POST /api/v1/projects/{project}/move", s.handleMove)
	protected.HandleFunc("POST /api/v1/projects/{project}/duplicate", s.handleDuplicate)

	// Content
	protected.HandleFunc("GET /api/v1/projects/{project}/content/{path...}", s.handleDownload)
	protected.HandleFunc("PUT /api/v1/projects/{project}/content/{path...}", s.handleUpload)

	// SSE endpoints; the project-scoped form is what EventSource-style
	// clients use, the flat form takes an optional ?project= filter.
	protected.HandleFunc("GET /api/v1/events", s.handleEvents)
	protected.HandleFunc("GET /api/v1/projects/{project}/events", s.handleEvents)

	// User and session management
	protected.HandleFunc("GET /api/v1/auth/users", s.auth.RequireAdmin(s.handleListUsers))
	protected.HandleFunc("POST /api/v1/auth/users", s.auth.RequireAdmin(s.handleCreateUser))
	protected.HandleFunc("DELETE /api/v1/auth/users/{username}", s.auth.RequireAdmin(s.handleDeleteUser))
	protected.HandleFunc("GET /api/v1/auth/sessions", s.auth.RequireAdmin(s.handleListSessions))
	protected.HandleFunc("DELETE /api/v1/auth/sessions/{id}", s.auth.RequireAdmin(s.handleRevokeSession))
	protected.HandleFunc("POST /api/v1/auth/password", s.handleChangePassword)

	// Rate limiting sits inside auth so the user is known by the time
	// the bucket is checked.
	var inner http.Handler = protected
	if s.limiter != nil && s.limiter.Enabled() {
		inner = s.rateLimit(inner)
	}
	mux.Handle("/api/v1/", s.auth.Middleware(inner))

	// Apply logging and metrics middleware
	return metrics.Middleware(logging.Middleware(mux))
}

// rateLimit enforces the per-user request budget on authenticated routes.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := auth.GetClaims(r.Context())
		if claims != nil && !s.limiter.Allow(claims.Username) {
			w.Header().Set("Retry-After", strconv.Itoa(s.limiter.RetryAfter(claims.Username)))
			s.sendError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ─── Health ─────────────────────────────────────────────────────────────────

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok", "version": "1.0"})
}

// ─── SSE Events ─────────────────────────────────────────────────────────────

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.sendError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	project := r.PathValue("project")
	if project == "" {
		project = r.URL.Query().Get("project")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := s.broadcaster.Subscribe(project)
	defer s.broadcaster.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			data, err := events.MarshalEvent(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
			flusher.Flush()
		}
	}
}

// publishEvent publishes a change event to the broadcaster if available.
func (s *Server) publishEvent(eventType, project, path, newPath string, isDir bool) {
	if s.broadcaster == nil {
		return
	}
	s.broadcaster.Publish(protocol.ChangeEvent{
		Type:    eventType,
		Project: project,
		Path:    path,
		NewPath: newPath,
		IsDir:   isDir,
	})
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// removeBlobs deletes content blobs after their metadata rows are gone.
// Failures are logged and skipped; a leaked blob is unreachable anyway.
func (s *Server) removeBlobs(ctx context.Context, keys []string) {
	for _, key := range keys {
		if err := s.storage.DeleteObject(ctx, key); err != nil {
			logging.Warn("failed to delete blob", zap.String("key", key), zap.Error(err))
		}
	}
}

func acceptsGzip(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept-Encoding"), "gzip")
}

// parseRangeHeader parses a bytes range against the total size. Returns
// hasRange=false (full read) for missing, malformed, or unsatisfiable
// ranges; offset and length are only meaningful when hasRange is true.
func parseRangeHeader(rangeHeader string, totalSize int64) (offset, length int64, hasRange bool) {
	if rangeHeader == "" || totalSize <= 0 {
		return 0, 0, false
	}

	matches := rangeRegex.FindStringSubmatch(rangeHeader)
	if matches == nil {
		return 0, 0, false
	}

	startStr, endStr := matches[1], matches[2]

	if startStr == "" && endStr != "" {
		suffix, _ := strconv.ParseInt(endStr, 10, 64)
		if suffix <= 0 {
			return 0, 0, false
		}
		offset = totalSize - suffix
		if offset < 0 {
			offset = 0
		}
		return offset, totalSize - offset, true
	}

	if startStr != "" {
		offset, _ = strconv.ParseInt(startStr, 10, 64)
	}
	if offset >= totalSize {
		return 0, 0, false
	}

	if endStr != "" {
		end, _ := strconv.ParseInt(endStr, 10, 64)
		length = end - offset + 1
	} else {
		length = totalSize - offset
	}
	if offset+length > totalSize {
		length = totalSize - offset
	}

	return offset, length, true
}

func (s *Server) sendError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(protocol.ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// sendStoreError maps the store sentinels onto 404 and 409; anything
// else is a 500.
func (s *Server) sendStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, metadata.ErrNotFound):
		s.sendError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, metadata.ErrConflict):
		s.sendError(w, http.StatusConflict, err.Error())
	default:
		s.sendError(w, http.StatusInternalServerError, err.Error())
	}
}
