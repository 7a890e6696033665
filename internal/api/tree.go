package api

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/galleylabs/galley/internal/logging"
	"github.com/galleylabs/galley/internal/metadata"
	"github.com/galleylabs/galley/internal/metrics"
	"github.com/galleylabs/galley/pkg/models"
	"github.com/galleylabs/galley/pkg/protocol"
)

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	project := r.PathValue("project")
	dir := models.Clean(r.PathValue("path"))

	rows, err := s.store.ListDir(r.Context(), project, dir.String())
	if err != nil {
		metrics.RecordTreeListing(false)
		s.sendStoreError(w, err)
		return
	}
	metrics.RecordTreeListing(true)

	entries := make([]models.Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, models.Entry{
			Name:    row.Name,
			IsDir:   row.IsDir,
			Size:    row.Size,
			ModTime: row.ModTime,
		})
	}
	resp := protocol.ListResponse{Path: dir.String(), Entries: entries}

	if acceptsGzip(r) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Encoding", "gzip")
		gw := gzipPool.Get().(*gzip.Writer)
		gw.Reset(w)
		json.NewEncoder(gw).Encode(resp)
		gw.Close()
		gzipPool.Put(gw)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	project := r.PathValue("project")
	path := models.Clean(r.PathValue("path"))
	if path.IsRoot() {
		s.sendError(w, http.StatusBadRequest, "entry path required")
		return
	}

	kind := models.EntryKind(r.URL.Query().Get("type"))
	if kind == "" {
		kind = models.KindFile
	}
	if !kind.Valid() {
		s.sendError(w, http.StatusBadRequest, "unknown entry type: "+string(kind))
		return
	}

	row, err := s.store.Insert(r.Context(), metadata.EntryRow{
		ProjectID: project,
		Path:      path.String(),
		IsDir:     kind == models.KindDir,
	})
	if err != nil {
		metrics.RecordTreeMutation("create", false)
		s.sendStoreError(w, err)
		return
	}

	// Files get an empty blob so a download straight after create works.
	if !row.IsDir {
		if err := s.storage.PutObject(r.Context(), row.ContentKey, bytes.NewReader(nil), 0); err != nil {
			s.store.Delete(r.Context(), project, path.String(), false)
			metrics.RecordTreeMutation("create", false)
			s.sendError(w, http.StatusInternalServerError, "failed to create content: "+err.Error())
			return
		}
	}
	metrics.RecordTreeMutation("create", true)

	logging.Info("entry created",
		zap.String("project", project),
		zap.String("path", path.String()),
		zap.Bool("is_dir", row.IsDir))

	s.publishEvent(protocol.EventCreate, project, path.String(), "", row.IsDir)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"path":   path.String(),
		"is_dir": row.IsDir,
	})
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	project := r.PathValue("project")
	path := models.Clean(r.PathValue("path"))
	if path.IsRoot() {
		s.sendError(w, http.StatusBadRequest, "cannot delete project root")
		return
	}
	recursive := r.URL.Query().Get("recursive") == "true"

	row, err := s.store.Get(r.Context(), project, path.String())
	if err != nil {
		metrics.RecordTreeMutation("delete", false)
		s.sendStoreError(w, err)
		return
	}

	keys, err := s.store.Delete(r.Context(), project, path.String(), recursive)
	if err != nil {
		metrics.RecordTreeMutation("delete", false)
		s.sendStoreError(w, err)
		return
	}
	s.removeBlobs(r.Context(), keys)
	metrics.RecordTreeMutation("delete", true)

	logging.Info("entry deleted",
		zap.String("project", project),
		zap.String("path", path.String()),
		zap.Bool("recursive", recursive))

	s.publishEvent(protocol.EventDelete, project, path.String(), "", row.IsDir)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"path":    path.String(),
		"deleted": true,
	})
}

func (s *Server) handleRename(w http.ResponseWriter, r *http.Request) {
	project := r.PathValue("project")

	var req protocol.RenameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	from := models.Clean(req.From)
	to := models.Clean(req.To)
	if from.IsRoot() || to.IsRoot() {
		s.sendError(w, http.StatusBadRequest, "from and to paths required")
		return
	}

	s.repath(w, r, "rename", protocol.EventRename, project, from, to)
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	project := r.PathValue("project")

	var req protocol.MoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	from := models.Clean(req.From)
	if from.IsRoot() {
		s.sendError(w, http.StatusBadRequest, "from path required")
		return
	}
	// The entry keeps its name and lands inside the target directory.
	to := models.Clean(req.ToDir).Join(from.BaseName())

	s.repath(w, r, "move", protocol.EventMove, project, from, to)
}

// repath runs the shared rename/move flow: both are a store Rename with
// different destination computations.
func (s *Server) repath(w http.ResponseWriter, r *http.Request, operation, eventType string, project string, from, to models.Path) {
	row, err := s.store.Get(r.Context(), project, from.String())
	if err != nil {
		metrics.RecordTreeMutation(operation, false)
		s.sendStoreError(w, err)
		return
	}

	if err := s.store.Rename(r.Context(), project, from.String(), to.String()); err != nil {
		metrics.RecordTreeMutation(operation, false)
		s.sendStoreError(w, err)
		return
	}
	metrics.RecordTreeMutation(operation, true)

	logging.Info("entry re-pathed",
		zap.String("project", project),
		zap.String("operation", operation),
		zap.String("from", from.String()),
		zap.String("to", to.String()))

	s.publishEvent(eventType, project, from.String(), to.String(), row.IsDir)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"from": from.String(),
		"to":   to.String(),
	})
}

func (s *Server) handleDuplicate(w http.ResponseWriter, r *http.Request) {
	project := r.PathValue("project")

	var req protocol.DuplicateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	from := models.Clean(req.From)
	to := models.Clean(req.To)
	if from.IsRoot() || to.IsRoot() {
		s.sendError(w, http.StatusBadRequest, "from and to paths required")
		return
	}

	row, err := s.store.Get(r.Context(), project, from.String())
	if err != nil {
		metrics.RecordTreeMutation("duplicate", false)
		s.sendStoreError(w, err)
		return
	}

	pairs, err := s.store.CopyTree(r.Context(), project, from.String(), to.String())
	if err != nil {
		metrics.RecordTreeMutation("duplicate", false)
		s.sendStoreError(w, err)
		return
	}

	for _, pair := range pairs {
		if err := s.storage.CopyObject(r.Context(), pair.OldKey, pair.NewKey); err != nil {
			// Roll the copy back rather than leave files without content.
			if keys, delErr := s.store.Delete(r.Context(), project, to.String(), true); delErr == nil {
				s.removeBlobs(r.Context(), keys)
			}
			metrics.RecordTreeMutation("duplicate", false)
			s.sendError(w, http.StatusInternalServerError, "failed to copy content: "+err.Error())
			return
		}
	}
	metrics.RecordTreeMutation("duplicate", true)

	logging.Info("entry duplicated",
		zap.String("project", project),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
		zap.Int("files", len(pairs)))

	s.publishEvent(protocol.EventDuplicate, project, from.String(), to.String(), row.IsDir)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"from": from.String(),
		"to":   to.String(),
	})
}
