package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/galleylabs/galley/internal/logging"
	"github.com/galleylabs/galley/internal/metrics"
	"github.com/galleylabs/galley/pkg/protocol"
)

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.store.Projects(r.Context())
	if err != nil {
		s.sendStoreError(w, err)
		return
	}

	out := make([]protocol.ProjectInfo, 0, len(projects))
	for _, p := range projects {
		out = append(out, protocol.ProjectInfo{
			ID:        p.ID,
			Name:      p.Name,
			CreatedAt: p.CreatedAt,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req protocol.CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ID == "" {
		s.sendError(w, http.StatusBadRequest, "project id required")
		return
	}
	if strings.ContainsAny(req.ID, "/\\") {
		s.sendError(w, http.StatusBadRequest, "project id must not contain path separators")
		return
	}
	if req.Name == "" {
		req.Name = req.ID
	}

	project, err := s.store.CreateProject(r.Context(), req.ID, req.Name)
	if err != nil {
		s.sendStoreError(w, err)
		return
	}

	logging.Info("project created", zap.String("project", project.ID), zap.String("name", project.Name))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(protocol.ProjectInfo{
		ID:        project.ID,
		Name:      project.Name,
		CreatedAt: project.CreatedAt,
	})
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("project")

	keys, err := s.store.DeleteProject(r.Context(), id)
	if err != nil {
		s.sendStoreError(w, err)
		return
	}
	s.removeBlobs(r.Context(), keys)
	metrics.DropProjectEntries(id)

	logging.Info("project deleted", zap.String("project", id), zap.Int("blobs", len(keys)))

	s.publishEvent(protocol.EventDelete, id, "", "", true)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"project": id,
		"deleted": true,
	})
}
