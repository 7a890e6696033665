package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/galleylabs/galley/internal/auth"
	"github.com/galleylabs/galley/internal/logging"
	"github.com/galleylabs/galley/pkg/protocol"
)

// ─── Admin: Users ───────────────────────────────────────────────────────────

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.auth.ListUsers(r.Context())
	if err != nil {
		s.sendStoreError(w, err)
		return
	}

	out := make([]protocol.UserInfo, 0, len(users))
	for _, u := range users {
		out = append(out, protocol.UserInfo{
			Username:  u.Username,
			IsAdmin:   u.IsAdmin,
			CreatedAt: u.CreatedAt,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req protocol.CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		s.sendError(w, http.StatusBadRequest, "username and password required")
		return
	}

	user, err := s.auth.CreateUser(r.Context(), req.Username, req.Password, req.IsAdmin)
	if err != nil {
		s.sendStoreError(w, err)
		return
	}

	logging.Info("admin created user", zap.String("username", user.Username), zap.Bool("is_admin", user.IsAdmin))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(protocol.UserInfo{
		Username:  user.Username,
		IsAdmin:   user.IsAdmin,
		CreatedAt: user.CreatedAt,
	})
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")

	claims := auth.GetClaims(r.Context())
	if claims != nil && claims.Username == username {
		s.sendError(w, http.StatusBadRequest, "cannot delete yourself")
		return
	}

	if err := s.auth.DeleteUser(r.Context(), username); err != nil {
		s.sendStoreError(w, err)
		return
	}

	logging.Info("admin deleted user", zap.String("username", username))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"username": username,
		"deleted":  true,
	})
}

// ─── Sessions ───────────────────────────────────────────────────────────────

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.auth.ListSessions(r.Context())
	if err != nil {
		s.sendStoreError(w, err)
		return
	}

	out := make([]protocol.SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		if sess.Revoked {
			continue
		}
		out = append(out, protocol.SessionInfo{
			ID:        strconv.FormatInt(sess.ID, 10),
			Username:  sess.Username,
			CreatedAt: sess.CreatedAt,
			ExpiresAt: sess.ExpiresAt,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

func (s *Server) handleRevokeSession(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid session id")
		return
	}

	if err := s.auth.RevokeSession(r.Context(), id); err != nil {
		s.sendStoreError(w, err)
		return
	}

	logging.Info("session revoked", zap.Int64("session_id", id))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"id":      strconv.FormatInt(id, 10),
		"revoked": true,
	})
}

// ─── Password (self-service) ────────────────────────────────────────────────

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r.Context())
	if claims == nil {
		s.sendError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req protocol.PasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Password == "" {
		s.sendError(w, http.StatusBadRequest, "password required")
		return
	}

	if err := s.auth.ChangePassword(r.Context(), claims.Username, req.Password); err != nil {
		s.sendStoreError(w, err)
		return
	}

	logging.Info("password changed", zap.String("username", claims.Username))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"changed": true})
}
