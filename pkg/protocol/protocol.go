// Package protocol defines the request and response types of the
// Galley HTTP API, shared by the server and the client.
package protocol

import (
	"time"

	"github.com/galleylabs/galley/pkg/models"
)

// ListResponse is returned by GET /api/v1/projects/{project}/tree/{path}.
// Entries holds exactly one directory level in the store's order.
type ListResponse struct {
	Path    string         `json:"path"`
	Entries []models.Entry `json:"entries"`
}

// ErrorResponse is returned on API errors.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

// CreateQuery names the query parameters of PUT tree/{path}.
// `type` selects what to create: "file" or "dir".
type CreateQuery struct {
	Type models.EntryKind `json:"type"`
}

// RenameRequest is the body for POST /api/v1/projects/{project}/rename.
type RenameRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// MoveRequest is the body for POST /api/v1/projects/{project}/move.
// The entry keeps its name and lands inside ToDir.
type MoveRequest struct {
	From  string `json:"from"`
	ToDir string `json:"to_dir"`
}

// DuplicateRequest is the body for POST /api/v1/projects/{project}/duplicate.
type DuplicateRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// WriteResponse is returned after a content upload.
type WriteResponse struct {
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mtime"`
}

// ProjectInfo describes one project.
type ProjectInfo struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateProjectRequest is the body for POST /api/v1/projects.
type CreateProjectRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TokenRequest is the body for POST /api/v1/auth/token.
type TokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenResponse is returned on a successful login.
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      UserInfo  `json:"user"`
}

// UserInfo describes a user account.
type UserInfo struct {
	Username  string    `json:"username"`
	IsAdmin   bool      `json:"is_admin"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// CreateUserRequest is the body for POST /api/v1/auth/users.
type CreateUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	IsAdmin  bool   `json:"is_admin"`
}

// PasswordRequest is the body for POST /api/v1/auth/password.
type PasswordRequest struct {
	Password string `json:"password"`
}

// SessionInfo describes one issued token.
type SessionInfo struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Change event types carried by the SSE feed.
const (
	EventCreate    = "create"
	EventModify    = "modify"
	EventRename    = "rename"
	EventMove      = "move"
	EventDelete    = "delete"
	EventDuplicate = "duplicate"
)

// ChangeEvent is one entry-level change broadcast over the SSE feed.
// NewPath is set for rename, move, and duplicate.
type ChangeEvent struct {
	Type      string `json:"type"`
	Project   string `json:"project"`
	Path      string `json:"path"`
	NewPath   string `json:"new_path,omitempty"`
	IsDir     bool   `json:"is_dir"`
	Timestamp int64  `json:"timestamp"`
}
