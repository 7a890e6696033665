package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/galleylabs/galley/internal/logging"
	"github.com/galleylabs/galley/internal/metrics"
	"github.com/galleylabs/galley/pkg/models"
	"github.com/galleylabs/galley/pkg/protocol"
)

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	project := r.PathValue("project")
	p := models.Clean(r.PathValue("path"))
	if p.IsRoot() {
		s.sendError(w, http.StatusBadRequest, "file path required")
		return
	}

	row, err := s.store.Get(r.Context(), project, p.String())
	if err != nil {
		s.sendStoreError(w, err)
		return
	}
	if row.IsDir {
		s.sendError(w, http.StatusConflict, "is a directory: "+p.String())
		return
	}

	offset, length, hasRange := parseRangeHeader(r.Header.Get("Range"), row.Size)

	reader, _, err := s.storage.GetObject(r.Context(), row.ContentKey, offset, length)
	if err != nil {
		s.sendError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer reader.Close()

	ct := mime.TypeByExtension(path.Ext(p.String()))
	if ct == "" {
		ct = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ct)

	if hasRange {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", offset, offset+length-1, row.Size))
		w.Header().Set("Content-Length", strconv.FormatInt(length, 10))
		w.WriteHeader(http.StatusPartialContent)
	} else {
		w.Header().Set("Content-Length", strconv.FormatInt(row.Size, 10))
		w.WriteHeader(http.StatusOK)
	}

	n, err := io.Copy(w, reader)
	if err != nil {
		logging.Warn("content transfer error", zap.String("path", r.URL.Path), zap.Error(err))
	}
	metrics.RecordContentDownload(n)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	project := r.PathValue("project")
	p := models.Clean(r.PathValue("path"))
	if p.IsRoot() {
		s.sendError(w, http.StatusBadRequest, "file path required")
		return
	}

	row, err := s.store.Get(r.Context(), project, p.String())
	if err != nil {
		s.sendStoreError(w, err)
		return
	}
	if row.IsDir {
		s.sendError(w, http.StatusConflict, "is a directory: "+p.String())
		return
	}

	if r.ContentLength > s.maxUploadSize {
		s.sendError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("file too large: max %d bytes", s.maxUploadSize))
		return
	}

	content, err := io.ReadAll(io.LimitReader(r.Body, s.maxUploadSize+1))
	if err != nil {
		s.sendError(w, http.StatusInternalServerError, "failed to read content")
		return
	}
	if int64(len(content)) > s.maxUploadSize {
		s.sendError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("file too large: max %d bytes", s.maxUploadSize))
		return
	}

	if err := s.storage.PutObject(r.Context(), row.ContentKey, bytes.NewReader(content), int64(len(content))); err != nil {
		metrics.RecordTreeMutation("modify", false)
		s.sendError(w, http.StatusInternalServerError, "failed to store content: "+err.Error())
		return
	}

	size := int64(len(content))
	modTime := time.Now().UTC()
	if err := s.store.UpdateFile(r.Context(), project, p.String(), size, modTime); err != nil {
		metrics.RecordTreeMutation("modify", false)
		s.sendStoreError(w, err)
		return
	}
	metrics.RecordContentUpload(size)
	metrics.RecordTreeMutation("modify", true)

	logging.Info("content written",
		zap.String("project", project),
		zap.String("path", p.String()),
		zap.Int64("size", size))

	s.publishEvent(protocol.EventModify, project, p.String(), "", false)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(protocol.WriteResponse{
		Path:    p.String(),
		Size:    size,
		ModTime: modTime,
	})
}
