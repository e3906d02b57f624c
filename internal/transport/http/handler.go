package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/memory"
	"github.com/cwrk-planet/chat-service/internal/metrics"
	"github.com/cwrk-planet/chat-service/internal/service"
	"github.com/cwrk-planet/chat-service/internal/session"
	"github.com/cwrk-planet/chat-service/pkg/logger"

	"github.com/go-chi/chi/v5"
)

// multipart framing on top of the file itself
const formOverhead = 1 << 20

type ErrorResponse struct {
	Error string `json:"error"`
}

type Handler struct {
	registry *memory.Registry
	channels *memory.ChannelStore
	uploads  *service.UploadService
	metrics  *metrics.Metrics
}

func NewHandler(registry *memory.Registry, channels *memory.ChannelStore, uploads *service.UploadService, m *metrics.Metrics) *Handler {
	return &Handler{
		registry: registry,
		channels: channels,
		uploads:  uploads,
		metrics:  m,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// GET /api/channels
func (h *Handler) ListChannels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.channels.Names())
}

// GET /api/users
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, session.Roster(h.registry, h.channels))
}

type ChatHistoryResponse struct {
	Items      []domain.Message `json:"items"`
	NextCursor string           `json:"nextCursor,omitempty"`
}

// GET /api/channels/{name}/messages?cursor=&limit=
func (h *Handler) GetChannelHistory(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			limit = n
		}
	}

	page, err := h.channels.Page(name, r.URL.Query().Get("cursor"), limit)
	if err != nil {
		switch {
		case errors.Is(err, memory.ErrInvalidCursor):
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid_cursor"})
		case errors.Is(err, memory.ErrUnknownChannel):
			writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "channel not found"})
		default:
			logger.FromContext(r.Context()).Error("handler.GetChannelHistory:", slog.Any("err", err))
			writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		}
		return
	}

	writeJSON(w, http.StatusOK, ChatHistoryResponse{Items: page.Items, NextCursor: page.NextCursor})
}

// POST /api/upload (multipart, field "file")
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	if limit := h.uploads.MaxSize(); limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit+formOverhead)
	}

	file, hdr, err := r.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		switch {
		case errors.As(err, &tooBig):
			h.metrics.Upload("too_large")
			writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{Error: "File too large"})
		default:
			h.metrics.Upload("missing")
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "No file uploaded"})
		}
		return
	}
	defer file.Close()

	f, err := h.uploads.Save(r.Context(), hdr.Filename, hdr.Header.Get("Content-Type"), file)
	if err != nil {
		if errors.Is(err, service.ErrFileTooLarge) {
			h.metrics.Upload("too_large")
			writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{Error: "File too large"})
			return
		}
		h.metrics.Upload("error")
		log.Error("handler.Upload:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "upload failed"})
		return
	}

	h.metrics.Upload("ok")
	log.Info("file uploaded", "file_name", f.Name, "file_url", f.URL, "size", hdr.Size)
	writeJSON(w, http.StatusOK, f)
}
