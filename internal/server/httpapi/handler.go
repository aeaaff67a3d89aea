package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/photokeeper/internal/common"
	"github.com/dmitrijs2005/photokeeper/internal/logging"
	"github.com/dmitrijs2005/photokeeper/internal/server/submissions"
)

type Submitter interface {
	Submit(ctx context.Context, req submissions.Request) (*submissions.Result, error)
}

type Handler struct {
	submitter      Submitter
	maxUploadBytes int64
	logger         logging.Logger
}

func NewHandler(s Submitter, maxUploadBytes int64, logger logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &Handler{submitter: s, maxUploadBytes: maxUploadBytes, logger: logger.With("module", "http_handler")}
}

type originalResponse struct {
	URL   string `json:"url"`
	Key   string `json:"key"`
	Bytes int64  `json:"bytes"`
	Mime  string `json:"mime"`
}

type submitResponse struct {
	ID        string            `json:"id"`
	URL       string            `json:"url"`
	Key       string            `json:"key"`
	Bytes     int64             `json:"bytes"`
	Watermark bool              `json:"watermark"`
	Original  *originalResponse `json:"original,omitempty"`
}

// Submit handles a multipart image submission.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+formOverhead)
	}

	req, err := readSubmission(r, h.maxUploadBytes)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	res, err := h.submitter.Submit(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	resp := submitResponse{
		ID:        res.ID,
		URL:       res.URL,
		Key:       res.Key,
		Bytes:     res.Bytes,
		Watermark: res.Watermark,
	}
	if o := res.Original; o != nil {
		resp.Original = &originalResponse{URL: o.URL, Key: o.Key, Bytes: o.Bytes, Mime: o.ContentType}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	body := map[string]any{"error": msg}
	if errors.Is(err, common.ErrTooLarge) && h.maxUploadBytes > 0 {
		body["limit_mb"] = h.maxUploadBytes >> 20
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error(r.Context(), "submission failed", "status", status, "error", err, "request_id", RequestID(r.Context()))
	} else {
		h.logger.Info(r.Context(), "submission rejected", "status", status, "error", err, "request_id", RequestID(r.Context()))
	}
	writeJSON(w, status, body)
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrNoFile):
		return http.StatusBadRequest, common.ErrNoFile.Error()
	case errors.Is(err, common.ErrInvalidInput):
		return http.StatusBadRequest, "malformed multipart form"
	case errors.Is(err, common.ErrTooLarge):
		return http.StatusRequestEntityTooLarge, common.ErrTooLarge.Error()
	case errors.Is(err, common.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType, common.ErrUnsupportedFormat.Error()
	case errors.Is(err, common.ErrStorageUnauthorized):
		return http.StatusBadGateway, common.ErrStorageUnauthorized.Error()
	case errors.Is(err, common.ErrStorageTooLarge):
		return http.StatusRequestEntityTooLarge, common.ErrStorageTooLarge.Error()
	default:
		return http.StatusInternalServerError, common.ErrorInternal.Error()
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
