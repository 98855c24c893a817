package httpapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/dmitrijs2005/memorelay/internal/logging"
	"github.com/dmitrijs2005/memorelay/internal/server/models"
	"github.com/dmitrijs2005/memorelay/internal/server/validation"
)

// MemoService is the business layer behind the memo endpoints.
type MemoService interface {
	Seal(ctx context.Context, id string, body []byte) (*models.Memo, error)
	Open(ctx context.Context, id string) (*models.Memo, error)
	Exists(ctx context.Context, id string) (bool, error)
	Ping(ctx context.Context) error
}

// Handler serves /api/memo/{id} and /api/health.
type Handler struct {
	svc          MemoService
	logger       logging.Logger
	maxBodyBytes int64
}

func NewHandler(svc MemoService, logger logging.Logger, maxBodyBytes int64) *Handler {
	return &Handler{svc: svc, logger: logger, maxBodyBytes: maxBodyBytes}
}

type sealResponse struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
}

type memoResponse struct {
	Ciphertext string          `json:"ciphertext"`
	IV         string          `json:"iv"`
	Salt       string          `json:"salt"`
	KDF        json.RawMessage `json:"kdf"`
	CreatedAt  int64           `json:"createdAt"`
	ExpiresAt  int64           `json:"expiresAt"`
}

func newMemoResponse(m *models.Memo) memoResponse {
	enc := base64.StdEncoding
	return memoResponse{
		Ciphertext: enc.EncodeToString(m.Ciphertext),
		IV:         enc.EncodeToString(m.IV),
		Salt:       enc.EncodeToString(m.Salt),
		KDF:        m.KDF,
		CreatedAt:  m.CreatedAt.UnixMilli(),
		ExpiresAt:  m.ExpiresAt.UnixMilli(),
	}
}

// Memo dispatches on the request method after validating the identifier.
func (h *Handler) Memo(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := validation.ValidateIdentifier(id); err != nil {
		h.writeError(r.Context(), w, err)
		return
	}

	switch r.Method {
	case http.MethodPut:
		h.seal(w, r, id)
	case http.MethodGet:
		h.open(w, r, id)
	case http.MethodHead:
		h.exists(w, r, id)
	default:
		writeAPIError(w, errMethodNotAllowed)
	}
}

func (h *Handler) seal(w http.ResponseWriter, r *http.Request, id string) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(r.Context(), w, validation.ErrPayloadTooLarge)
			return
		}
		h.writeError(r.Context(), w, validation.ErrInvalidJSON)
		return
	}

	if _, err := h.svc.Seal(r.Context(), id, body); err != nil {
		h.writeError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, sealResponse{ID: id, Success: true})
}

func (h *Handler) open(w http.ResponseWriter, r *http.Request, id string) {
	m, err := h.svc.Open(r.Context(), id)
	if err != nil {
		h.writeError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, newMemoResponse(m))
}

func (h *Handler) exists(w http.ResponseWriter, r *http.Request, id string) {
	ok, err := h.svc.Exists(r.Context(), id)
	switch {
	case err != nil:
		e, known := classify(err)
		if !known {
			h.logger.Error(r.Context(), "request failed", "error", err)
		}
		w.WriteHeader(e.status)
	case ok:
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// Health answers 204 while the store responds to a ping and 503 otherwise.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Ping(r.Context()); err != nil {
		h.logger.Warn(r.Context(), "store ping failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
