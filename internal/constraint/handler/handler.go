// Package handler exposes the constraints API over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"storegate/internal/constraint/engine"
	"storegate/internal/constraint/models"
	"storegate/pkg/domain"
	dErrors "storegate/pkg/domain-errors"
	"storegate/pkg/platform/httputil"
)

// Service is the subset of the constraint service the handler needs.
type Service interface {
	Create(ctx context.Context, tt models.TargetType, c *models.Constraint) (*models.Constraint, error)
	Update(ctx context.Context, tt models.TargetType, id domain.ConstraintID, c *models.Constraint) (*models.Constraint, error)
	Delete(ctx context.Context, tt models.TargetType, id domain.ConstraintID) error
	Get(ctx context.Context, tt models.TargetType, id domain.ConstraintID) (*models.Constraint, error)
	List(ctx context.Context, tt models.TargetType) ([]*models.Constraint, error)
	BlockedMethods(ctx context.Context, tt models.TargetType, octx models.OrderContext) (map[string][]engine.Block, error)
	CheckMethod(ctx context.Context, tt models.TargetType, octx models.OrderContext, methodID string) (engine.Decision, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Handler{service: service, logger: logger}
}

// Register mounts the constraints API under /api/settings/constraints.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api/settings/constraints/{type}", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Post("/check", h.check)
		r.Post("/blocked", h.blocked)
		r.Get("/{id}", h.get)
		r.Put("/{id}", h.update)
		r.Delete("/{id}", h.delete)
	})
}

func (h *Handler) targetType(w http.ResponseWriter, r *http.Request) (models.TargetType, bool) {
	tt, err := models.ParseTargetType(chi.URLParam(r, "type"))
	if err != nil {
		httputil.WriteError(w, err)
		return "", false
	}
	return tt, true
}

func (h *Handler) constraintID(w http.ResponseWriter, r *http.Request) (domain.ConstraintID, bool) {
	id, err := domain.ParseConstraintID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return domain.ConstraintID{}, false
	}
	return id, true
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	tt, ok := h.targetType(w, r)
	if !ok {
		return
	}
	listed, err := h.service.List(r.Context(), tt)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if listed == nil {
		listed = []*models.Constraint{}
	}
	// The list body is a bare array, clients iterate the response directly.
	httputil.WriteJSON(w, http.StatusOK, listed)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	tt, ok := h.targetType(w, r)
	if !ok {
		return
	}
	var c models.Constraint
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInvalidInput, "malformed request body"))
		return
	}
	created, err := h.service.Create(r.Context(), tt, &c)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, created)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	tt, ok := h.targetType(w, r)
	if !ok {
		return
	}
	id, ok := h.constraintID(w, r)
	if !ok {
		return
	}
	c, err := h.service.Get(r.Context(), tt, id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	tt, ok := h.targetType(w, r)
	if !ok {
		return
	}
	id, ok := h.constraintID(w, r)
	if !ok {
		return
	}
	var c models.Constraint
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInvalidInput, "malformed request body"))
		return
	}
	updated, err := h.service.Update(r.Context(), tt, id, &c)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, updated)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	tt, ok := h.targetType(w, r)
	if !ok {
		return
	}
	id, ok := h.constraintID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), tt, id); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type checkRequest struct {
	MethodID string              `json:"method_id"`
	Order    models.OrderContext `json:"order"`
}

type checkResponse struct {
	Allowed      bool    `json:"allowed"`
	ErrorMessage *string `json:"error_message,omitempty"`
}

func (h *Handler) check(w http.ResponseWriter, r *http.Request) {
	tt, ok := h.targetType(w, r)
	if !ok {
		return
	}
	var req checkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInvalidInput, "malformed request body"))
		return
	}
	if req.MethodID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "method_id is required"))
		return
	}
	decision, err := h.service.CheckMethod(r.Context(), tt, req.Order, req.MethodID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, checkResponse{
		Allowed:      decision.Allowed,
		ErrorMessage: decision.ErrorMessage,
	})
}

type blockedRequest struct {
	Order models.OrderContext `json:"order"`
}

type blockedEntry struct {
	ConstraintID     string `json:"constraint_id"`
	ConstraintName   string `json:"constraint_name"`
	Reason           string `json:"reason"`
	FailingCondition string `json:"failing_condition"`
}

func (h *Handler) blocked(w http.ResponseWriter, r *http.Request) {
	tt, ok := h.targetType(w, r)
	if !ok {
		return
	}
	var req blockedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInvalidInput, "malformed request body"))
		return
	}
	blocked, err := h.service.BlockedMethods(r.Context(), tt, req.Order)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make(map[string][]blockedEntry, len(blocked))
	for methodID, blocks := range blocked {
		entries := make([]blockedEntry, 0, len(blocks))
		for _, b := range blocks {
			entries = append(entries, blockedEntry{
				ConstraintID:     b.ConstraintID.String(),
				ConstraintName:   b.ConstraintName,
				Reason:           b.Reason,
				FailingCondition: string(b.FailingCondition),
			})
		}
		out[methodID] = entries
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"blocked_methods": out})
}
