// Package handler previews smart-category rule sets against the catalog.
package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"storegate/internal/category/evaluator"
	"storegate/internal/category/models"
	"storegate/internal/refdata"
	dErrors "storegate/pkg/domain-errors"
	"storegate/pkg/platform/httputil"
)

// ProductLister supplies the catalog to preview against.
type ProductLister interface {
	Products(ctx context.Context) ([]refdata.Product, error)
}

type Handler struct {
	products ProductLister
	logger   *slog.Logger
}

func New(products ProductLister, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Handler{products: products, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/catalog/api/categories/preview-rules", h.preview)
}

type previewResponse struct {
	Total    int                 `json:"total"`
	Matched  int                 `json:"matched"`
	Products []evaluator.Product `json:"products"`
}

func (h *Handler) preview(w http.ResponseWriter, r *http.Request) {
	var rs models.RuleSet
	if err := json.NewDecoder(r.Body).Decode(&rs); err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInvalidInput, "malformed rule set"))
		return
	}
	if err := rs.Validate(evaluator.ProductFields); err != nil {
		httputil.WriteError(w, err)
		return
	}

	catalog, err := h.products.Products(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "catalog fetch failed", "error", err)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeTimeout, "catalog unavailable"))
		return
	}

	matched := make([]evaluator.Product, 0)
	for _, raw := range catalog {
		p := evaluator.FromRefData(raw)
		if evaluator.Evaluate(rs, evaluator.ProductResolver(p)) {
			matched = append(matched, p)
		}
	}
	httputil.WriteJSON(w, http.StatusOK, previewResponse{
		Total:    len(catalog),
		Matched:  len(matched),
		Products: matched,
	})
}
