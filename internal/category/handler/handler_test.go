package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storegate/internal/refdata"
)

type staticCatalog struct {
	products []refdata.Product
	err      error
}

func (c staticCatalog) Products(context.Context) ([]refdata.Product, error) {
	return c.products, c.err
}

func previewRequest(t *testing.T, h *Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	h.Register(r)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/catalog/api/categories/preview-rules",
		bytes.NewReader([]byte(body)))
	r.ServeHTTP(rec, req)
	return rec
}

func TestPreviewMatchesProducts(t *testing.T) {
	h := New(staticCatalog{products: []refdata.Product{
		{ID: 1, Name: "Velvet Sofa", Type: "physical"},
		{ID: 2, Name: "Ebook Bundle", Type: "digital"},
		{ID: 3, Name: "Sofa Cover", Type: "physical"},
	}}, nil)

	rec := previewRequest(t, h, `{
		"match": "all",
		"conditions": [
			{"field": "name", "operator": "contains", "value": "sofa"},
			{"field": "type", "operator": "eq", "value": "physical"}
		]
	}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Total    int `json:"total"`
		Matched  int `json:"matched"`
		Products []struct {
			ID int64 `json:"id"`
		} `json:"products"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Total)
	require.Equal(t, 2, resp.Matched)
	assert.Equal(t, int64(1), resp.Products[0].ID)
	assert.Equal(t, int64(3), resp.Products[1].ID)
}

func TestPreviewAnyCombinator(t *testing.T) {
	h := New(staticCatalog{products: []refdata.Product{
		{ID: 1, Name: "Velvet Sofa", Type: "physical"},
		{ID: 2, Name: "Ebook Bundle", Type: "digital"},
	}}, nil)

	rec := previewRequest(t, h, `{
		"match": "any",
		"conditions": [
			{"field": "type", "operator": "eq", "value": "digital"},
			{"field": "name", "operator": "contains", "value": "sofa"}
		]
	}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Matched int `json:"matched"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Matched)
}

func TestPreviewValidation(t *testing.T) {
	h := New(staticCatalog{}, nil)

	rec := previewRequest(t, h, `{"match": "sometimes", "conditions": []}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = previewRequest(t, h, `{nope`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPreviewCatalogOutage(t *testing.T) {
	h := New(staticCatalog{err: errors.New("upstream down")}, nil)

	rec := previewRequest(t, h, `{
		"match": "all",
		"conditions": [{"field": "name", "operator": "contains", "value": "sofa"}]
	}`)
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
}
