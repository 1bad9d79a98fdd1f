package httpapi

import (
	"net/http"
	"strings"

	"storefront-be/internal/apperror"
	"storefront-be/internal/product"
	"storefront-be/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	q := product.ListQuery{
		Search:     strings.TrimSpace(r.URL.Query().Get("search")),
		Pagination: pagination(r),
	}

	var err error
	if q.CollectionID, err = collectionQuery(r); err != nil {
		writeError(w, r, err)
		return
	}
	if q.MinPrice, err = floatQuery(r, "minPrice"); err != nil {
		writeError(w, r, err)
		return
	}
	if q.MaxPrice, err = floatQuery(r, "maxPrice"); err != nil {
		writeError(w, r, err)
		return
	}

	page, err := h.products.ListProducts(r.Context(), q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, "", page)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id", "product id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	p, err := h.products.GetProduct(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, "", product.ToResponse(p))
}

func (h *Handler) listCollections(w http.ResponseWriter, r *http.Request) {
	cs, err := h.products.ListCollections(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, "", cs)
}

func (h *Handler) listCollectionProducts(w http.ResponseWriter, r *http.Request) {
	page, err := h.products.ListProductsByCollection(r.Context(), chi.URLParam(r, "slug"), pagination(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, "", page)
}

func collectionQuery(r *http.Request) (*uuid.UUID, error) {
	raw := r.URL.Query().Get("collection")
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, apperror.Validation("Invalid collection")
	}
	return &id, nil
}
