package httpapi

import (
	"net/http"
	"strings"

	"storefront-be/internal/apperror"
	"storefront-be/internal/order"
	"storefront-be/internal/product"
	"storefront-be/internal/utils"
)

func (h *Handler) adminListOrders(w http.ResponseWriter, r *http.Request) {
	f := order.AdminFilter{Pagination: pagination(r)}

	if raw := r.URL.Query().Get("status"); raw != "" {
		s, err := order.ParseStatus(raw)
		if err != nil {
			writeError(w, r, apperror.Validation("Invalid status value"))
			return
		}
		f.Status = &s
	}
	if raw := r.URL.Query().Get("paymentStatus"); raw != "" {
		s, err := order.ParsePaymentStatus(raw)
		if err != nil {
			writeError(w, r, apperror.Validation("Invalid payment status value"))
			return
		}
		f.PaymentStatus = &s
	}

	page, err := h.orders.AdminListOrders(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, "", page)
}

func (h *Handler) adminGetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id", "order id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	o, err := h.orders.AdminGetOrder(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, "", o)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) adminUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id", "order id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	to, err := order.ParseStatus(req.Status)
	if err != nil {
		writeError(w, r, apperror.Validation("Invalid status value"))
		return
	}

	o, err := h.orders.AdminUpdateStatus(r.Context(), id, to)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, "Order status updated", o)
}

func (h *Handler) adminListProducts(w http.ResponseWriter, r *http.Request) {
	q := product.AdminListQuery{
		Search:     strings.TrimSpace(r.URL.Query().Get("search")),
		Pagination: pagination(r),
	}

	var err error
	if q.CollectionID, err = collectionQuery(r); err != nil {
		writeError(w, r, err)
		return
	}
	switch r.URL.Query().Get("isActive") {
	case "":
	case "true":
		q.IsActive = ptrTo(true)
	case "false":
		q.IsActive = ptrTo(false)
	default:
		writeError(w, r, apperror.Validation("Invalid isActive value"))
		return
	}

	page, err := h.products.AdminListProducts(r.Context(), q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, "", page)
}

func (h *Handler) adminGetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id", "product id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	p, err := h.products.AdminGetProduct(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, "", product.ToResponse(p))
}

func (h *Handler) adminCreateProduct(w http.ResponseWriter, r *http.Request) {
	var in product.CreateProductInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	p, err := h.products.CreateProduct(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, "Product created", product.ToResponse(p))
}

func (h *Handler) adminUpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id", "product id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in product.UpdateProductInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	p, err := h.products.UpdateProduct(r.Context(), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, "Product updated", product.ToResponse(p))
}

func (h *Handler) adminDeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id", "product id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.products.DeleteProduct(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, "Product deleted", nil)
}

func (h *Handler) adminCreateCollection(w http.ResponseWriter, r *http.Request) {
	var in product.CreateCollectionInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	c, err := h.products.CreateCollection(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, "Collection created", c)
}

func (h *Handler) adminListCollections(w http.ResponseWriter, r *http.Request) {
	cs, err := h.products.AdminListCollections(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, "", cs)
}

func (h *Handler) adminGetCollection(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id", "collection id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	c, err := h.products.AdminGetCollection(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, "", c)
}

func (h *Handler) adminUpdateCollection(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id", "collection id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in product.UpdateCollectionInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	c, err := h.products.UpdateCollection(r.Context(), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, "Collection updated", c)
}

func (h *Handler) adminDeleteCollection(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id", "collection id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.products.DeleteCollection(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, "Collection deleted", nil)
}

func ptrTo[T any](v T) *T { return &v }
