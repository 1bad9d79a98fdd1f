package httpapi

import (
	"net/http"

	"storefront-be/internal/order"
	"storefront-be/internal/utils"
)

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	userID, err := caller(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in order.PlaceOrderInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	o, err := h.orders.PlaceOrder(r.Context(), userID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, "Order placed successfully", o)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	userID, err := caller(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	page, err := h.orders.ListOrders(r.Context(), userID, pagination(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, "", page)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	userID, err := caller(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	orderID, err := uuidParam(r, "id", "order id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	o, err := h.orders.GetOrder(r.Context(), userID, orderID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, "", o)
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	userID, err := caller(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	orderID, err := uuidParam(r, "id", "order id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	o, err := h.orders.CancelOrder(r.Context(), userID, orderID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, "Order cancelled and stock restored", o)
}
