package httpapi

import (
	"net/http"

	"storefront-be/internal/payment"
	"storefront-be/internal/utils"
)

func (h *Handler) simulatePayment(w http.ResponseWriter, r *http.Request) {
	userID, err := caller(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in payment.SimulateInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.payments.Simulate(r.Context(), userID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	msg := "Payment declined (simulated). Please try again."
	if res.Success {
		msg = "Payment successful! Your order is now being processed."
	}
	utils.WriteJSONStatus(w, http.StatusCreated, res.Success, msg, res)
}

func (h *Handler) paymentHistory(w http.ResponseWriter, r *http.Request) {
	userID, err := caller(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	entries, err := h.payments.History(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, "", entries)
}

func (h *Handler) getPayment(w http.ResponseWriter, r *http.Request) {
	userID, err := caller(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	orderID, err := uuidParam(r, "orderId", "order id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	p, err := h.payments.LatestForOrder(r.Context(), userID, orderID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, "", p)
}
