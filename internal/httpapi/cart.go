package httpapi

import (
	"net/http"

	"storefront-be/internal/cart"
	"storefront-be/internal/utils"
)

type cartView struct {
	*cart.Cart
	Total     float64 `json:"total"`
	ItemCount int     `json:"itemCount"`
}

func viewCart(c *cart.Cart) cartView {
	return cartView{Cart: c, Total: c.Total(), ItemCount: c.ItemCount()}
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	userID, err := caller(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	c, err := h.carts.GetCart(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, "", viewCart(c))
}

func (h *Handler) addToCart(w http.ResponseWriter, r *http.Request) {
	userID, err := caller(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in cart.AddItemInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	c, err := h.carts.AddItem(r.Context(), userID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, "Item added to cart", viewCart(c))
}

func (h *Handler) updateCartItem(w http.ResponseWriter, r *http.Request) {
	userID, err := caller(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in cart.UpdateItemInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	c, err := h.carts.UpdateItem(r.Context(), userID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, "Cart updated", viewCart(c))
}

func (h *Handler) removeFromCart(w http.ResponseWriter, r *http.Request) {
	userID, err := caller(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	productID, err := uuidParam(r, "productId", "product id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	c, err := h.carts.RemoveItem(r.Context(), userID, productID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, "Item removed from cart", viewCart(c))
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	userID, err := caller(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.carts.Clear(r.Context(), userID); err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, "Cart cleared", nil)
}
