package httpapi

import (
	"errors"
	"net/http"
	"time"

	"storefront-be/internal/apperror"
	"storefront-be/internal/auth"
	"storefront-be/internal/user"
	"storefront-be/internal/utils"
)

func setTokenCookie(w http.ResponseWriter, r *http.Request, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.AccessTokenCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(7 * 24 * time.Hour),
	})
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var in user.RegisterInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	sess, err := h.users.Register(r.Context(), in)
	if errors.Is(err, user.ErrEmailExists) {
		writeMessage(w, http.StatusConflict, string(apperror.KindConflict), apperror.MessageOf(err))
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	setTokenCookie(w, r, sess.Token)
	utils.WriteJSON(w, http.StatusCreated, "Registration successful", sess)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var in user.LoginInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	sess, err := h.users.Login(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	setTokenCookie(w, r, sess.Token)
	utils.WriteJSON(w, http.StatusOK, "Login successful", sess)
}

func (h *Handler) anonymousLogin(w http.ResponseWriter, r *http.Request) {
	sess, err := h.users.AnonymousLogin(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	setTokenCookie(w, r, sess.Token)
	utils.WriteJSON(w, http.StatusCreated, "Anonymous session created", sess)
}

func (h *Handler) adminLogin(w http.ResponseWriter, r *http.Request) {
	var in user.LoginInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	sess, err := h.users.AdminLogin(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	setTokenCookie(w, r, sess.Token)
	utils.WriteJSON(w, http.StatusOK, "Admin login successful", sess)
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	userID, err := caller(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	u, err := h.users.Me(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, "", u)
}
