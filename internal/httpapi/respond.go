package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"storefront-be/internal/apperror"
	"storefront-be/internal/logger"
	"storefront-be/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var errBadBody = errors.New("malformed request body")

// writeError maps a service error onto the response envelope. Internal
// failures are logged here and never leak their cause.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperror.KindOf(err)
	if kind == apperror.KindInternal {
		logger.FromCtx(r.Context()).Error("request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	utils.WriteJSONError(w, apperror.HTTPStatus(kind), string(kind), apperror.MessageOf(err))
}

func writeMessage(w http.ResponseWriter, code int, kind, msg string) {
	utils.WriteJSONError(w, code, kind, msg)
}

// decodeJSON reads a JSON body into dst. An empty body leaves dst untouched.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return apperror.Wrap(apperror.KindValidation, "Invalid request body", errBadBody)
	}
	return nil
}

func uuidParam(r *http.Request, name, label string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, apperror.Validation("Invalid " + label)
	}
	return id, nil
}

// caller returns the authenticated user id set by the auth middleware.
func caller(r *http.Request) (uuid.UUID, error) {
	id, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		return uuid.Nil, apperror.Unauthorized("Not authorised")
	}
	return id, nil
}

func pagination(r *http.Request) utils.Pagination {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	return utils.Pagination{Page: page, Limit: limit}
}

func floatQuery(r *http.Request, key string) (*float64, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, apperror.Validation("Invalid " + key)
	}
	return &v, nil
}
