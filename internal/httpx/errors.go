package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/burelanicolas23/24seven/internal/auth"
	"github.com/burelanicolas23/24seven/internal/market"
	"github.com/burelanicolas23/24seven/internal/orders"
)

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func statusFor(err error) int {
	var verr *orders.ValidationError
	switch {
	case errors.Is(err, market.ErrUnauthenticated), errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, market.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, orders.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, orders.ErrOutOfStock), errors.Is(err, orders.ErrIllegalTransition):
		return http.StatusConflict
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, logger *logrus.Logger, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		logger.WithError(err).Error("Request failed")
		writeJSON(w, code, errorBody{Error: "internal error"})
		return
	}
	body := errorBody{Error: err.Error()}
	var verr *orders.ValidationError
	if errors.As(err, &verr) {
		body.Field = verr.Field
	}
	writeJSON(w, code, body)
}
