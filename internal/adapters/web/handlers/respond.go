package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ztlan/warden/internal/core/domain"
)

// Every response carries status in {success, error} plus either a data
// payload or a human-readable message; 403s add a machine-readable
// rejection reason.

func writeSuccess(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"data":   data,
	})
}

func writeMessage(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"message": message,
	})
}

func writeError(w http.ResponseWriter, err error) {
	body := map[string]any{
		"status":  "error",
		"message": err.Error(),
	}
	code := http.StatusInternalServerError
	switch {
	case errorsIsAuthz(err, body):
		code = http.StatusForbidden
	case errors.Is(err, domain.ErrValidation):
		code = http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		code = http.StatusConflict
	case errors.Is(err, domain.ErrUnavailable):
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, body)
}

func errorsIsAuthz(err error, body map[string]any) bool {
	if reason, ok := domain.IsAuthz(err); ok {
		body["reason"] = reason
		return true
	}
	return false
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}

func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return domain.Validationf("invalid JSON body: %v", err)
	}
	return nil
}
