package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/golang/glog"

	"quiz-attempt-service/internal/domain"
)

type errorPayload struct {
	Message       string `json:"message"`
	QuestionIndex *int   `json:"questionIndex,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		glog.Warningf("write response: %v", err)
	}
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorPayload{Message: msg})
}

// writeError maps domain errors onto HTTP status codes. Anything unknown is
// logged and reported as a 500 without details.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		payload := errorPayload{Message: verr.Error()}
		if verr.QuestionIndex >= 0 {
			idx := verr.QuestionIndex
			payload.QuestionIndex = &idx
		}
		writeJSON(w, http.StatusBadRequest, payload)
	case domain.IsNotFound(err):
		writeMessage(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrAccessDenied):
		writeMessage(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrAlreadySubmitted):
		writeMessage(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrValidation):
		writeMessage(w, http.StatusBadRequest, err.Error())
	default:
		glog.Errorf("%s %s: %v", r.Method, r.URL.Path, err)
		writeMessage(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	return nil
}

// queryInt returns 0 for a missing or malformed parameter.
func queryInt(r *http.Request, key string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return 0
	}
	return n
}

func mustIdentity(r *http.Request) domain.Identity {
	identity, _ := IdentityFrom(r.Context())
	return identity
}
