package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/ayo6706/wallet-ledger/internal/api/middleware"
	"github.com/ayo6706/wallet-ledger/internal/api/problem"
	"github.com/ayo6706/wallet-ledger/internal/domain"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

var hideInternalErrors bool

// SetHideInternalErrors replaces the detail of internal errors with a generic message.
func SetHideInternalErrors(hide bool) {
	hideInternalErrors = hide
}

// Envelope is the success body of every API response.
type Envelope struct {
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// RespondJSON writes a JSON response.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// RespondData wraps data in the success envelope.
func RespondData(w http.ResponseWriter, status int, message string, data interface{}) {
	RespondJSON(w, status, Envelope{Status: "success", Message: message, Data: data})
}

// RespondError writes an error response.
func RespondError(w http.ResponseWriter, r *http.Request, status int, problemType, message string) {
	if problemType != "" && problemType != "about:blank" && !strings.HasPrefix(problemType, "http") {
		problemType = problem.Type(problemType)
	}
	problem.Write(w, r, status, problemType, http.StatusText(status), message)
}

// WriteError renders a service error as problem details.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	if domain.KindOf(err) == domain.KindInternal {
		zap.L().Error("request failed",
			zap.Error(err),
			zap.String("path", r.URL.Path),
			zap.String("trace_id", middleware.TraceIDFromContext(r.Context())),
		)
	}
	problem.WriteError(w, r, err, hideInternalErrors)
}

// decodeJSON reads a bounded JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			RespondError(w, r, http.StatusRequestEntityTooLarge, "request/too-large", "Request body too large")
		case errors.Is(err, io.EOF):
			RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Request body is required")
		default:
			RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		}
		return false
	}
	return true
}

func requestPrincipal(w http.ResponseWriter, r *http.Request) (domain.Principal, bool) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized user.")
		return domain.Principal{}, false
	}
	return p, true
}
