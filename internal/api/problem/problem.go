// Package problem renders RFC 7807 problem details for the wallet API.
package problem

import (
	"encoding/json"
	"net/http"

	"github.com/ayo6706/wallet-ledger/internal/domain"
)

const (
	contentType = "application/problem+json"
	baseTypeURL = "https://errors.wallet-ledger.dev/"

	// GenericDetail replaces the detail of internal errors when they are hidden.
	GenericDetail = "unexpected server error"
)

// Details represents RFC 7807 Problem Details.
type Details struct {
	Type      string `json:"type"`
	Title     string `json:"title"`
	Status    int    `json:"status"`
	Detail    string `json:"detail"`
	Instance  string `json:"instance"`
	RequestID string `json:"request_id"`
}

// Kind is the rendering of one domain error kind.
type Kind struct {
	Status int
	Slug   string
	Title  string
}

var kinds = map[domain.ErrorKind]Kind{
	domain.KindValidation:        {http.StatusBadRequest, "request/invalid", "Invalid Request"},
	domain.KindUnauthorized:      {http.StatusUnauthorized, "auth/unauthorized", "Unauthorized"},
	domain.KindNotFound:          {http.StatusNotFound, "resource/not-found", "Not Found"},
	domain.KindConflict:          {http.StatusConflict, "resource/conflict", "Conflict"},
	domain.KindInsufficientFunds: {http.StatusUnprocessableEntity, "funds/insufficient", "Insufficient Funds"},
	domain.KindUnprocessable:     {http.StatusUnprocessableEntity, "request/unprocessable", "Unprocessable Operation"},
	domain.KindRateLimited:       {http.StatusTooManyRequests, "rate-limit-exceeded", "Too Many Requests"},
	domain.KindInternal:          {http.StatusInternalServerError, "internal-server-error", "Internal Server Error"},
}

// ForKind returns the rendering of kind; unknown kinds render as internal.
func ForKind(kind domain.ErrorKind) Kind {
	if k, ok := kinds[kind]; ok {
		return k
	}
	return kinds[domain.KindInternal]
}

func Type(slug string) string {
	return baseTypeURL + slug
}

// WriteError renders a typed domain error. With hideInternal set, internal
// errors carry GenericDetail instead of their message.
func WriteError(w http.ResponseWriter, r *http.Request, err error, hideInternal bool) {
	kind := domain.KindOf(err)
	k := ForKind(kind)
	detail := domain.MessageOf(err)
	if kind == domain.KindInternal && (hideInternal || detail == "") {
		detail = GenericDetail
	}
	Write(w, r, k.Status, Type(k.Slug), k.Title, detail)
}

// Write sends RFC 7807-compliant errors.
func Write(w http.ResponseWriter, r *http.Request, status int, problemType, title, detail string) {
	if title == "" {
		title = http.StatusText(status)
	}
	if problemType == "" {
		problemType = "about:blank"
	}
	instance := ""
	requestID := w.Header().Get("X-Trace-ID")
	if r != nil {
		instance = r.URL.Path
		if requestID == "" {
			requestID = r.Header.Get("X-Trace-ID")
		}
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Details{
		Type:      problemType,
		Title:     title,
		Status:    status,
		Detail:    detail,
		Instance:  instance,
		RequestID: requestID,
	})
}
