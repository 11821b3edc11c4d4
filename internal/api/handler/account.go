package handler

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/ayo6706/wallet-ledger/internal/domain"
	"github.com/ayo6706/wallet-ledger/internal/service"
)

type AccountHandler struct {
	svc *service.AccountService
}

func NewAccountHandler(svc *service.AccountService) *AccountHandler {
	return &AccountHandler{svc: svc}
}

// ListAccounts returns every account of the caller, or the one in ?currency.
func (h *AccountHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	principal, ok := requestPrincipal(w, r)
	if !ok {
		return
	}

	if currency := r.URL.Query().Get("currency"); currency != "" {
		account, err := h.svc.GetUserAccount(r.Context(), principal.UserID, currency)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		RespondData(w, http.StatusOK, "Account record list.", account)
		return
	}

	accounts, err := h.svc.ListUserAccounts(r.Context(), principal.UserID)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	RespondData(w, http.StatusOK, "Account record list.", accounts)
}

func (h *AccountHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	principal, ok := requestPrincipal(w, r)
	if !ok {
		return
	}
	var req struct {
		Currency string `json:"currency"`
		Channel  string `json:"channel"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	account, err := h.svc.CreateAccount(r.Context(), principal.UserID, req.Currency, req.Channel)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	RespondData(w, http.StatusCreated, "Account record successfully created.", account)
}

func (h *AccountHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	principal, ok := requestPrincipal(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	limit, err := queryInt(q, "limit")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	offset, err := queryInt(q, "offset")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	items, err := h.svc.ListTransactions(r.Context(), service.TransactionFilter{
		UserID:        principal.UserID,
		TransactionID: q.Get("transactionId"),
		AccountID:     q.Get("accountId"),
		Currency:      q.Get("currency"),
		Limit:         limit,
		Offset:        offset,
	})
	if err != nil {
		WriteError(w, r, err)
		return
	}
	RespondData(w, http.StatusOK, "Account Transaction list.", items)
}

// queryInt parses an optional integer query parameter; absent means zero.
func queryInt(q url.Values, name string) (int, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.Validation(fmt.Sprintf("%s must be an integer.", name))
	}
	return n, nil
}
