package handler

import (
	"net/http"

	"github.com/ayo6706/wallet-ledger/internal/service"
	"github.com/shopspring/decimal"
)

// FundsHandler exposes deposits, withdrawals and internal transfers.
type FundsHandler struct {
	funds *service.FundsService
}

func NewFundsHandler(funds *service.FundsService) *FundsHandler {
	return &FundsHandler{funds: funds}
}

type depositRequest struct {
	Currency string          `json:"currency"`
	Amount   decimal.Decimal `json:"amount"`
}

type withdrawRequest struct {
	Currency          string          `json:"currency"`
	Amount            decimal.Decimal `json:"amount"`
	BankAccountNumber string          `json:"bankAccountNumber"`
	BankCode          string          `json:"bankCode"`
}

type transferRequest struct {
	Currency   string          `json:"currency"`
	Amount     decimal.Decimal `json:"amount"`
	ReceiverID string          `json:"receiverId"`
}

func (h *FundsHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	principal, ok := requestPrincipal(w, r)
	if !ok {
		return
	}
	var req depositRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.funds.InitializeDeposit(r.Context(), principal, req.Currency, req.Amount)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	RespondData(w, http.StatusOK, "Deposit link successfully created.", result)
}

func (h *FundsHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	principal, ok := requestPrincipal(w, r)
	if !ok {
		return
	}
	var req withdrawRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	tx, err := h.funds.InitializeWithdraw(r.Context(), principal, service.WithdrawRequest{
		Currency:          req.Currency,
		Amount:            req.Amount,
		BankAccountNumber: req.BankAccountNumber,
		BankCode:          req.BankCode,
	})
	if err != nil {
		WriteError(w, r, err)
		return
	}
	RespondData(w, http.StatusOK, "Withdraw transaction successfully initiated.", tx)
}

func (h *FundsHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	principal, ok := requestPrincipal(w, r)
	if !ok {
		return
	}
	var req transferRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	tx, err := h.funds.TransferFunds(r.Context(), principal, service.TransferRequest{
		Currency:   req.Currency,
		Amount:     req.Amount,
		ReceiverID: req.ReceiverID,
	})
	if err != nil {
		WriteError(w, r, err)
		return
	}
	RespondData(w, http.StatusOK, "Transfer transaction successfully done.", tx)
}
