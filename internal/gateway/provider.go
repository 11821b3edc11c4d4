// Package gateway integrates external payment providers.
package gateway

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// Name identifies a provider in the closed provider set.
type Name string

const (
	Paystack Name = "paystack"
	Sandbox  Name = "sandbox"
)

var (
	// ErrInvalidSignature means the webhook digest did not match the payload.
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrUnhandledEvent means the payload carried an event kind we do not settle on.
	ErrUnhandledEvent = errors.New("unhandled webhook event")
	// ErrProviderRejected wraps a non-success provider API response.
	ErrProviderRejected = errors.New("provider rejected request")
)

// Provider is the capability set every payment provider implements.
type Provider interface {
	Name() Name
	// SignatureHeader is the request header carrying the webhook signature.
	SignatureHeader() string
	InitializeTransaction(ctx context.Context, req TransactionRequest) (*Checkout, error)
	InitializeTransfer(ctx context.Context, req TransferRequest) (*Transfer, error)
	// GetAccountName returns "" when the bank details do not resolve.
	GetAccountName(ctx context.Context, accountNumber, bankCode string) (string, error)
	VerifyWebhookPayload(signature string, payload []byte) (*Event, error)
}

// TransactionRequest starts a checkout for a pending deposit.
type TransactionRequest struct {
	Reference   string
	Amount      decimal.Decimal
	Currency    string
	Email       string
	CallbackURL string
}

type Checkout struct {
	Reference   string `json:"reference"`
	CheckoutURL string `json:"checkout_url"`
}

// TransferRequest pays out a pending withdrawal to a bank account.
type TransferRequest struct {
	Reference         string
	Amount            decimal.Decimal
	Currency          string
	BankAccountNumber string
	BankCode          string
	BankAccountName   string
}

type Transfer struct {
	ProviderReference string
	Fee               decimal.Decimal
}

// Event is a verified settlement notification.
type Event struct {
	Kind              string
	Status            bool
	Type              string
	TransactionID     string
	ProviderReference string
}
