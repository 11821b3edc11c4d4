package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const SandboxSignatureHeader = "X-Sandbox-Signature"

// SandboxProvider simulates a payment provider in-process. It is registered
// when no real provider key is configured and backs local development.
type SandboxProvider struct {
	secret      []byte
	checkoutURL string
	// RejectTransfers makes InitializeTransfer fail as a provider rejection.
	RejectTransfers bool
}

func NewSandbox(secret, checkoutURL string) *SandboxProvider {
	if checkoutURL == "" {
		checkoutURL = "http://localhost:8080/sandbox/checkout"
	}
	return &SandboxProvider{secret: []byte(secret), checkoutURL: checkoutURL}
}

func (s *SandboxProvider) Name() Name { return Sandbox }

func (s *SandboxProvider) SignatureHeader() string { return SandboxSignatureHeader }

func (s *SandboxProvider) InitializeTransaction(ctx context.Context, req TransactionRequest) (*Checkout, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("sandbox call canceled: %w", err)
	}
	return &Checkout{
		Reference:   req.Reference,
		CheckoutURL: fmt.Sprintf("%s/%s", s.checkoutURL, req.Reference),
	}, nil
}

func (s *SandboxProvider) InitializeTransfer(ctx context.Context, req TransferRequest) (*Transfer, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("sandbox call canceled: %w", err)
	}
	if s.RejectTransfers {
		return nil, fmt.Errorf("sandbox transfer %s: %w", req.Reference, ErrProviderRejected)
	}
	return &Transfer{
		ProviderReference: "SBX-" + uuid.NewString(),
		Fee:               decimal.Zero,
	}, nil
}

// GetAccountName resolves any 10 digit account number.
func (s *SandboxProvider) GetAccountName(ctx context.Context, accountNumber, bankCode string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("sandbox call canceled: %w", err)
	}
	if len(accountNumber) != 10 || bankCode == "" {
		return "", nil
	}
	for _, c := range accountNumber {
		if c < '0' || c > '9' {
			return "", nil
		}
	}
	return "SANDBOX " + accountNumber, nil
}

func (s *SandboxProvider) VerifyWebhookPayload(signature string, payload []byte) (*Event, error) {
	if !verifySignature(s.secret, signature, payload) {
		return nil, ErrInvalidSignature
	}
	return parseEvent(payload)
}

// SignedEvent builds a webhook body for kind and returns it with its signature.
func (s *SandboxProvider) SignedEvent(kind, transactionID, providerReference string) ([]byte, string, error) {
	body, err := json.Marshal(map[string]any{
		"event": kind,
		"data": map[string]any{
			"id":        providerReference,
			"reference": transactionID,
		},
	})
	if err != nil {
		return nil, "", fmt.Errorf("encode sandbox event: %w", err)
	}
	return body, Sign(s.secret, body), nil
}
