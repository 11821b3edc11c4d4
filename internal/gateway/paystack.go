package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ayo6706/wallet-ledger/internal/domain"
	"go.uber.org/zap"
)

const (
	DefaultPaystackBaseURL  = "https://api.paystack.co"
	PaystackSignatureHeader = "X-Paystack-Signature"
)

var checkoutChannels = []string{"card", "bank", "ussd", "mobile_money", "bank_transfer"}

type PaystackConfig struct {
	SecretKey string
	BaseURL   string
	Timeout   time.Duration
	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
}

// PaystackProvider talks to the Paystack REST API. Amounts cross the wire in kobo.
type PaystackProvider struct {
	secret  []byte
	baseURL string
	client  *http.Client
}

func NewPaystack(cfg PaystackConfig) *PaystackProvider {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultPaystackBaseURL
	}
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &PaystackProvider{
		secret:  []byte(cfg.SecretKey),
		baseURL: baseURL,
		client:  client,
	}
}

func (p *PaystackProvider) Name() Name { return Paystack }

func (p *PaystackProvider) SignatureHeader() string { return PaystackSignatureHeader }

type paystackResponse struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type apiError struct {
	status  int
	message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("paystack: http %d: %s", e.status, e.message)
}

func (e *apiError) Unwrap() error { return ErrProviderRejected }

func (p *PaystackProvider) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+string(p.secret))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("paystack %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var envelope paystackResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return &apiError{status: resp.StatusCode, message: "malformed response body"}
	}
	if resp.StatusCode >= http.StatusBadRequest || !envelope.Status {
		zap.L().Warn("paystack request rejected",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("message", envelope.Message),
		)
		return &apiError{status: resp.StatusCode, message: envelope.Message}
	}
	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("decode response data: %w", err)
		}
	}
	return nil
}

func (p *PaystackProvider) InitializeTransaction(ctx context.Context, req TransactionRequest) (*Checkout, error) {
	payload := map[string]any{
		"reference":    req.Reference,
		"email":        req.Email,
		"amount":       domain.ToMinorUnits(req.Amount),
		"currency":     req.Currency,
		"callback_url": req.CallbackURL,
		"channels":     checkoutChannels,
		"metadata":     map[string]any{},
	}
	var data struct {
		AuthorizationURL string `json:"authorization_url"`
		Reference        string `json:"reference"`
	}
	if err := p.do(ctx, http.MethodPost, "/transaction/initialize", payload, &data); err != nil {
		return nil, fmt.Errorf("initialize transaction: %w", err)
	}
	return &Checkout{Reference: data.Reference, CheckoutURL: data.AuthorizationURL}, nil
}

func (p *PaystackProvider) InitializeTransfer(ctx context.Context, req TransferRequest) (*Transfer, error) {
	var recipient struct {
		RecipientCode string `json:"recipient_code"`
	}
	if err := p.do(ctx, http.MethodPost, "/transferrecipient", map[string]any{
		"type":           "nuban",
		"name":           req.BankAccountName,
		"account_number": req.BankAccountNumber,
		"bank_code":      req.BankCode,
		"currency":       req.Currency,
	}, &recipient); err != nil {
		return nil, fmt.Errorf("create transfer recipient: %w", err)
	}

	var transfer struct {
		ID           json.RawMessage `json:"id"`
		TransferCode string          `json:"transfer_code"`
		Fee          int64           `json:"fee"`
	}
	if err := p.do(ctx, http.MethodPost, "/transfer", map[string]any{
		"source":    "balance",
		"amount":    domain.ToMinorUnits(req.Amount),
		"recipient": recipient.RecipientCode,
		"reference": req.Reference,
		"currency":  req.Currency,
	}, &transfer); err != nil {
		return nil, fmt.Errorf("initiate transfer: %w", err)
	}

	ref := rawID(transfer.ID)
	if ref == "" {
		ref = transfer.TransferCode
	}
	return &Transfer{ProviderReference: ref, Fee: domain.FromMinorUnits(transfer.Fee)}, nil
}

// GetAccountName resolves a NUBAN. A rejected lookup yields "" with no error.
func (p *PaystackProvider) GetAccountName(ctx context.Context, accountNumber, bankCode string) (string, error) {
	q := url.Values{}
	q.Set("account_number", accountNumber)
	q.Set("bank_code", bankCode)

	var data struct {
		AccountName string `json:"account_name"`
	}
	err := p.do(ctx, http.MethodGet, "/bank/resolve?"+q.Encode(), nil, &data)
	if err != nil {
		var rejected *apiError
		if errors.As(err, &rejected) {
			return "", nil
		}
		return "", fmt.Errorf("resolve bank account: %w", err)
	}
	return strings.TrimSpace(data.AccountName), nil
}

func (p *PaystackProvider) VerifyWebhookPayload(signature string, payload []byte) (*Event, error) {
	if !verifySignature(p.secret, signature, payload) {
		return nil, ErrInvalidSignature
	}
	return parseEvent(payload)
}
