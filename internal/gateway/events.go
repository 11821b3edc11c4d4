package gateway

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ayo6706/wallet-ledger/internal/domain"
)

type eventOutcome struct {
	txType string
	status bool
}

var eventKinds = map[string]eventOutcome{
	"charge.success":    {txType: domain.TxTypeDeposit, status: true},
	"charge.failed":     {txType: domain.TxTypeDeposit, status: false},
	"transfer.success":  {txType: domain.TxTypeWithdrawal, status: true},
	"transfer.failed":   {txType: domain.TxTypeWithdrawal, status: false},
	"transfer.reversed": {txType: domain.TxTypeWithdrawal, status: false},
}

// webhookEnvelope is the provider callback body. data.id arrives as a number
// from paystack and as a string from the sandbox.
type webhookEnvelope struct {
	Event string `json:"event"`
	Data  struct {
		ID        json.RawMessage `json:"id"`
		Reference string          `json:"reference"`
	} `json:"data"`
}

// Sign returns the hex HMAC-SHA512 digest of payload.
func Sign(secret, payload []byte) string {
	mac := hmac.New(sha512.New, secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func verifySignature(secret []byte, signature string, payload []byte) bool {
	if len(secret) == 0 || signature == "" {
		return false
	}
	expected := Sign(secret, payload)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(signature))))
}

func parseEvent(payload []byte) (*Event, error) {
	var env webhookEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("decode webhook payload: %w", err)
	}
	outcome, ok := eventKinds[env.Event]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnhandledEvent, env.Event)
	}
	return &Event{
		Kind:              env.Event,
		Status:            outcome.status,
		Type:              outcome.txType,
		TransactionID:     strings.TrimSpace(env.Data.Reference),
		ProviderReference: rawID(env.Data.ID),
	}, nil
}

func rawID(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}
