package handler

import (
	"io"
	"net/http"

	"github.com/ayo6706/wallet-ledger/internal/service"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// WebhookHandler receives provider settlement callbacks.
type WebhookHandler struct {
	funds *service.FundsService
}

func NewWebhookHandler(funds *service.FundsService) *WebhookHandler {
	return &WebhookHandler{funds: funds}
}

// Handle serves POST /v1/webhooks/{provider}. Every delivery is acknowledged
// with 200; rejected events are only logged.
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	logger := zap.L().With(zap.String("provider", provider))

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		logger.Warn("read webhook body failed", zap.Error(err))
		acknowledge(w)
		return
	}

	var signature string
	if header, ok := h.funds.SignatureHeader(provider); ok {
		signature = r.Header.Get(header)
	}

	result, err := h.funds.HandleWebhook(r.Context(), provider, signature, body)
	if err != nil {
		logger.Error("process webhook failed", zap.Error(err))
	} else if result.Applied {
		logger.Info("webhook settled transaction",
			zap.String("transaction_id", result.TransactionID),
			zap.String("status", result.Status),
		)
	}
	acknowledge(w)
}

func acknowledge(w http.ResponseWriter) {
	RespondJSON(w, http.StatusOK, map[string]string{"status": "success"})
}
