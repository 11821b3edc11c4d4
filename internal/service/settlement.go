package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/ayo6706/wallet-ledger/internal/domain"
	"github.com/ayo6706/wallet-ledger/internal/gateway"
	"github.com/ayo6706/wallet-ledger/internal/models"
	"github.com/ayo6706/wallet-ledger/internal/observability"
	"github.com/ayo6706/wallet-ledger/internal/repository"
	"go.uber.org/zap"
)

// SettlementOutcome labels what happened to one webhook delivery.
type SettlementOutcome string

const (
	OutcomeApplied           SettlementOutcome = "applied"
	OutcomeUnknownProvider   SettlementOutcome = "unknown_provider"
	OutcomeInvalidSignature  SettlementOutcome = "invalid_signature"
	OutcomeUnhandledEvent    SettlementOutcome = "unhandled_event"
	OutcomeMalformed         SettlementOutcome = "malformed"
	OutcomeNotFound          SettlementOutcome = "not_found"
	OutcomeTypeMismatch      SettlementOutcome = "type_mismatch"
	OutcomeReferenceMismatch SettlementOutcome = "reference_mismatch"
	OutcomeAlreadySettled    SettlementOutcome = "already_settled"
)

// SettlementResult reports the outcome of one settlement event. Applied is
// true only when ledger and transaction state changed.
type SettlementResult struct {
	Applied       bool
	Outcome       SettlementOutcome
	TransactionID string
	Status        string
}

// SettlementService verifies provider callbacks and applies terminal transitions.
type SettlementService struct {
	store        QueryStore
	providers    *gateway.Registry
	ledger       *AccountLedger
	transactions *TransactionStore
	audit        *AuditService
	now          func() time.Time
}

func NewSettlementService(store QueryStore, providers *gateway.Registry, ledger *AccountLedger, transactions *TransactionStore, audit *AuditService) *SettlementService {
	return &SettlementService{
		store:        store,
		providers:    providers,
		ledger:       ledger,
		transactions: transactions,
		audit:        audit,
		now:          time.Now,
	}
}

// Reconcile verifies payload with the named provider and settles the matching
// transaction at most once. Discarded events return a result with Applied
// false and a nil error; an error means the persistence scope failed.
func (s *SettlementService) Reconcile(ctx context.Context, providerName, signature string, payload []byte) (*SettlementResult, error) {
	logger := zap.L().With(zap.String("provider", providerName))

	provider, ok := s.providers.Get(providerName)
	if !ok {
		return s.discard(logger, providerName, OutcomeUnknownProvider, nil), nil
	}

	event, err := provider.VerifyWebhookPayload(signature, payload)
	switch {
	case errors.Is(err, gateway.ErrInvalidSignature):
		return s.discard(logger, providerName, OutcomeInvalidSignature, nil), nil
	case errors.Is(err, gateway.ErrUnhandledEvent):
		return s.discard(logger.With(zap.Error(err)), providerName, OutcomeUnhandledEvent, nil), nil
	case err != nil:
		return s.discard(logger.With(zap.Error(err)), providerName, OutcomeMalformed, nil), nil
	}

	logger = logger.With(
		zap.String("event", event.Kind),
		zap.String("transaction_id", event.TransactionID),
		zap.String("provider_reference", event.ProviderReference),
	)
	if event.TransactionID == "" && event.ProviderReference == "" {
		return s.discard(logger, providerName, OutcomeMalformed, nil), nil
	}

	var result *SettlementResult
	err = s.store.RunInTx(ctx, func(qtx repository.Querier) error {
		tx, err := s.transactions.FindByReference(ctx, qtx, event.TransactionID, event.ProviderReference)
		if err != nil {
			if domain.KindOf(err) == domain.KindNotFound {
				result = &SettlementResult{Outcome: OutcomeNotFound}
				return nil
			}
			return err
		}
		result = &SettlementResult{TransactionID: tx.ID, Status: tx.Status}

		if event.TransactionID != "" && event.ProviderReference != "" &&
			tx.ProviderReference != nil && *tx.ProviderReference != event.ProviderReference {
			result.Outcome = OutcomeReferenceMismatch
			return nil
		}
		if event.Type != tx.Type {
			result.Outcome = OutcomeTypeMismatch
			return nil
		}
		if tx.Status != domain.TxStatusPending {
			result.Outcome = OutcomeAlreadySettled
			return nil
		}

		if err := s.apply(ctx, qtx, tx, event); err != nil {
			return err
		}
		result.Applied = true
		result.Outcome = OutcomeApplied
		result.Status = tx.Status
		return nil
	})
	if err != nil {
		observability.IncrementSettlement(providerName, "error")
		logger.Error("settlement failed", zap.Error(err))
		return nil, err
	}

	if !result.Applied {
		return s.discard(logger, providerName, result.Outcome, result), nil
	}
	observability.IncrementSettlement(providerName, string(OutcomeApplied))
	logger.Info("settlement applied", zap.String("status", result.Status))
	return result, nil
}

func (s *SettlementService) apply(ctx context.Context, qtx repository.Querier, tx *models.Transaction, event *gateway.Event) error {
	next := domain.TxStatusFailed
	if event.Status {
		next = domain.TxStatusSuccess
	}

	switch tx.Type {
	case domain.TxTypeDeposit:
		if event.Status {
			if err := s.ledger.Deposit(ctx, qtx, ByID(tx.ReceiverID), tx.Amount); err != nil {
				return err
			}
		}
		if tx.ProviderReference == nil && event.ProviderReference != "" {
			if err := s.transactions.RecordProviderDetails(ctx, qtx, tx.ID, event.ProviderReference, tx.ProviderFee); err != nil {
				return err
			}
		}
	case domain.TxTypeWithdrawal:
		if event.Status {
			if err := s.ledger.Withdraw(ctx, qtx, ByID(tx.GiverID), tx.Total()); err != nil {
				return err
			}
		} else {
			if err := s.ledger.UnlockAmount(ctx, qtx, ByID(tx.GiverID), tx.Total()); err != nil {
				return err
			}
		}
	default:
		return domain.Internal("apply settlement", errors.New("transaction type "+tx.Type+" is not settled by webhook"))
	}

	metadata, err := json.Marshal(map[string]string{
		"event":              event.Kind,
		"provider_reference": event.ProviderReference,
	})
	if err != nil {
		return domain.Internal("encode settlement metadata", err)
	}
	return transitionTransactionState(ctx, qtx, s.transactions, s.audit, tx, next, "settled", s.now().UTC(), metadata)
}

func (s *SettlementService) discard(logger *zap.Logger, providerName string, outcome SettlementOutcome, result *SettlementResult) *SettlementResult {
	if result == nil {
		result = &SettlementResult{}
	}
	result.Applied = false
	result.Outcome = outcome
	observability.IncrementSettlement(providerName, string(outcome))

	fields := []zap.Field{zap.String("outcome", string(outcome))}
	if result.TransactionID != "" {
		fields = append(fields, zap.String("matched_transaction_id", result.TransactionID), zap.String("matched_status", result.Status))
	}
	if outcome == OutcomeAlreadySettled {
		logger.Info("settlement event ignored", fields...)
	} else {
		logger.Warn("settlement event discarded", fields...)
	}
	return result
}
