package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ayo6706/wallet-ledger/internal/domain"
	"github.com/ayo6706/wallet-ledger/internal/models"
	"github.com/ayo6706/wallet-ledger/internal/repository"
)

var transactionTransitions = map[string]map[string]struct{}{
	domain.TxStatusPending: {
		domain.TxStatusSuccess: {},
		domain.TxStatusFailed:  {},
	},
	domain.TxStatusSuccess: {},
	domain.TxStatusFailed:  {},
}

func normalizeState(state string) string {
	return strings.ToLower(strings.TrimSpace(state))
}

func canTransition(current, next string) bool {
	nextStates, ok := transactionTransitions[normalizeState(current)]
	if !ok {
		return false
	}
	_, ok = nextStates[normalizeState(next)]
	return ok
}

// transitionTransactionState applies a guarded pending -> terminal move and
// records it in the audit log, all inside the caller's scope.
func transitionTransactionState(ctx context.Context, qtx repository.Querier, store *TransactionStore, audit *AuditService, tx *models.Transaction, nextState, action string, settledAt time.Time, metadata []byte) error {
	if !canTransition(tx.Status, nextState) {
		return domain.Conflict(fmt.Sprintf("invalid transaction state transition: %s -> %s", tx.Status, nextState))
	}
	if err := store.UpdateStatus(ctx, qtx, tx.ID, nextState, settledAt); err != nil {
		return err
	}
	if err := audit.Write(ctx, qtx, "transaction", tx.ID, "", action, tx.Status, nextState, metadata); err != nil {
		return domain.Internal("audit transition", err)
	}
	tx.Status = nextState
	tx.SettledAt = &settledAt
	return nil
}
