package service

import (
	"context"
	"fmt"
	"time"

	"github.com/ayo6706/wallet-ledger/internal/observability"
	"go.uber.org/zap"
)

// ReconciliationReport summarizes one integrity pass.
type ReconciliationReport struct {
	InvalidBalanceAccounts int64
	StalePendingTxns       int64
}

// ReconciliationService verifies ledger integrity invariants. It never mutates state.
type ReconciliationService struct {
	store      QueryStore
	staleAfter time.Duration
	now        func() time.Time
}

// NewReconciliationService creates a reconciliation service.
func NewReconciliationService(store QueryStore, staleAfter time.Duration) *ReconciliationService {
	if staleAfter <= 0 {
		staleAfter = 24 * time.Hour
	}
	return &ReconciliationService{store: store, staleAfter: staleAfter, now: time.Now}
}

// Run checks that no account holds a negative bucket and reports stuck pending transactions.
func (s *ReconciliationService) Run(ctx context.Context) (*ReconciliationReport, error) {
	queries := s.store.Queries()
	invalid, err := queries.CountInvalidBalanceAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("count invalid balances: %w", err)
	}
	stale, err := queries.CountStalePendingTransactions(ctx, s.now().Add(-s.staleAfter))
	if err != nil {
		return nil, fmt.Errorf("count stale pending transactions: %w", err)
	}

	report := &ReconciliationReport{InvalidBalanceAccounts: invalid, StalePendingTxns: stale}
	observability.SetStalePendingTransactions(stale)

	if invalid > 0 {
		observability.IncrementInvalidBalance()
		zap.L().Error("CRITICAL: accounts with negative balances detected", zap.Int64("accounts", invalid))
	}
	if stale > 0 {
		zap.L().Warn("pending transactions awaiting settlement", zap.Int64("count", stale), zap.Duration("older_than", s.staleAfter))
	}
	if invalid == 0 && stale == 0 {
		zap.L().Info("Ledger Balanced")
	}
	return report, nil
}
