package service

import (
	"context"
	"fmt"
	"time"

	"github.com/ayo6706/wallet-ledger/internal/domain"
	"github.com/ayo6706/wallet-ledger/internal/models"
	"github.com/ayo6706/wallet-ledger/internal/repository"
	"github.com/shopspring/decimal"
)

// NewTransaction is the input to TransactionStore.Create.
type NewTransaction struct {
	Amount       decimal.Decimal
	Fee          decimal.Decimal
	Channel      string
	Currency     string
	ReceiverID   string
	GiverID      string
	Type         string
	ProviderName string
	// Status defaults to pending. Transfers are created as success.
	Status string
}

// TransactionStore creates and finds transaction records inside a caller's scope.
type TransactionStore struct {
	newID func() string
	now   func() time.Time
}

func NewTransactionStore() *TransactionStore {
	return &TransactionStore{newID: domain.GenerateID, now: time.Now}
}

func (s *TransactionStore) Create(ctx context.Context, qtx repository.Querier, in NewTransaction) (*models.Transaction, error) {
	status := in.Status
	if status == "" {
		status = domain.TxStatusPending
	}
	var settledAt *time.Time
	switch status {
	case domain.TxStatusPending:
	case domain.TxStatusSuccess:
		if in.Type != domain.TxTypeTransfer {
			return nil, domain.Internal("create transaction", fmt.Errorf("%s cannot start as %s", in.Type, status))
		}
		now := s.now().UTC()
		settledAt = &now
	default:
		return nil, domain.Internal("create transaction", fmt.Errorf("invalid initial status %q", status))
	}
	channel := in.Channel
	if channel == "" {
		channel = domain.ChannelInternal
	}

	id, err := allocateID(ctx, s.newID, qtx.TransactionIDExists)
	if err != nil {
		return nil, err
	}
	tx, err := qtx.CreateTransaction(ctx, repository.CreateTransactionParams{
		ID:           id,
		Amount:       in.Amount,
		Fee:          in.Fee,
		Channel:      channel,
		Currency:     in.Currency,
		ReceiverID:   in.ReceiverID,
		GiverID:      in.GiverID,
		Type:         in.Type,
		ProviderName: in.ProviderName,
		Status:       status,
		SettledAt:    settledAt,
	})
	if err != nil {
		return nil, domain.Internal("create transaction", err)
	}
	return tx, nil
}

// FindByReference locks the transaction matching exactly the reference the
// caller supplies: the id when present, otherwise the provider reference.
func (s *TransactionStore) FindByReference(ctx context.Context, qtx repository.Querier, transactionID, providerReference string) (*models.Transaction, error) {
	var (
		tx  *models.Transaction
		err error
	)
	switch {
	case transactionID != "":
		tx, err = qtx.GetTransactionForUpdate(ctx, transactionID)
	case providerReference != "":
		tx, err = qtx.GetTransactionByProviderReferenceForUpdate(ctx, providerReference)
	default:
		return nil, domain.Validation("a transaction id or provider reference is required")
	}
	if err != nil {
		return nil, storeError(err, "transaction not found")
	}
	return tx, nil
}

// UpdateStatus moves a pending transaction to a terminal status. A transaction
// that already left pending yields Conflict.
func (s *TransactionStore) UpdateStatus(ctx context.Context, qtx repository.Querier, id, status string, settledAt time.Time) error {
	if !domain.IsTerminalStatus(status) {
		return domain.Internal("update transaction status", fmt.Errorf("%q is not terminal", status))
	}
	rows, err := qtx.SettleTransaction(ctx, repository.SettleTransactionParams{
		ID:        id,
		Status:    status,
		SettledAt: settledAt,
	})
	if err != nil {
		return domain.Internal("update transaction status", err)
	}
	if rows == 0 {
		return domain.Conflict(fmt.Sprintf("transaction %s is already settled", id))
	}
	if err := requireExactlyOne(rows, "update transaction status"); err != nil {
		return domain.Internal("update transaction status", err)
	}
	return nil
}

// RecordProviderDetails stores what the provider returned when a transfer was initiated.
func (s *TransactionStore) RecordProviderDetails(ctx context.Context, qtx repository.Querier, id, providerReference string, providerFee decimal.Decimal) error {
	rows, err := qtx.SetTransactionProviderDetails(ctx, repository.SetTransactionProviderDetailsParams{
		ID:                id,
		ProviderReference: providerReference,
		ProviderFee:       providerFee,
	})
	if err != nil {
		return domain.Internal("record provider details", err)
	}
	if err := requireExactlyOne(rows, "record provider details"); err != nil {
		return domain.Internal("record provider details", err)
	}
	return nil
}
