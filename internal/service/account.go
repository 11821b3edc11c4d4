package service

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/ayo6706/wallet-ledger/internal/domain"
	"github.com/ayo6706/wallet-ledger/internal/models"
	"github.com/ayo6706/wallet-ledger/internal/repository"
)

const (
	defaultTransactionPageSize = 50
	maxTransactionPageSize     = 200
)

type AccountService struct {
	store QueryStore
	newID func() string
}

func NewAccountService(store QueryStore) *AccountService {
	return &AccountService{
		store: store,
		newID: domain.GenerateID,
	}
}

// CreateAccount opens an account in currency, or returns the existing one.
func (s *AccountService) CreateAccount(ctx context.Context, userID, currency, channel string) (*models.Account, error) {
	currency, err := normalizeCurrency(currency)
	if err != nil {
		return nil, err
	}

	var account *models.Account
	err = s.store.RunInTx(ctx, func(qtx repository.Querier) error {
		account, err = s.createAccountTx(ctx, qtx, userID, currency, channel)
		return err
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

func (s *AccountService) createAccountTx(ctx context.Context, qtx repository.Querier, userID, currency, channel string) (*models.Account, error) {
	existing, err := qtx.GetAccountByOwner(ctx, userID, currency)
	if err == nil {
		return existing, nil
	}
	if !repository.IsNotFound(err) {
		return nil, storeError(err, "account not found")
	}

	channel = strings.TrimSpace(channel)
	if channel == "" {
		channel = domain.ChannelInternal
	}
	id, err := allocateID(ctx, s.newID, qtx.AccountIDExists)
	if err != nil {
		return nil, err
	}
	account, err := qtx.CreateAccount(ctx, repository.CreateAccountParams{
		ID:       id,
		UserID:   userID,
		Currency: currency,
		Channel:  channel,
	})
	if err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, domain.Conflict(fmt.Sprintf("account in %s already exists", currency))
		}
		return nil, domain.Internal("create account", err)
	}
	return account, nil
}

func (s *AccountService) GetUserAccount(ctx context.Context, userID, currency string) (*models.Account, error) {
	currency, err := normalizeCurrency(currency)
	if err != nil {
		return nil, err
	}
	account, err := s.store.Queries().GetAccountByOwner(ctx, userID, currency)
	if err != nil {
		return nil, storeError(err, fmt.Sprintf("User has no account in %s.", currency))
	}
	return account, nil
}

func (s *AccountService) ListUserAccounts(ctx context.Context, userID string) ([]models.Account, error) {
	accounts, err := s.store.Queries().ListAccountsByUser(ctx, userID)
	if err != nil {
		return nil, domain.Internal("list accounts", err)
	}
	return accounts, nil
}

// TransactionFilter narrows ListTransactions. UserID is required.
type TransactionFilter struct {
	UserID        string
	TransactionID string
	AccountID     string
	Currency      string
	Limit         int
	Offset        int
}

// ListTransactions returns transactions where one of the user's accounts is giver or receiver.
func (s *AccountService) ListTransactions(ctx context.Context, f TransactionFilter) ([]models.Transaction, error) {
	if f.TransactionID != "" && !domain.IsValidID(f.TransactionID) {
		return nil, domain.Validation(fmt.Sprintf("transactionId must be a string of %d characters.", domain.IDLength))
	}
	if f.AccountID != "" && !domain.IsValidID(f.AccountID) {
		return nil, domain.Validation(fmt.Sprintf("accountId must be a string of %d characters.", domain.IDLength))
	}
	if f.Currency != "" {
		currency, err := normalizeCurrency(f.Currency)
		if err != nil {
			return nil, err
		}
		f.Currency = currency
	}
	limit := f.Limit
	if limit == 0 {
		limit = defaultTransactionPageSize
	}
	if limit < 0 || limit > maxTransactionPageSize {
		return nil, domain.Validation(fmt.Sprintf("limit must be between 1 and %d.", maxTransactionPageSize))
	}
	if f.Offset < 0 || f.Offset > math.MaxInt32 {
		return nil, domain.Validation(fmt.Sprintf("offset must be between 0 and %d.", math.MaxInt32))
	}

	q := s.store.Queries()
	accounts, err := q.ListAccountsByUser(ctx, f.UserID)
	if err != nil {
		return nil, domain.Internal("list accounts", err)
	}
	ids := make([]string, 0, len(accounts))
	for _, a := range accounts {
		if f.AccountID != "" && a.ID != f.AccountID {
			continue
		}
		if f.Currency != "" && a.Currency != f.Currency {
			continue
		}
		ids = append(ids, a.ID)
	}
	if len(ids) == 0 {
		return []models.Transaction{}, nil
	}

	items, err := q.ListTransactionsForAccounts(ctx, repository.ListTransactionsForAccountsParams{
		AccountIDs:    ids,
		TransactionID: f.TransactionID,
		Limit:         int32(limit),
		Offset:        int32(f.Offset),
	})
	if err != nil {
		return nil, domain.Internal("list transactions", err)
	}
	return items, nil
}
