package repository

import (
	"context"
	"time"

	"github.com/ayo6706/wallet-ledger/internal/models"
	"github.com/shopspring/decimal"
)

// Querier is the data access contract shared by the postgres Queries and the
// in-memory test store.
type Querier interface {
	CreateUser(ctx context.Context, arg CreateUserParams) (*models.User, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UserIDExists(ctx context.Context, id string) (bool, error)

	CreateAccount(ctx context.Context, arg CreateAccountParams) (*models.Account, error)
	GetAccountByOwner(ctx context.Context, userID, currency string) (*models.Account, error)
	// GetAccountByOwnerForUpdate holds an exclusive row lock until the enclosing transaction ends.
	GetAccountByOwnerForUpdate(ctx context.Context, userID, currency string) (*models.Account, error)
	ListAccountsByUser(ctx context.Context, userID string) ([]models.Account, error)
	AccountIDExists(ctx context.Context, id string) (bool, error)
	AdjustAccountBalances(ctx context.Context, arg AdjustAccountBalancesParams) (int64, error)
	CountInvalidBalanceAccounts(ctx context.Context) (int64, error)

	CreateTransaction(ctx context.Context, arg CreateTransactionParams) (*models.Transaction, error)
	TransactionIDExists(ctx context.Context, id string) (bool, error)
	GetTransactionForUpdate(ctx context.Context, id string) (*models.Transaction, error)
	GetTransactionByProviderReferenceForUpdate(ctx context.Context, providerReference string) (*models.Transaction, error)
	SetTransactionProviderDetails(ctx context.Context, arg SetTransactionProviderDetailsParams) (int64, error)
	SettleTransaction(ctx context.Context, arg SettleTransactionParams) (int64, error)
	ListTransactionsForAccounts(ctx context.Context, arg ListTransactionsForAccountsParams) ([]models.Transaction, error)
	CountStalePendingTransactions(ctx context.Context, createdBefore time.Time) (int64, error)

	InsertAuditLog(ctx context.Context, arg InsertAuditLogParams) error

	GetIdempotencyKey(ctx context.Context, key string) (IdempotencyKey, error)
	ReserveIdempotencyKey(ctx context.Context, arg ReserveIdempotencyKeyParams) (IdempotencyKey, error)
	FinalizeIdempotencyKey(ctx context.Context, arg FinalizeIdempotencyKeyParams) (IdempotencyKey, error)
}

type CreateUserParams struct {
	ID           string
	FirstName    string
	LastName     string
	Email        string
	PasswordHash string
}

type CreateAccountParams struct {
	ID       string
	UserID   string
	Currency string
	Channel  string
}

// AdjustAccountBalancesParams describes a relative update. Exactly one of AccountID
// or the (UserID, Currency) pair selects the row.
type AdjustAccountBalancesParams struct {
	BalanceDelta decimal.Decimal
	LockedDelta  decimal.Decimal
	AccountID    string
	UserID       string
	Currency     string
}

type CreateTransactionParams struct {
	ID           string
	Amount       decimal.Decimal
	Fee          decimal.Decimal
	Channel      string
	Currency     string
	ReceiverID   string
	GiverID      string
	Type         string
	ProviderName string
	Status       string
	SettledAt    *time.Time
}

type SetTransactionProviderDetailsParams struct {
	ID                string
	ProviderReference string
	ProviderFee       decimal.Decimal
}

// SettleTransactionParams moves a pending transaction to a terminal status.
type SettleTransactionParams struct {
	ID        string
	Status    string
	SettledAt time.Time
}

type ListTransactionsForAccountsParams struct {
	AccountIDs    []string
	TransactionID string
	Limit         int32
	Offset        int32
}

type InsertAuditLogParams struct {
	EntityType string
	EntityID   string
	ActorID    *string
	Action     string
	PrevState  *string
	NextState  *string
	Metadata   []byte
}

type IdempotencyKey struct {
	IdempotencyKey string
	RequestHash    string
	Method         string
	Path           string
	ResponseStatus int32
	ResponseBody   []byte
	ContentType    string
	InProgress     bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type ReserveIdempotencyKeyParams struct {
	IdempotencyKey string
	RequestHash    string
	Method         string
	Path           string
}

type FinalizeIdempotencyKeyParams struct {
	ResponseStatus int32
	ResponseBody   []byte
	ContentType    string
	IdempotencyKey string
	RequestHash    string
}
