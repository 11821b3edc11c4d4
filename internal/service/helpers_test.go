package service

import (
	"context"
	"errors"
	"testing"

	"github.com/ayo6706/wallet-ledger/internal/domain"
	"github.com/ayo6706/wallet-ledger/internal/gateway"
	"github.com/ayo6706/wallet-ledger/internal/models"
	"github.com/ayo6706/wallet-ledger/internal/testutil/memstore"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const webhookSecret = "sandbox-webhook-secret"

// checkoutFailingProvider is a sandbox whose checkout call fails.
type checkoutFailingProvider struct {
	*gateway.SandboxProvider
}

func (p checkoutFailingProvider) InitializeTransaction(context.Context, gateway.TransactionRequest) (*gateway.Checkout, error) {
	return nil, errors.New("connection reset by peer")
}

type fixture struct {
	store    *memstore.Store
	sandbox  *gateway.SandboxProvider
	registry *gateway.Registry
	funds    *FundsService
	accounts *AccountService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memstore.New()
	sandbox := gateway.NewSandbox(webhookSecret, "")
	registry := gateway.NewRegistry()
	registry.Register(sandbox, gateway.DefaultBands()...)
	return &fixture{
		store:    store,
		sandbox:  sandbox,
		registry: registry,
		funds:    NewFundsService(store, registry, FundsConfig{CallbackURL: "http://localhost:8080/callback"}),
		accounts: NewAccountService(store),
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newPrincipal() domain.Principal {
	id := domain.GenerateID()
	return domain.Principal{UserID: id, Email: id + "@example.com"}
}

// seedAccount stores an NGN account for userID holding balance.
func (f *fixture) seedAccount(t *testing.T, userID, balance string) models.Account {
	t.Helper()
	account := models.Account{
		ID:       domain.GenerateID(),
		UserID:   userID,
		Currency: domain.CurrencyNGN,
		Balance:  dec(balance),
		Channel:  domain.ChannelInternal,
	}
	f.store.PutAccount(account)
	return account
}

func (f *fixture) account(t *testing.T, id string) models.Account {
	t.Helper()
	a, ok := f.store.Account(id)
	require.True(t, ok, "account %s missing", id)
	return a
}

func (f *fixture) transaction(t *testing.T, id string) models.Transaction {
	t.Helper()
	tx, ok := f.store.Transaction(id)
	require.True(t, ok, "transaction %s missing", id)
	return tx
}

func (f *fixture) deliver(t *testing.T, kind, transactionID, providerReference string) *SettlementResult {
	t.Helper()
	body, sig, err := f.sandbox.SignedEvent(kind, transactionID, providerReference)
	require.NoError(t, err)
	res, err := f.funds.HandleWebhook(context.Background(), string(gateway.Sandbox), sig, body)
	require.NoError(t, err)
	return res
}

func requireBalances(t *testing.T, a models.Account, balance, locked string) {
	t.Helper()
	require.True(t, a.Balance.Equal(dec(balance)), "balance: want %s got %s", balance, a.Balance)
	require.True(t, a.LockedBalance.Equal(dec(locked)), "locked: want %s got %s", locked, a.LockedBalance)
}

func requireKind(t *testing.T, err error, kind domain.ErrorKind) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, domain.KindOf(err), "error: %v", err)
}
