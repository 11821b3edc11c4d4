package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ayo6706/wallet-ledger/internal/domain"
	"github.com/ayo6706/wallet-ledger/internal/gateway"
	"github.com/ayo6706/wallet-ledger/internal/models"
	"github.com/ayo6706/wallet-ledger/internal/repository"
	"github.com/ayo6706/wallet-ledger/internal/testutil/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransferFunds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ayo, david := newPrincipal(), newPrincipal()
	ayoAcc := f.seedAccount(t, ayo.UserID, "100000")
	davidAcc := f.seedAccount(t, david.UserID, "0")

	tx, err := f.funds.TransferFunds(ctx, ayo, TransferRequest{
		Currency:   "NGN",
		Amount:     dec("10000"),
		ReceiverID: david.UserID,
	})
	require.NoError(t, err)

	requireBalances(t, f.account(t, ayoAcc.ID), "90000", "0")
	requireBalances(t, f.account(t, davidAcc.ID), "10000", "0")

	assert.Equal(t, domain.TxTypeTransfer, tx.Type)
	assert.Equal(t, domain.TxStatusSuccess, tx.Status)
	assert.Equal(t, domain.ProviderInternal, tx.ProviderName)
	assert.Equal(t, ayoAcc.ID, tx.GiverID)
	assert.Equal(t, davidAcc.ID, tx.ReceiverID)
	assert.True(t, tx.Amount.Equal(dec("10000")))
	assert.NotNil(t, tx.SettledAt)
	assert.True(t, domain.IsValidID(tx.ID))

	audit := f.store.AuditLog()
	require.Len(t, audit, 1)
	assert.Equal(t, tx.ID, audit[0].EntityID)
}

func TestTransferFundsRejections(t *testing.T) {
	ctx := context.Background()

	t.Run("insufficient funds", func(t *testing.T) {
		f := newFixture(t)
		ayo, david := newPrincipal(), newPrincipal()
		ayoAcc := f.seedAccount(t, ayo.UserID, "500")
		davidAcc := f.seedAccount(t, david.UserID, "0")

		_, err := f.funds.TransferFunds(ctx, ayo, TransferRequest{Currency: "NGN", Amount: dec("500.01"), ReceiverID: david.UserID})
		requireKind(t, err, domain.KindInsufficientFunds)
		requireBalances(t, f.account(t, ayoAcc.ID), "500", "0")
		requireBalances(t, f.account(t, davidAcc.ID), "0", "0")
		assert.Empty(t, f.store.Transactions())
	})

	t.Run("receiver has no account", func(t *testing.T) {
		f := newFixture(t)
		ayo := newPrincipal()
		ayoAcc := f.seedAccount(t, ayo.UserID, "500")

		_, err := f.funds.TransferFunds(ctx, ayo, TransferRequest{Currency: "NGN", Amount: dec("100"), ReceiverID: domain.GenerateID()})
		requireKind(t, err, domain.KindNotFound)
		assert.Contains(t, err.Error(), "Receiver")
		requireBalances(t, f.account(t, ayoAcc.ID), "500", "0")
	})

	t.Run("giver has no account", func(t *testing.T) {
		f := newFixture(t)
		ayo, david := newPrincipal(), newPrincipal()
		f.seedAccount(t, david.UserID, "0")

		_, err := f.funds.TransferFunds(ctx, ayo, TransferRequest{Currency: "NGN", Amount: dec("100"), ReceiverID: david.UserID})
		requireKind(t, err, domain.KindNotFound)
	})

	t.Run("self transfer", func(t *testing.T) {
		f := newFixture(t)
		ayo := newPrincipal()
		f.seedAccount(t, ayo.UserID, "500")

		_, err := f.funds.TransferFunds(ctx, ayo, TransferRequest{Currency: "NGN", Amount: dec("100"), ReceiverID: ayo.UserID})
		requireKind(t, err, domain.KindValidation)
	})

	t.Run("invalid amount", func(t *testing.T) {
		f := newFixture(t)
		ayo, david := newPrincipal(), newPrincipal()
		f.seedAccount(t, ayo.UserID, "500")
		f.seedAccount(t, david.UserID, "0")

		for _, amount := range []string{"0", "-5", "1.001"} {
			_, err := f.funds.TransferFunds(ctx, ayo, TransferRequest{Currency: "NGN", Amount: dec(amount), ReceiverID: david.UserID})
			requireKind(t, err, domain.KindValidation)
		}
	})

	t.Run("unsupported currency", func(t *testing.T) {
		f := newFixture(t)
		ayo, david := newPrincipal(), newPrincipal()
		_, err := f.funds.TransferFunds(ctx, ayo, TransferRequest{Currency: "USD", Amount: dec("10"), ReceiverID: david.UserID})
		requireKind(t, err, domain.KindValidation)
	})
}

func TestTransferFundsConservesTotal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b := newPrincipal(), newPrincipal()
	accA := f.seedAccount(t, a.UserID, "1000")
	accB := f.seedAccount(t, b.UserID, "1000")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = f.funds.TransferFunds(ctx, a, TransferRequest{Currency: "NGN", Amount: dec("150"), ReceiverID: b.UserID})
		}()
		go func() {
			defer wg.Done()
			_, _ = f.funds.TransferFunds(ctx, b, TransferRequest{Currency: "NGN", Amount: dec("70"), ReceiverID: a.UserID})
		}()
	}
	wg.Wait()

	gotA, gotB := f.account(t, accA.ID), f.account(t, accB.ID)
	assert.True(t, gotA.Balance.Add(gotB.Balance).Equal(dec("2000")))
	assert.False(t, gotA.Balance.IsNegative())
	assert.False(t, gotB.Balance.IsNegative())
	assert.True(t, gotA.LockedBalance.IsZero())
	assert.True(t, gotB.LockedBalance.IsZero())
}

func TestInitializeWithdraw(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ayo := newPrincipal()
	acc := f.seedAccount(t, ayo.UserID, "100000")

	tx, err := f.funds.InitializeWithdraw(ctx, ayo, WithdrawRequest{
		Currency:          "NGN",
		Amount:            dec("1000"),
		BankAccountNumber: "0123456789",
		BankCode:          "058",
	})
	require.NoError(t, err)

	requireBalances(t, f.account(t, acc.ID), "99000", "1000")
	stored := f.transaction(t, tx.ID)
	assert.Equal(t, domain.TxStatusPending, stored.Status)
	assert.Equal(t, domain.TxTypeWithdrawal, stored.Type)
	assert.Equal(t, acc.ID, stored.GiverID)
	assert.Equal(t, domain.PartyInternal, stored.ReceiverID)
	assert.Equal(t, string(gateway.Sandbox), stored.ProviderName)
	require.NotNil(t, stored.ProviderReference)
	assert.Equal(t, *tx.ProviderReference, *stored.ProviderReference)
	assert.Nil(t, stored.SettledAt)
}

func TestInitializeWithdrawRollsBack(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name    string
		amount  string
		account string
		reject  bool
		kind    domain.ErrorKind
	}{
		{name: "insufficient funds", amount: "100000.01", account: "0123456789", kind: domain.KindInsufficientFunds},
		{name: "unresolvable bank account", amount: "1000", account: "01234567890", kind: domain.KindUnprocessable},
		{name: "provider rejects transfer", amount: "1000", account: "0123456789", reject: true, kind: domain.KindUnprocessable},
		{name: "amount below provider band", amount: "50", account: "0123456789", kind: domain.KindUnprocessable},
		{name: "malformed bank account", amount: "1000", account: "01234x", kind: domain.KindValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.sandbox.RejectTransfers = tc.reject
			ayo := newPrincipal()
			acc := f.seedAccount(t, ayo.UserID, "100000")

			_, err := f.funds.InitializeWithdraw(ctx, ayo, WithdrawRequest{
				Currency:          "NGN",
				Amount:            dec(tc.amount),
				BankAccountNumber: tc.account,
				BankCode:          "058",
			})
			requireKind(t, err, tc.kind)
			requireBalances(t, f.account(t, acc.ID), "100000", "0")
			assert.Empty(t, f.store.Transactions())
			assert.Empty(t, f.store.AuditLog())
		})
	}
}

func TestInitializeWithdrawNoAccount(t *testing.T) {
	f := newFixture(t)
	_, err := f.funds.InitializeWithdraw(context.Background(), newPrincipal(), WithdrawRequest{
		Currency:          "NGN",
		Amount:            dec("1000"),
		BankAccountNumber: "0123456789",
		BankCode:          "058",
	})
	requireKind(t, err, domain.KindNotFound)
}

func TestConcurrentWithdrawalsDoNotOverdraw(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ayo := newPrincipal()
	acc := f.seedAccount(t, ayo.UserID, "1000")

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.funds.InitializeWithdraw(ctx, ayo, WithdrawRequest{
				Currency:          "NGN",
				Amount:            dec("200"),
				BankAccountNumber: "0123456789",
				BankCode:          "058",
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			assert.Equal(t, domain.KindInsufficientFunds, domain.KindOf(err))
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, succeeded)
	requireBalances(t, f.account(t, acc.ID), "0", "1000")
}

func TestInitializeDeposit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ayo := newPrincipal()
	acc := f.seedAccount(t, ayo.UserID, "0")

	res, err := f.funds.InitializeDeposit(ctx, ayo, "ngn", dec("5000"))
	require.NoError(t, err)
	assert.Equal(t, string(gateway.Sandbox), res.Provider)
	assert.Contains(t, res.CheckoutURL, res.TransactionID)

	tx := f.transaction(t, res.TransactionID)
	assert.Equal(t, domain.TxStatusPending, tx.Status)
	assert.Equal(t, domain.TxTypeDeposit, tx.Type)
	assert.Equal(t, acc.ID, tx.ReceiverID)
	assert.Equal(t, domain.PartyInternal, tx.GiverID)
	requireBalances(t, f.account(t, acc.ID), "0", "0")
}

func TestInitializeDepositRejections(t *testing.T) {
	ctx := context.Background()

	t.Run("below provider band", func(t *testing.T) {
		f := newFixture(t)
		ayo := newPrincipal()
		f.seedAccount(t, ayo.UserID, "0")

		_, err := f.funds.InitializeDeposit(ctx, ayo, "NGN", dec("50"))
		requireKind(t, err, domain.KindUnprocessable)
		assert.Empty(t, f.store.Transactions())
	})

	t.Run("no account in currency", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.funds.InitializeDeposit(ctx, newPrincipal(), "NGN", dec("500"))
		requireKind(t, err, domain.KindNotFound)
		assert.Empty(t, f.store.Transactions())
	})

	t.Run("checkout failure", func(t *testing.T) {
		f := newFixture(t)
		registry := gateway.NewRegistry()
		registry.Register(checkoutFailingProvider{f.sandbox}, gateway.DefaultBands()...)
		funds := NewFundsService(f.store, registry, FundsConfig{})
		ayo := newPrincipal()
		f.seedAccount(t, ayo.UserID, "0")

		_, err := funds.InitializeDeposit(ctx, ayo, "NGN", dec("500"))
		requireKind(t, err, domain.KindUnprocessable)
	})
}

// ctxStore fails writes whose context is done, the way pgx refuses a canceled context.
type ctxStore struct {
	*memstore.Store
}

func (s ctxStore) RunInTx(ctx context.Context, fn func(q repository.Querier) error) error {
	return s.Store.RunInTx(ctx, func(q repository.Querier) error {
		return fn(ctxQuerier{Querier: q})
	})
}

type ctxQuerier struct {
	repository.Querier
}

func (q ctxQuerier) AdjustAccountBalances(ctx context.Context, arg repository.AdjustAccountBalancesParams) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return q.Querier.AdjustAccountBalances(ctx, arg)
}

func (q ctxQuerier) CreateTransaction(ctx context.Context, arg repository.CreateTransactionParams) (*models.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return q.Querier.CreateTransaction(ctx, arg)
}

func (q ctxQuerier) SetTransactionProviderDetails(ctx context.Context, arg repository.SetTransactionProviderDetailsParams) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return q.Querier.SetTransactionProviderDetails(ctx, arg)
}

// disconnectingProvider cancels the caller's request right after the payout is accepted.
type disconnectingProvider struct {
	*gateway.SandboxProvider
	cancel  context.CancelFunc
	payouts *int
}

func (p disconnectingProvider) InitializeTransfer(ctx context.Context, req gateway.TransferRequest) (*gateway.Transfer, error) {
	transfer, err := p.SandboxProvider.InitializeTransfer(ctx, req)
	if err == nil {
		*p.payouts++
	}
	p.cancel()
	return transfer, err
}

func TestInitializeWithdrawSurvivesCallerCancel(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	payouts := 0
	registry := gateway.NewRegistry()
	registry.Register(disconnectingProvider{SandboxProvider: f.sandbox, cancel: cancel, payouts: &payouts}, gateway.DefaultBands()...)
	funds := NewFundsService(ctxStore{f.store}, registry, FundsConfig{})

	ayo := newPrincipal()
	acc := f.seedAccount(t, ayo.UserID, "100000")

	tx, err := funds.InitializeWithdraw(ctx, ayo, WithdrawRequest{
		Currency:          "NGN",
		Amount:            dec("1000"),
		BankAccountNumber: "0123456789",
		BankCode:          "058",
	})
	require.NoError(t, err)
	require.Error(t, ctx.Err())
	assert.Equal(t, 1, payouts)

	requireBalances(t, f.account(t, acc.ID), "99000", "1000")
	stored := f.transaction(t, tx.ID)
	assert.Equal(t, domain.TxStatusPending, stored.Status)
	require.NotNil(t, stored.ProviderReference)

	res := f.deliver(t, "transfer.success", tx.ID, *stored.ProviderReference)
	assert.True(t, res.Applied)
	requireBalances(t, f.account(t, acc.ID), "99000", "0")
}

func TestTransferFundsIgnoresCallerCancel(t *testing.T) {
	f := newFixture(t)
	funds := NewFundsService(ctxStore{f.store}, f.registry, FundsConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ayo, david := newPrincipal(), newPrincipal()
	ayoAcc := f.seedAccount(t, ayo.UserID, "500")
	davidAcc := f.seedAccount(t, david.UserID, "0")

	_, err := funds.TransferFunds(ctx, ayo, TransferRequest{Currency: "NGN", Amount: dec("200"), ReceiverID: david.UserID})
	require.NoError(t, err)
	requireBalances(t, f.account(t, ayoAcc.ID), "300", "0")
	requireBalances(t, f.account(t, davidAcc.ID), "200", "0")
}

// deadlineProvider records the deadline each gateway call receives.
type deadlineProvider struct {
	*gateway.SandboxProvider
	mu        *sync.Mutex
	deadlines map[string]time.Time
}

func (p deadlineProvider) record(ctx context.Context, op string) {
	deadline, _ := ctx.Deadline()
	p.mu.Lock()
	p.deadlines[op] = deadline
	p.mu.Unlock()
}

func (p deadlineProvider) GetAccountName(ctx context.Context, accountNumber, bankCode string) (string, error) {
	p.record(ctx, "get_account_name")
	time.Sleep(5 * time.Millisecond)
	return p.SandboxProvider.GetAccountName(ctx, accountNumber, bankCode)
}

func (p deadlineProvider) InitializeTransfer(ctx context.Context, req gateway.TransferRequest) (*gateway.Transfer, error) {
	p.record(ctx, "initialize_transfer")
	return p.SandboxProvider.InitializeTransfer(ctx, req)
}

func TestInitializeWithdrawTimesEachGatewayCall(t *testing.T) {
	f := newFixture(t)
	provider := deadlineProvider{SandboxProvider: f.sandbox, mu: &sync.Mutex{}, deadlines: map[string]time.Time{}}
	registry := gateway.NewRegistry()
	registry.Register(provider, gateway.DefaultBands()...)
	funds := NewFundsService(f.store, registry, FundsConfig{GatewayTimeout: time.Minute})

	ayo := newPrincipal()
	f.seedAccount(t, ayo.UserID, "100000")
	_, err := funds.InitializeWithdraw(context.Background(), ayo, WithdrawRequest{
		Currency:          "NGN",
		Amount:            dec("1000"),
		BankAccountNumber: "0123456789",
		BankCode:          "058",
	})
	require.NoError(t, err)

	resolve, transfer := provider.deadlines["get_account_name"], provider.deadlines["initialize_transfer"]
	require.False(t, resolve.IsZero())
	require.False(t, transfer.IsZero())
	assert.True(t, transfer.After(resolve), "transfer deadline %s should be later than resolve deadline %s", transfer, resolve)
}
