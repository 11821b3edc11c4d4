package service

import (
	"context"
	"testing"

	"github.com/ayo6706/wallet-ledger/internal/domain"
	"github.com/ayo6706/wallet-ledger/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountLedgerMutations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ledger := NewAccountLedger()
	owner := newPrincipal()
	acc := f.seedAccount(t, owner.UserID, "1000")
	q := f.store.Queries()

	require.NoError(t, ledger.Deposit(ctx, q, ByID(acc.ID), dec("250.50")))
	requireBalances(t, f.account(t, acc.ID), "1250.50", "0")

	require.NoError(t, ledger.LockAmount(ctx, q, ByOwner(owner.UserID, "NGN"), dec("1000")))
	requireBalances(t, f.account(t, acc.ID), "250.50", "1000")

	require.NoError(t, ledger.UnlockAmount(ctx, q, ByID(acc.ID), dec("400")))
	requireBalances(t, f.account(t, acc.ID), "650.50", "600")

	require.NoError(t, ledger.Withdraw(ctx, q, ByID(acc.ID), dec("600")))
	requireBalances(t, f.account(t, acc.ID), "650.50", "0")
}

func TestAccountLedgerErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ledger := NewAccountLedger()
	owner := newPrincipal()
	acc := f.seedAccount(t, owner.UserID, "100")
	q := f.store.Queries()

	err := ledger.Deposit(ctx, q, AccountSelector{}, dec("1"))
	requireKind(t, err, domain.KindValidation)

	err = ledger.Deposit(ctx, q, AccountSelector{AccountID: acc.ID, UserID: owner.UserID}, dec("1"))
	requireKind(t, err, domain.KindValidation)

	err = ledger.Deposit(ctx, q, ByOwner(owner.UserID, ""), dec("1"))
	requireKind(t, err, domain.KindValidation)

	err = ledger.LockAmount(ctx, q, ByID(acc.ID), dec("-5"))
	requireKind(t, err, domain.KindValidation)

	err = ledger.Deposit(ctx, q, ByID(domain.GenerateID()), dec("1"))
	requireKind(t, err, domain.KindNotFound)

	err = ledger.LockAmount(ctx, q, ByID(acc.ID), dec("100.01"))
	requireKind(t, err, domain.KindInsufficientFunds)
	requireBalances(t, f.account(t, acc.ID), "100", "0")
}

func TestAccountLedgerInsideScopeRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ledger := NewAccountLedger()
	owner := newPrincipal()
	acc := f.seedAccount(t, owner.UserID, "100")

	err := f.store.RunInTx(ctx, func(qtx repository.Querier) error {
		if err := ledger.LockAmount(ctx, qtx, ByID(acc.ID), dec("60")); err != nil {
			return err
		}
		return ledger.LockAmount(ctx, qtx, ByID(acc.ID), dec("60"))
	})
	requireKind(t, err, domain.KindInsufficientFunds)
	requireBalances(t, f.account(t, acc.ID), "100", "0")
}

func TestAccountSelectorString(t *testing.T) {
	assert.Equal(t, "abcdefghij", ByID("abcdefghij").String())
	assert.Equal(t, "abcdefghij/NGN", ByOwner("abcdefghij", "NGN").String())
}
