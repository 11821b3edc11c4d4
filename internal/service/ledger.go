package service

import (
	"context"
	"fmt"

	"github.com/ayo6706/wallet-ledger/internal/domain"
	"github.com/ayo6706/wallet-ledger/internal/repository"
	"github.com/shopspring/decimal"
)

// AccountSelector addresses an account either by id or by owner and currency.
type AccountSelector struct {
	AccountID string
	UserID    string
	Currency  string
}

func ByID(accountID string) AccountSelector {
	return AccountSelector{AccountID: accountID}
}

func ByOwner(userID, currency string) AccountSelector {
	return AccountSelector{UserID: userID, Currency: currency}
}

func (s AccountSelector) validate() error {
	if s.AccountID != "" {
		if s.UserID != "" || s.Currency != "" {
			return domain.Validation("account selector must use either an id or an owner, not both")
		}
		return nil
	}
	if s.UserID == "" || s.Currency == "" {
		return domain.Validation("account selector requires an id or a user and currency")
	}
	return nil
}

func (s AccountSelector) String() string {
	if s.AccountID != "" {
		return s.AccountID
	}
	return s.UserID + "/" + s.Currency
}

// AccountLedger applies relative balance mutations. It does not check
// sufficiency: callers verify balances under a row lock in the same scope.
type AccountLedger struct{}

func NewAccountLedger() *AccountLedger {
	return &AccountLedger{}
}

// Deposit credits the available balance.
func (l *AccountLedger) Deposit(ctx context.Context, qtx repository.Querier, sel AccountSelector, amount decimal.Decimal) error {
	return l.adjust(ctx, qtx, sel, "deposit", amount, amount, decimal.Zero)
}

// Withdraw releases reserved funds without returning them to the available balance.
func (l *AccountLedger) Withdraw(ctx context.Context, qtx repository.Querier, sel AccountSelector, amount decimal.Decimal) error {
	return l.adjust(ctx, qtx, sel, "withdraw", amount, decimal.Zero, amount.Neg())
}

// LockAmount moves funds from available to reserved.
func (l *AccountLedger) LockAmount(ctx context.Context, qtx repository.Querier, sel AccountSelector, amount decimal.Decimal) error {
	return l.adjust(ctx, qtx, sel, "lock amount", amount, amount.Neg(), amount)
}

// UnlockAmount moves funds from reserved back to available.
func (l *AccountLedger) UnlockAmount(ctx context.Context, qtx repository.Querier, sel AccountSelector, amount decimal.Decimal) error {
	return l.adjust(ctx, qtx, sel, "unlock amount", amount, amount, amount.Neg())
}

func (l *AccountLedger) adjust(ctx context.Context, qtx repository.Querier, sel AccountSelector, op string, amount, balanceDelta, lockedDelta decimal.Decimal) error {
	if err := sel.validate(); err != nil {
		return err
	}
	if !amount.IsPositive() {
		return domain.Validation(op + ": amount must be greater than zero")
	}

	rows, err := qtx.AdjustAccountBalances(ctx, repository.AdjustAccountBalancesParams{
		BalanceDelta: balanceDelta,
		LockedDelta:  lockedDelta,
		AccountID:    sel.AccountID,
		UserID:       sel.UserID,
		Currency:     sel.Currency,
	})
	if err != nil {
		if repository.IsCheckViolation(err) {
			return domain.InsufficientFunds(fmt.Sprintf("%s would overdraw account %s", op, sel))
		}
		return domain.Internal(op, err)
	}
	if rows == 0 {
		return domain.NotFound(fmt.Sprintf("account %s not found", sel))
	}
	if err := requireExactlyOne(rows, op); err != nil {
		return domain.Internal(op, err)
	}
	return nil
}
