package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID           string    `json:"id"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Account is a per-user, per-currency wallet. Balance is available funds;
// LockedBalance is reserved pending settlement.
type Account struct {
	ID            string          `json:"id"`
	UserID        string          `json:"user_id"`
	Currency      string          `json:"currency"`
	Balance       decimal.Decimal `json:"balance"`
	LockedBalance decimal.Decimal `json:"locked_balance"`
	Channel       string          `json:"channel"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type Transaction struct {
	ID                string          `json:"id"`
	Amount            decimal.Decimal `json:"amount"`
	Fee               decimal.Decimal `json:"fee"`
	Channel           string          `json:"channel"`
	Currency          string          `json:"currency"`
	ReceiverID        string          `json:"receiver_id"`
	GiverID           string          `json:"giver_id"`
	Type              string          `json:"type"`   // deposit, withdrawal, transfer
	Status            string          `json:"status"` // pending, success, failed
	ProviderName      string          `json:"provider_name"`
	ProviderReference *string         `json:"provider_reference,omitempty"`
	ProviderFee       decimal.Decimal `json:"provider_fee"`
	SettledAt         *time.Time      `json:"settled_at,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// Total is the amount reserved on the giver for a movement.
func (t *Transaction) Total() decimal.Decimal {
	return t.Amount.Add(t.Fee)
}
