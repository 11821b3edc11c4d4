package domain

// Parties, channels and providers.
const (
	// PartyInternal is the giver of a deposit and the receiver of a withdrawal.
	PartyInternal = "INTERNAL"

	ChannelInternal = "INTERNAL"
	ChannelExternal = "EXTERNAL"

	ProviderInternal = "internal"

	CurrencyNGN = "NGN"

	// DefaultCurrency is provisioned for every user at signup.
	DefaultCurrency = CurrencyNGN
)

const (
	TxTypeDeposit    = "deposit"
	TxTypeWithdrawal = "withdrawal"
	TxTypeTransfer   = "transfer"

	TxStatusPending = "pending"
	TxStatusSuccess = "success"
	TxStatusFailed  = "failed"
)

// Identifier shape shared by users, accounts and transactions.
const (
	IDLength   = 10
	IDAlphabet = "abcdefghijklmnopqrstuvwxyz"
)

var supportedCurrencies = map[string]struct{}{
	CurrencyNGN: {},
}

// IsSupportedCurrency reports whether accounts may be opened in currency.
func IsSupportedCurrency(currency string) bool {
	_, ok := supportedCurrencies[currency]
	return ok
}

// IsTerminalStatus reports whether status can no longer change.
func IsTerminalStatus(status string) bool {
	return status == TxStatusSuccess || status == TxStatusFailed
}
