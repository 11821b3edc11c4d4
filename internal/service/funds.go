package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ayo6706/wallet-ledger/internal/domain"
	"github.com/ayo6706/wallet-ledger/internal/gateway"
	"github.com/ayo6706/wallet-ledger/internal/models"
	"github.com/ayo6706/wallet-ledger/internal/observability"
	"github.com/ayo6706/wallet-ledger/internal/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type FundsConfig struct {
	CallbackURL    string
	GatewayTimeout time.Duration
}

// FundsService orchestrates deposits, withdrawals and internal transfers.
type FundsService struct {
	store        QueryStore
	providers    *gateway.Registry
	ledger       *AccountLedger
	transactions *TransactionStore
	settlement   *SettlementService
	audit        *AuditService
	cfg          FundsConfig
}

func NewFundsService(store QueryStore, providers *gateway.Registry, cfg FundsConfig) *FundsService {
	if cfg.GatewayTimeout <= 0 {
		cfg.GatewayTimeout = 5 * time.Second
	}
	ledger := NewAccountLedger()
	transactions := NewTransactionStore()
	audit := NewAuditService()
	return &FundsService{
		store:        store,
		providers:    providers,
		ledger:       ledger,
		transactions: transactions,
		settlement:   NewSettlementService(store, providers, ledger, transactions, audit),
		audit:        audit,
		cfg:          cfg,
	}
}

type DepositResult struct {
	TransactionID string `json:"transaction_id"`
	Provider      string `json:"provider"`
	Reference     string `json:"reference"`
	CheckoutURL   string `json:"checkout_url"`
}

type WithdrawRequest struct {
	Currency          string
	Amount            decimal.Decimal
	BankAccountNumber string
	BankCode          string
}

type TransferRequest struct {
	Currency   string
	Amount     decimal.Decimal
	ReceiverID string
}

func normalizeCurrency(currency string) (string, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if !domain.IsSupportedCurrency(currency) {
		return "", domain.Validation(fmt.Sprintf("unsupported currency %q", currency))
	}
	return currency, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func (s *FundsService) resolveProvider(currency string, amount decimal.Decimal) (gateway.Provider, error) {
	provider, ok := s.providers.Resolve(currency, amount)
	if !ok {
		return nil, domain.Unprocessable("Unable to process payment. Currency not supported.")
	}
	return provider, nil
}

func (s *FundsService) gatewayContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.cfg.GatewayTimeout)
}

// InitializeDeposit creates a pending deposit and returns the provider checkout.
// Balances are untouched until the provider confirms the charge.
func (s *FundsService) InitializeDeposit(ctx context.Context, principal domain.Principal, currency string, amount decimal.Decimal) (result *DepositResult, err error) {
	defer func() { recordMovement(domain.TxTypeDeposit, err) }()

	currency, err = normalizeCurrency(currency)
	if err != nil {
		return nil, err
	}
	if err := domain.ValidateAmount(amount); err != nil {
		return nil, err
	}

	account, err := s.store.Queries().GetAccountByOwner(ctx, principal.UserID, currency)
	if err != nil {
		return nil, storeError(err, fmt.Sprintf("User has no account in %s.", currency))
	}
	provider, err := s.resolveProvider(currency, amount)
	if err != nil {
		return nil, err
	}

	var tx *models.Transaction
	err = s.store.RunInTx(ctx, func(qtx repository.Querier) error {
		created, err := s.transactions.Create(ctx, qtx, NewTransaction{
			Amount:       amount,
			Fee:          decimal.Zero,
			Channel:      domain.ChannelExternal,
			Currency:     currency,
			ReceiverID:   account.ID,
			GiverID:      domain.PartyInternal,
			Type:         domain.TxTypeDeposit,
			ProviderName: string(provider.Name()),
		})
		if err != nil {
			return err
		}
		tx = created
		return s.audit.Write(ctx, qtx, "transaction", tx.ID, principal.UserID, "created", "", tx.Status, nil)
	})
	if err != nil {
		return nil, err
	}

	gctx, cancel := s.gatewayContext(ctx)
	defer cancel()
	start := time.Now()
	checkout, err := provider.InitializeTransaction(gctx, gateway.TransactionRequest{
		Reference:   tx.ID,
		Amount:      tx.Total(),
		Currency:    currency,
		Email:       principal.Email,
		CallbackURL: s.cfg.CallbackURL,
	})
	observability.ObserveGateway(string(provider.Name()), "initialize_transaction", err, time.Since(start))
	if err != nil {
		zap.L().Error("initialize deposit checkout failed",
			zap.Error(err),
			zap.String("transaction_id", tx.ID),
			zap.String("provider", string(provider.Name())),
		)
		return nil, domain.UnprocessableWrap("Unable to process transaction. Try again.", err)
	}

	return &DepositResult{
		TransactionID: tx.ID,
		Provider:      string(provider.Name()),
		Reference:     checkout.Reference,
		CheckoutURL:   checkout.CheckoutURL,
	}, nil
}

// InitializeWithdraw reserves amount+fee and asks the provider to pay it out.
// Any failure rolls back both the reservation and the transaction record.
// Caller cancellation does not interrupt it.
func (s *FundsService) InitializeWithdraw(ctx context.Context, principal domain.Principal, req WithdrawRequest) (tx *models.Transaction, err error) {
	defer func() { recordMovement(domain.TxTypeWithdrawal, err) }()
	// The scope outlives the caller; persistence and gateway timeouts still bound it.
	ctx = context.WithoutCancel(ctx)

	currency, err := normalizeCurrency(req.Currency)
	if err != nil {
		return nil, err
	}
	if err := domain.ValidateAmount(req.Amount); err != nil {
		return nil, err
	}
	accountNumber := strings.TrimSpace(req.BankAccountNumber)
	bankCode := strings.TrimSpace(req.BankCode)
	if !isDigits(accountNumber) {
		return nil, domain.Validation("bankAccountNumber must be numbers in a string format.")
	}
	if !isDigits(bankCode) {
		return nil, domain.Validation("bankCode must be numbers in a string format.")
	}

	fee := decimal.Zero
	total := req.Amount.Add(fee)

	err = s.store.RunInTx(ctx, func(qtx repository.Querier) error {
		account, err := qtx.GetAccountByOwnerForUpdate(ctx, principal.UserID, currency)
		if err != nil {
			return storeError(err, fmt.Sprintf("User has no account in %s.", currency))
		}
		if account.Balance.LessThan(total) {
			return domain.InsufficientFunds("Account has insufficient funds.")
		}
		provider, err := s.resolveProvider(currency, req.Amount)
		if err != nil {
			return err
		}

		created, err := s.transactions.Create(ctx, qtx, NewTransaction{
			Amount:       req.Amount,
			Fee:          fee,
			Channel:      domain.ChannelExternal,
			Currency:     currency,
			ReceiverID:   domain.PartyInternal,
			GiverID:      account.ID,
			Type:         domain.TxTypeWithdrawal,
			ProviderName: string(provider.Name()),
		})
		if err != nil {
			return err
		}
		if err := s.audit.Write(ctx, qtx, "transaction", created.ID, principal.UserID, "created", "", created.Status, nil); err != nil {
			return domain.Internal("audit withdrawal", err)
		}
		if err := s.ledger.LockAmount(ctx, qtx, ByID(account.ID), created.Total()); err != nil {
			return err
		}

		transfer, err := s.payout(ctx, provider, created, accountNumber, bankCode)
		if err != nil {
			return err
		}
		if err := s.transactions.RecordProviderDetails(ctx, qtx, created.ID, transfer.ProviderReference, transfer.Fee); err != nil {
			return err
		}
		ref := transfer.ProviderReference
		created.ProviderReference = &ref
		created.ProviderFee = transfer.Fee
		tx = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tx, nil
}

func (s *FundsService) payout(ctx context.Context, provider gateway.Provider, tx *models.Transaction, accountNumber, bankCode string) (*gateway.Transfer, error) {
	name := string(provider.Name())

	gctx, cancel := s.gatewayContext(ctx)
	start := time.Now()
	accountName, err := provider.GetAccountName(gctx, accountNumber, bankCode)
	cancel()
	observability.ObserveGateway(name, "get_account_name", err, time.Since(start))
	if err != nil {
		zap.L().Error("resolve bank account failed", zap.Error(err), zap.String("transaction_id", tx.ID), zap.String("provider", name))
		return nil, domain.UnprocessableWrap("Unable to get bank account name. Check the bank details and try again.", err)
	}
	if accountName == "" {
		return nil, domain.Unprocessable("Invalid bank details.")
	}

	gctx, cancel = s.gatewayContext(ctx)
	defer cancel()
	start = time.Now()
	transfer, err := provider.InitializeTransfer(gctx, gateway.TransferRequest{
		Reference:         tx.ID,
		Amount:            tx.Amount,
		Currency:          tx.Currency,
		BankAccountNumber: accountNumber,
		BankCode:          bankCode,
		BankAccountName:   accountName,
	})
	observability.ObserveGateway(name, "initialize_transfer", err, time.Since(start))
	if err != nil {
		zap.L().Error("initialize transfer failed", zap.Error(err), zap.String("transaction_id", tx.ID), zap.String("provider", name))
		return nil, domain.UnprocessableWrap("Unable to process transaction. Try again.", err)
	}
	if transfer.ProviderReference == "" {
		return nil, domain.Unprocessable("Unable to process transaction. Try again.")
	}
	return transfer, nil
}

// TransferFunds moves amount between two users' accounts in one atomic scope
// and records a transaction that is already successful. Like InitializeWithdraw
// it runs to completion once started.
func (s *FundsService) TransferFunds(ctx context.Context, principal domain.Principal, req TransferRequest) (tx *models.Transaction, err error) {
	defer func() { recordMovement(domain.TxTypeTransfer, err) }()
	ctx = context.WithoutCancel(ctx)

	currency, err := normalizeCurrency(req.Currency)
	if err != nil {
		return nil, err
	}
	if err := domain.ValidateAmount(req.Amount); err != nil {
		return nil, err
	}
	receiverID := strings.TrimSpace(req.ReceiverID)
	if !domain.IsValidID(receiverID) {
		return nil, domain.Validation(fmt.Sprintf("receiverId must be a string of %d characters.", domain.IDLength))
	}
	if receiverID == principal.UserID {
		return nil, domain.Validation("cannot transfer to yourself")
	}

	err = s.store.RunInTx(ctx, func(qtx repository.Querier) error {
		// Lock both rows in a stable order so opposing transfers cannot deadlock.
		owners := []string{principal.UserID, receiverID}
		sort.Strings(owners)
		locked := make(map[string]*models.Account, 2)
		for _, owner := range owners {
			account, err := qtx.GetAccountByOwnerForUpdate(ctx, owner, currency)
			if err != nil {
				msg := fmt.Sprintf("User has no account in %s.", currency)
				if owner == receiverID {
					msg = fmt.Sprintf("Receiver has no account in %s.", currency)
				}
				return storeError(err, msg)
			}
			locked[owner] = account
		}
		giver, receiver := locked[principal.UserID], locked[receiverID]

		if giver.Balance.LessThan(req.Amount) {
			return domain.InsufficientFunds("User Account has insufficient funds.")
		}
		if err := s.ledger.LockAmount(ctx, qtx, ByID(giver.ID), req.Amount); err != nil {
			return err
		}
		if err := s.ledger.Deposit(ctx, qtx, ByID(receiver.ID), req.Amount); err != nil {
			return err
		}
		if err := s.ledger.Withdraw(ctx, qtx, ByID(giver.ID), req.Amount); err != nil {
			return err
		}

		created, err := s.transactions.Create(ctx, qtx, NewTransaction{
			Amount:       req.Amount,
			Fee:          decimal.Zero,
			Channel:      domain.ChannelInternal,
			Currency:     currency,
			ReceiverID:   receiver.ID,
			GiverID:      giver.ID,
			Type:         domain.TxTypeTransfer,
			ProviderName: domain.ProviderInternal,
			Status:       domain.TxStatusSuccess,
		})
		if err != nil {
			return err
		}
		metadata, err := json.Marshal(map[string]string{"receiver_user_id": receiverID})
		if err != nil {
			return domain.Internal("encode transfer metadata", err)
		}
		if err := s.audit.Write(ctx, qtx, "transaction", created.ID, principal.UserID, "created", "", created.Status, metadata); err != nil {
			return domain.Internal("audit transfer", err)
		}
		tx = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// HandleWebhook is the entry point for provider callbacks.
func (s *FundsService) HandleWebhook(ctx context.Context, providerName, signature string, payload []byte) (*SettlementResult, error) {
	return s.settlement.Reconcile(ctx, providerName, signature, payload)
}

// SignatureHeader returns the header the named provider signs webhooks with.
func (s *FundsService) SignatureHeader(providerName string) (string, bool) {
	provider, ok := s.providers.Get(providerName)
	if !ok {
		return "", false
	}
	return provider.SignatureHeader(), true
}

func recordMovement(txType string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = domain.KindOf(err).String()
	}
	observability.IncrementMovement(txType, outcome)
}
