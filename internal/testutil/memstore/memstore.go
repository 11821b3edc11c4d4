// Package memstore is an in-memory repository.Querier used by unit tests.
//
// RunInTx serializes transactions behind a store-wide lock and restores a
// snapshot when fn fails, which is enough to model row locks and rollback.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ayo6706/wallet-ledger/internal/models"
	"github.com/ayo6706/wallet-ledger/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type state struct {
	users        map[string]models.User
	accounts     map[string]models.Account
	transactions map[string]models.Transaction
	order        map[string]int64
	idempotency  map[string]repository.IdempotencyKey
	audit        []repository.InsertAuditLogParams
	seq          int64
}

func newState() *state {
	return &state{
		users:        map[string]models.User{},
		accounts:     map[string]models.Account{},
		transactions: map[string]models.Transaction{},
		order:        map[string]int64{},
		idempotency:  map[string]repository.IdempotencyKey{},
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.transactions {
		c.transactions[k] = v
	}
	for k, v := range s.order {
		c.order[k] = v
	}
	for k, v := range s.idempotency {
		c.idempotency[k] = v
	}
	c.audit = append(c.audit, s.audit...)
	c.seq = s.seq
	return c
}

// Store is safe for concurrent use.
type Store struct {
	mu   sync.Mutex
	data *state

	// Now stamps created_at/updated_at. Tests may replace it.
	Now func() time.Time
	// PingErr is returned by Ping.
	PingErr error
}

func New() *Store {
	return &Store{data: newState(), Now: time.Now}
}

// Queries returns a query set where every call is its own transaction.
func (s *Store) Queries() repository.Querier {
	return &view{s: s}
}

// RunInTx runs fn while holding the store lock, rolling back on error.
func (s *Store) RunInTx(ctx context.Context, fn func(q repository.Querier) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	if err := fn(&view{s: s, inTx: true}); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

func (s *Store) Ping(context.Context) error {
	return s.PingErr
}

// Account returns a copy of the stored account.
func (s *Store) Account(id string) (models.Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.data.accounts[id]
	return a, ok
}

// PutAccount inserts or replaces an account, bypassing balance checks.
func (s *Store) PutAccount(a models.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.Now()
		a.UpdatedAt = a.CreatedAt
	}
	s.data.accounts[a.ID] = a
}

func (s *Store) Transaction(id string) (models.Transaction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.data.transactions[id]
	return t, ok
}

// Transactions returns every stored transaction, oldest first.
func (s *Store) Transactions() []models.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Transaction, 0, len(s.data.transactions))
	for _, t := range s.data.transactions {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return s.data.order[out[i].ID] < s.data.order[out[j].ID] })
	return out
}

func (s *Store) AuditLog() []repository.InsertAuditLogParams {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]repository.InsertAuditLogParams(nil), s.data.audit...)
}

type view struct {
	s    *Store
	inTx bool
}

var _ repository.Querier = (*view)(nil)

func (v *view) lock() func() {
	if v.inTx {
		return func() {}
	}
	v.s.mu.Lock()
	return v.s.mu.Unlock
}

func uniqueViolation(constraint string) error {
	return &pgconn.PgError{Code: "23505", ConstraintName: constraint, Message: "duplicate key value violates unique constraint"}
}

func checkViolation(constraint string) error {
	return &pgconn.PgError{Code: "23514", ConstraintName: constraint, Message: "new row violates check constraint"}
}

func (v *view) CreateUser(ctx context.Context, arg repository.CreateUserParams) (*models.User, error) {
	defer v.lock()()
	d := v.s.data
	if _, ok := d.users[arg.ID]; ok {
		return nil, uniqueViolation("users_pkey")
	}
	for _, u := range d.users {
		if u.Email == arg.Email {
			return nil, uniqueViolation("users_email_key")
		}
	}
	now := v.s.Now()
	u := models.User{
		ID:           arg.ID,
		FirstName:    arg.FirstName,
		LastName:     arg.LastName,
		Email:        arg.Email,
		PasswordHash: arg.PasswordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	d.users[u.ID] = u
	return &u, nil
}

func (v *view) GetUser(ctx context.Context, id string) (*models.User, error) {
	defer v.lock()()
	u, ok := v.s.data.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &u, nil
}

func (v *view) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	defer v.lock()()
	for _, u := range v.s.data.users {
		if u.Email == email {
			u := u
			return &u, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (v *view) UserIDExists(ctx context.Context, id string) (bool, error) {
	defer v.lock()()
	_, ok := v.s.data.users[id]
	return ok, nil
}

func (v *view) CreateAccount(ctx context.Context, arg repository.CreateAccountParams) (*models.Account, error) {
	defer v.lock()()
	d := v.s.data
	if _, ok := d.accounts[arg.ID]; ok {
		return nil, uniqueViolation("accounts_pkey")
	}
	for _, a := range d.accounts {
		if a.UserID == arg.UserID && a.Currency == arg.Currency {
			return nil, uniqueViolation("accounts_user_currency_key")
		}
	}
	now := v.s.Now()
	a := models.Account{
		ID:        arg.ID,
		UserID:    arg.UserID,
		Currency:  arg.Currency,
		Channel:   arg.Channel,
		CreatedAt: now,
		UpdatedAt: now,
	}
	d.accounts[a.ID] = a
	return &a, nil
}

func (v *view) findByOwner(userID, currency string) (models.Account, bool) {
	for _, a := range v.s.data.accounts {
		if a.UserID == userID && a.Currency == currency {
			return a, true
		}
	}
	return models.Account{}, false
}

func (v *view) GetAccountByOwner(ctx context.Context, userID, currency string) (*models.Account, error) {
	defer v.lock()()
	a, ok := v.findByOwner(userID, currency)
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &a, nil
}

func (v *view) GetAccountByOwnerForUpdate(ctx context.Context, userID, currency string) (*models.Account, error) {
	return v.GetAccountByOwner(ctx, userID, currency)
}

func (v *view) ListAccountsByUser(ctx context.Context, userID string) ([]models.Account, error) {
	defer v.lock()()
	out := []models.Account{}
	for _, a := range v.s.data.accounts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (v *view) AccountIDExists(ctx context.Context, id string) (bool, error) {
	defer v.lock()()
	_, ok := v.s.data.accounts[id]
	return ok, nil
}

func (v *view) AdjustAccountBalances(ctx context.Context, arg repository.AdjustAccountBalancesParams) (int64, error) {
	defer v.lock()()
	var (
		a  models.Account
		ok bool
	)
	if arg.AccountID != "" {
		a, ok = v.s.data.accounts[arg.AccountID]
	} else {
		a, ok = v.findByOwner(arg.UserID, arg.Currency)
	}
	if !ok {
		return 0, nil
	}
	balance := a.Balance.Add(arg.BalanceDelta)
	locked := a.LockedBalance.Add(arg.LockedDelta)
	if balance.IsNegative() {
		return 0, checkViolation("accounts_balance_check")
	}
	if locked.IsNegative() {
		return 0, checkViolation("accounts_locked_balance_check")
	}
	a.Balance = balance
	a.LockedBalance = locked
	a.UpdatedAt = v.s.Now()
	v.s.data.accounts[a.ID] = a
	return 1, nil
}

func (v *view) CountInvalidBalanceAccounts(ctx context.Context) (int64, error) {
	defer v.lock()()
	var n int64
	for _, a := range v.s.data.accounts {
		if a.Balance.IsNegative() || a.LockedBalance.IsNegative() {
			n++
		}
	}
	return n, nil
}

func (v *view) CreateTransaction(ctx context.Context, arg repository.CreateTransactionParams) (*models.Transaction, error) {
	defer v.lock()()
	d := v.s.data
	if _, ok := d.transactions[arg.ID]; ok {
		return nil, uniqueViolation("transactions_pkey")
	}
	now := v.s.Now()
	t := models.Transaction{
		ID:           arg.ID,
		Amount:       arg.Amount,
		Fee:          arg.Fee,
		Channel:      arg.Channel,
		Currency:     arg.Currency,
		ReceiverID:   arg.ReceiverID,
		GiverID:      arg.GiverID,
		Type:         arg.Type,
		Status:       arg.Status,
		ProviderName: arg.ProviderName,
		SettledAt:    arg.SettledAt,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	d.seq++
	d.order[t.ID] = d.seq
	d.transactions[t.ID] = t
	return &t, nil
}

func (v *view) TransactionIDExists(ctx context.Context, id string) (bool, error) {
	defer v.lock()()
	_, ok := v.s.data.transactions[id]
	return ok, nil
}

func (v *view) GetTransactionForUpdate(ctx context.Context, id string) (*models.Transaction, error) {
	defer v.lock()()
	t, ok := v.s.data.transactions[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &t, nil
}

func (v *view) GetTransactionByProviderReferenceForUpdate(ctx context.Context, providerReference string) (*models.Transaction, error) {
	defer v.lock()()
	var (
		found *models.Transaction
		seq   int64
	)
	for _, t := range v.s.data.transactions {
		if t.ProviderReference == nil || *t.ProviderReference != providerReference {
			continue
		}
		if found == nil || v.s.data.order[t.ID] < seq {
			t := t
			found = &t
			seq = v.s.data.order[t.ID]
		}
	}
	if found == nil {
		return nil, pgx.ErrNoRows
	}
	return found, nil
}

func (v *view) SetTransactionProviderDetails(ctx context.Context, arg repository.SetTransactionProviderDetailsParams) (int64, error) {
	defer v.lock()()
	t, ok := v.s.data.transactions[arg.ID]
	if !ok {
		return 0, nil
	}
	ref := arg.ProviderReference
	t.ProviderReference = &ref
	t.ProviderFee = arg.ProviderFee
	t.UpdatedAt = v.s.Now()
	v.s.data.transactions[t.ID] = t
	return 1, nil
}

func (v *view) SettleTransaction(ctx context.Context, arg repository.SettleTransactionParams) (int64, error) {
	defer v.lock()()
	t, ok := v.s.data.transactions[arg.ID]
	if !ok || t.Status != "pending" {
		return 0, nil
	}
	settledAt := arg.SettledAt
	t.Status = arg.Status
	t.SettledAt = &settledAt
	t.UpdatedAt = v.s.Now()
	v.s.data.transactions[t.ID] = t
	return 1, nil
}

func (v *view) ListTransactionsForAccounts(ctx context.Context, arg repository.ListTransactionsForAccountsParams) ([]models.Transaction, error) {
	defer v.lock()()
	d := v.s.data
	ids := make(map[string]struct{}, len(arg.AccountIDs))
	for _, id := range arg.AccountIDs {
		ids[id] = struct{}{}
	}
	matched := []models.Transaction{}
	for _, t := range d.transactions {
		_, recv := ids[t.ReceiverID]
		_, give := ids[t.GiverID]
		if !recv && !give {
			continue
		}
		if arg.TransactionID != "" && t.ID != arg.TransactionID {
			continue
		}
		matched = append(matched, t)
	}
	sort.Slice(matched, func(i, j int) bool { return d.order[matched[i].ID] > d.order[matched[j].ID] })

	start := int(arg.Offset)
	if start > len(matched) {
		start = len(matched)
	}
	end := len(matched)
	if arg.Limit > 0 && start+int(arg.Limit) < end {
		end = start + int(arg.Limit)
	}
	return matched[start:end], nil
}

func (v *view) CountStalePendingTransactions(ctx context.Context, createdBefore time.Time) (int64, error) {
	defer v.lock()()
	var n int64
	for _, t := range v.s.data.transactions {
		if t.Status == "pending" && t.CreatedAt.Before(createdBefore) {
			n++
		}
	}
	return n, nil
}

func (v *view) InsertAuditLog(ctx context.Context, arg repository.InsertAuditLogParams) error {
	defer v.lock()()
	v.s.data.audit = append(v.s.data.audit, arg)
	return nil
}

func (v *view) GetIdempotencyKey(ctx context.Context, key string) (repository.IdempotencyKey, error) {
	defer v.lock()()
	rec, ok := v.s.data.idempotency[key]
	if !ok {
		return repository.IdempotencyKey{}, pgx.ErrNoRows
	}
	return rec, nil
}

func (v *view) ReserveIdempotencyKey(ctx context.Context, arg repository.ReserveIdempotencyKeyParams) (repository.IdempotencyKey, error) {
	defer v.lock()()
	if _, ok := v.s.data.idempotency[arg.IdempotencyKey]; ok {
		return repository.IdempotencyKey{}, pgx.ErrNoRows
	}
	now := v.s.Now()
	rec := repository.IdempotencyKey{
		IdempotencyKey: arg.IdempotencyKey,
		RequestHash:    arg.RequestHash,
		Method:         arg.Method,
		Path:           arg.Path,
		ContentType:    "application/json",
		InProgress:     true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	v.s.data.idempotency[rec.IdempotencyKey] = rec
	return rec, nil
}

func (v *view) FinalizeIdempotencyKey(ctx context.Context, arg repository.FinalizeIdempotencyKeyParams) (repository.IdempotencyKey, error) {
	defer v.lock()()
	rec, ok := v.s.data.idempotency[arg.IdempotencyKey]
	if !ok || rec.RequestHash != arg.RequestHash {
		return repository.IdempotencyKey{}, pgx.ErrNoRows
	}
	rec.ResponseStatus = arg.ResponseStatus
	rec.ResponseBody = append([]byte(nil), arg.ResponseBody...)
	rec.ContentType = arg.ContentType
	rec.InProgress = false
	rec.UpdatedAt = v.s.Now()
	v.s.data.idempotency[rec.IdempotencyKey] = rec
	return rec, nil
}
