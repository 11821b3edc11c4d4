package repository

import (
	"context"
	"time"

	"github.com/ayo6706/wallet-ledger/internal/models"
	"github.com/jackc/pgx/v5"
)

const userColumns = `id, first_name, last_name, email, password_hash, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

const createUser = `INSERT INTO users (id, first_name, last_name, email, password_hash)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + userColumns

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (*models.User, error) {
	ctx, cancel := q.bound(ctx)
	defer cancel()
	return scanUser(q.db.QueryRow(ctx, createUser, arg.ID, arg.FirstName, arg.LastName, arg.Email, arg.PasswordHash))
}

const getUser = `SELECT ` + userColumns + ` FROM users WHERE id = $1`

func (q *Queries) GetUser(ctx context.Context, id string) (*models.User, error) {
	ctx, cancel := q.bound(ctx)
	defer cancel()
	return scanUser(q.db.QueryRow(ctx, getUser, id))
}

const getUserByEmail = `SELECT ` + userColumns + ` FROM users WHERE email = $1`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	ctx, cancel := q.bound(ctx)
	defer cancel()
	return scanUser(q.db.QueryRow(ctx, getUserByEmail, email))
}

const userIDExists = `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`

func (q *Queries) UserIDExists(ctx context.Context, id string) (bool, error) {
	return q.exists(ctx, userIDExists, id)
}

const accountColumns = `id, user_id, currency, balance, locked_balance, channel, created_at, updated_at`

func scanAccount(row pgx.Row) (*models.Account, error) {
	var a models.Account
	if err := row.Scan(&a.ID, &a.UserID, &a.Currency, &a.Balance, &a.LockedBalance, &a.Channel, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

const createAccount = `INSERT INTO accounts (id, user_id, currency, channel)
VALUES ($1, $2, $3, $4)
RETURNING ` + accountColumns

func (q *Queries) CreateAccount(ctx context.Context, arg CreateAccountParams) (*models.Account, error) {
	ctx, cancel := q.bound(ctx)
	defer cancel()
	return scanAccount(q.db.QueryRow(ctx, createAccount, arg.ID, arg.UserID, arg.Currency, arg.Channel))
}

const getAccountByOwner = `SELECT ` + accountColumns + ` FROM accounts WHERE user_id = $1 AND currency = $2`

func (q *Queries) GetAccountByOwner(ctx context.Context, userID, currency string) (*models.Account, error) {
	ctx, cancel := q.bound(ctx)
	defer cancel()
	return scanAccount(q.db.QueryRow(ctx, getAccountByOwner, userID, currency))
}

const getAccountByOwnerForUpdate = getAccountByOwner + ` FOR UPDATE`

func (q *Queries) GetAccountByOwnerForUpdate(ctx context.Context, userID, currency string) (*models.Account, error) {
	ctx, cancel := q.bound(ctx)
	defer cancel()
	return scanAccount(q.db.QueryRow(ctx, getAccountByOwnerForUpdate, userID, currency))
}

const listAccountsByUser = `SELECT ` + accountColumns + ` FROM accounts WHERE user_id = $1 ORDER BY created_at, id`

func (q *Queries) ListAccountsByUser(ctx context.Context, userID string) ([]models.Account, error) {
	ctx, cancel := q.bound(ctx)
	defer cancel()
	rows, err := q.db.Query(ctx, listAccountsByUser, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []models.Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *a)
	}
	return items, rows.Err()
}

const accountIDExists = `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`

func (q *Queries) AccountIDExists(ctx context.Context, id string) (bool, error) {
	return q.exists(ctx, accountIDExists, id)
}

const adjustAccountBalances = `UPDATE accounts
SET balance = balance + $1::numeric,
    locked_balance = locked_balance + $2::numeric,
    updated_at = NOW()
WHERE CASE WHEN $3::text <> '' THEN id = $3::text
           ELSE user_id = $4::text AND currency = $5::text END`

// AdjustAccountBalances applies relative deltas. The CHECK constraints reject
// any update that would drive either balance negative.
func (q *Queries) AdjustAccountBalances(ctx context.Context, arg AdjustAccountBalancesParams) (int64, error) {
	ctx, cancel := q.bound(ctx)
	defer cancel()
	tag, err := q.db.Exec(ctx, adjustAccountBalances, arg.BalanceDelta, arg.LockedDelta, arg.AccountID, arg.UserID, arg.Currency)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const countInvalidBalanceAccounts = `SELECT COUNT(*) FROM accounts WHERE balance < 0 OR locked_balance < 0`

func (q *Queries) CountInvalidBalanceAccounts(ctx context.Context) (int64, error) {
	ctx, cancel := q.bound(ctx)
	defer cancel()
	var n int64
	err := q.db.QueryRow(ctx, countInvalidBalanceAccounts).Scan(&n)
	return n, err
}

const transactionColumns = `id, amount, fee, channel, currency, receiver_id, giver_id, type, status,
provider_name, provider_reference, provider_fee, settled_at, created_at, updated_at`

func scanTransaction(row pgx.Row) (*models.Transaction, error) {
	var t models.Transaction
	if err := row.Scan(
		&t.ID, &t.Amount, &t.Fee, &t.Channel, &t.Currency, &t.ReceiverID, &t.GiverID, &t.Type, &t.Status,
		&t.ProviderName, &t.ProviderReference, &t.ProviderFee, &t.SettledAt, &t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &t, nil
}

const createTransaction = `INSERT INTO transactions (
    id, amount, fee, channel, currency, receiver_id, giver_id, type, provider_name, status, settled_at
) VALUES ($1, $2::numeric, $3::numeric, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING ` + transactionColumns

func (q *Queries) CreateTransaction(ctx context.Context, arg CreateTransactionParams) (*models.Transaction, error) {
	ctx, cancel := q.bound(ctx)
	defer cancel()
	return scanTransaction(q.db.QueryRow(ctx, createTransaction,
		arg.ID, arg.Amount, arg.Fee, arg.Channel, arg.Currency, arg.ReceiverID, arg.GiverID,
		arg.Type, arg.ProviderName, arg.Status, arg.SettledAt,
	))
}

const transactionIDExists = `SELECT EXISTS (SELECT 1 FROM transactions WHERE id = $1)`

func (q *Queries) TransactionIDExists(ctx context.Context, id string) (bool, error) {
	return q.exists(ctx, transactionIDExists, id)
}

const getTransactionForUpdate = `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1 FOR UPDATE`

func (q *Queries) GetTransactionForUpdate(ctx context.Context, id string) (*models.Transaction, error) {
	ctx, cancel := q.bound(ctx)
	defer cancel()
	return scanTransaction(q.db.QueryRow(ctx, getTransactionForUpdate, id))
}

const getTransactionByProviderReferenceForUpdate = `SELECT ` + transactionColumns + `
FROM transactions WHERE provider_reference = $1
ORDER BY created_at
LIMIT 1
FOR UPDATE`

func (q *Queries) GetTransactionByProviderReferenceForUpdate(ctx context.Context, providerReference string) (*models.Transaction, error) {
	ctx, cancel := q.bound(ctx)
	defer cancel()
	return scanTransaction(q.db.QueryRow(ctx, getTransactionByProviderReferenceForUpdate, providerReference))
}

const setTransactionProviderDetails = `UPDATE transactions
SET provider_reference = $2, provider_fee = $3::numeric, updated_at = NOW()
WHERE id = $1`

func (q *Queries) SetTransactionProviderDetails(ctx context.Context, arg SetTransactionProviderDetailsParams) (int64, error) {
	ctx, cancel := q.bound(ctx)
	defer cancel()
	tag, err := q.db.Exec(ctx, setTransactionProviderDetails, arg.ID, arg.ProviderReference, arg.ProviderFee)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const settleTransaction = `UPDATE transactions
SET status = $2, settled_at = $3, updated_at = NOW()
WHERE id = $1 AND status = 'pending'`

// SettleTransaction only touches pending rows, so a second settlement affects zero rows.
func (q *Queries) SettleTransaction(ctx context.Context, arg SettleTransactionParams) (int64, error) {
	ctx, cancel := q.bound(ctx)
	defer cancel()
	tag, err := q.db.Exec(ctx, settleTransaction, arg.ID, arg.Status, arg.SettledAt)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const listTransactionsForAccounts = `SELECT ` + transactionColumns + `
FROM transactions
WHERE (receiver_id = ANY($1::text[]) OR giver_id = ANY($1::text[]))
  AND ($2::text = '' OR id = $2::text)
ORDER BY created_at DESC, id
LIMIT $3 OFFSET $4`

func (q *Queries) ListTransactionsForAccounts(ctx context.Context, arg ListTransactionsForAccountsParams) ([]models.Transaction, error) {
	ctx, cancel := q.bound(ctx)
	defer cancel()
	rows, err := q.db.Query(ctx, listTransactionsForAccounts, arg.AccountIDs, arg.TransactionID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []models.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *t)
	}
	return items, rows.Err()
}

const countStalePendingTransactions = `SELECT COUNT(*) FROM transactions WHERE status = 'pending' AND created_at < $1`

func (q *Queries) CountStalePendingTransactions(ctx context.Context, createdBefore time.Time) (int64, error) {
	ctx, cancel := q.bound(ctx)
	defer cancel()
	var n int64
	err := q.db.QueryRow(ctx, countStalePendingTransactions, createdBefore).Scan(&n)
	return n, err
}

const insertAuditLog = `INSERT INTO audit_log (entity_type, entity_id, actor_id, action, prev_state, next_state, metadata)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

func (q *Queries) InsertAuditLog(ctx context.Context, arg InsertAuditLogParams) error {
	ctx, cancel := q.bound(ctx)
	defer cancel()
	_, err := q.db.Exec(ctx, insertAuditLog, arg.EntityType, arg.EntityID, arg.ActorID, arg.Action, arg.PrevState, arg.NextState, arg.Metadata)
	return err
}

const idempotencyColumns = `idempotency_key, request_hash, method, path, response_status, response_body,
content_type, in_progress, created_at, updated_at`

func scanIdempotencyKey(row pgx.Row) (IdempotencyKey, error) {
	var i IdempotencyKey
	err := row.Scan(
		&i.IdempotencyKey, &i.RequestHash, &i.Method, &i.Path, &i.ResponseStatus, &i.ResponseBody,
		&i.ContentType, &i.InProgress, &i.CreatedAt, &i.UpdatedAt,
	)
	return i, err
}

const getIdempotencyKey = `SELECT ` + idempotencyColumns + ` FROM idempotency_keys WHERE idempotency_key = $1`

func (q *Queries) GetIdempotencyKey(ctx context.Context, key string) (IdempotencyKey, error) {
	ctx, cancel := q.bound(ctx)
	defer cancel()
	return scanIdempotencyKey(q.db.QueryRow(ctx, getIdempotencyKey, key))
}

const reserveIdempotencyKey = `INSERT INTO idempotency_keys (idempotency_key, request_hash, method, path)
VALUES ($1, $2, $3, $4)
ON CONFLICT (idempotency_key) DO NOTHING
RETURNING ` + idempotencyColumns

// ReserveIdempotencyKey returns pgx.ErrNoRows when the key already exists.
func (q *Queries) ReserveIdempotencyKey(ctx context.Context, arg ReserveIdempotencyKeyParams) (IdempotencyKey, error) {
	ctx, cancel := q.bound(ctx)
	defer cancel()
	return scanIdempotencyKey(q.db.QueryRow(ctx, reserveIdempotencyKey, arg.IdempotencyKey, arg.RequestHash, arg.Method, arg.Path))
}

const finalizeIdempotencyKey = `UPDATE idempotency_keys
SET response_status = $1, response_body = $2, content_type = $3, in_progress = FALSE, updated_at = NOW()
WHERE idempotency_key = $4 AND request_hash = $5
RETURNING ` + idempotencyColumns

func (q *Queries) FinalizeIdempotencyKey(ctx context.Context, arg FinalizeIdempotencyKeyParams) (IdempotencyKey, error) {
	ctx, cancel := q.bound(ctx)
	defer cancel()
	return scanIdempotencyKey(q.db.QueryRow(ctx, finalizeIdempotencyKey,
		arg.ResponseStatus, arg.ResponseBody, arg.ContentType, arg.IdempotencyKey, arg.RequestHash,
	))
}

func (q *Queries) exists(ctx context.Context, query, id string) (bool, error) {
	ctx, cancel := q.bound(ctx)
	defer cancel()
	var ok bool
	err := q.db.QueryRow(ctx, query, id).Scan(&ok)
	return ok, err
}
