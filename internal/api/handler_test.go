package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ayo6706/wallet-ledger/internal/api"
	"github.com/ayo6706/wallet-ledger/internal/api/handler"
	"github.com/ayo6706/wallet-ledger/internal/api/middleware"
	"github.com/ayo6706/wallet-ledger/internal/api/problem"
	"github.com/ayo6706/wallet-ledger/internal/config"
	"github.com/ayo6706/wallet-ledger/internal/domain"
	"github.com/ayo6706/wallet-ledger/internal/gateway"
	"github.com/ayo6706/wallet-ledger/internal/idempotency"
	"github.com/ayo6706/wallet-ledger/internal/models"
	"github.com/ayo6706/wallet-ledger/internal/service"
	"github.com/ayo6706/wallet-ledger/internal/testutil/memstore"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testJWTSecret     = "test-secret-0123456789-test-secret"
	testJWTIssuer     = "wallet-ledger-test"
	testJWTAudience   = "wallet-api-test"
	testWebhookSecret = "sandbox-test-secret"
)

type testAPI struct {
	router  chi.Router
	store   *memstore.Store
	sandbox *gateway.SandboxProvider
	tokens  *middleware.TokenSigner
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }

func setupAPI(t *testing.T, mutate ...func(*config.Config)) *testAPI {
	t.Helper()
	cfg := &config.Config{
		HTTPPort:           "0",
		JWTSecret:          testJWTSecret,
		JWTIssuer:          testJWTIssuer,
		JWTAudience:        testJWTAudience,
		RateLimitRPS:       1000,
		PublicRateLimitRPS: 1000,
		IdempotencyTTL:     time.Hour,
	}
	for _, m := range mutate {
		m(cfg)
	}

	store := memstore.New()
	sandbox := gateway.NewSandbox(testWebhookSecret, "")
	registry := gateway.NewRegistry()
	registry.Register(sandbox, gateway.DefaultBands()...)

	tokens := middleware.NewTokenSigner(time.Hour)
	accounts := service.NewAccountService(store)
	services := api.Services{
		Users:    service.NewUserService(store, accounts, tokens),
		Accounts: accounts,
		Funds:    service.NewFundsService(store, registry, service.FundsConfig{CallbackURL: "http://localhost/callback"}),
	}
	idemStore := idempotency.NewStore(nil, store.Queries(), cfg.IdempotencyTTL)
	checks := map[string]handler.Pinger{"database": store}

	router := api.NewRouter(cfg, zap.NewNop(), services, idemStore, nil, checks).Routes()
	return &testAPI{router: router, store: store, sandbox: sandbox, tokens: tokens}
}

// seedUser stores an NGN account holding balance and returns a principal with a token.
func (a *testAPI) seedUser(t *testing.T, balance string) (domain.Principal, string, models.Account) {
	t.Helper()
	p := domain.Principal{UserID: domain.GenerateID()}
	p.Email = p.UserID + "@example.com"
	account := models.Account{
		ID:       domain.GenerateID(),
		UserID:   p.UserID,
		Currency: domain.CurrencyNGN,
		Balance:  decimal.RequireFromString(balance),
		Channel:  domain.ChannelInternal,
	}
	a.store.PutAccount(account)
	token, err := a.tokens.Issue(p.UserID, p.Email)
	require.NoError(t, err)
	return p, token, account
}

func (a *testAPI) do(t *testing.T, method, path, token string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case []byte:
		buf.Write(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *testAPI) balances(t *testing.T, id string) (string, string) {
	t.Helper()
	acc, ok := a.store.Account(id)
	require.True(t, ok)
	return acc.Balance.StringFixed(2), acc.LockedBalance.StringFixed(2)
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, dst any) {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, "success", env.Status)
	require.NoError(t, json.Unmarshal(env.Data, dst))
}

func requireProblem(t *testing.T, w *httptest.ResponseRecorder, status int) map[string]any {
	t.Helper()
	require.Equal(t, status, w.Code, w.Body.String())
	require.Contains(t, w.Header().Get("Content-Type"), "application/problem+json")
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, float64(status), body["status"])
	return body
}

func TestRFC7807ProblemDetails(t *testing.T) {
	a := setupAPI(t)

	w := a.do(t, http.MethodGet, "/v1/accounts", "", nil, nil)
	body := requireProblem(t, w, http.StatusUnauthorized)
	assert.NotEmpty(t, body["type"])
	assert.NotEmpty(t, body["title"])
	assert.NotEmpty(t, body["detail"])
	assert.Equal(t, "/v1/accounts", body["instance"])
	assert.NotEmpty(t, body["request_id"])
	assert.Equal(t, w.Header().Get("X-Trace-ID"), body["request_id"])
}

func TestSignupLoginAndListAccounts(t *testing.T) {
	a := setupAPI(t)

	signup := map[string]string{"firstName": "Ayo", "lastName": "Bello", "email": "ayo@example.com", "password": "s3cret-pass"}
	w := a.do(t, http.MethodPost, "/v1/auth/signup", "", signup, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var user map[string]any
	decodeData(t, w, &user)
	assert.Equal(t, "ayo@example.com", user["email"])
	assert.NotContains(t, user, "password_hash")

	w = a.do(t, http.MethodPost, "/v1/auth/signup", "", signup, nil)
	requireProblem(t, w, http.StatusConflict)

	w = a.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{"email": "ayo@example.com", "password": "wrong-pass"}, nil)
	requireProblem(t, w, http.StatusUnauthorized)

	w = a.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{"email": "ayo@example.com", "password": "s3cret-pass"}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var session struct {
		Token string `json:"token"`
	}
	decodeData(t, w, &session)
	require.NotEmpty(t, session.Token)

	w = a.do(t, http.MethodGet, "/v1/users/me", session.Token, nil, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var me map[string]any
	decodeData(t, w, &me)
	assert.Equal(t, user["id"], me["id"])
	assert.Equal(t, "Ayo", me["first_name"])
	assert.NotContains(t, me, "password_hash")

	w = a.do(t, http.MethodGet, "/v1/accounts", session.Token, nil, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var accounts []models.Account
	decodeData(t, w, &accounts)
	require.Len(t, accounts, 1)
	assert.Equal(t, domain.CurrencyNGN, accounts[0].Currency)

	w = a.do(t, http.MethodGet, "/v1/accounts?currency=ngn", session.Token, nil, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var single models.Account
	decodeData(t, w, &single)
	assert.Equal(t, accounts[0].ID, single.ID)
}

func TestCreateAccountRejectsUnsupportedCurrency(t *testing.T) {
	a := setupAPI(t)
	_, token, _ := a.seedUser(t, "0")

	w := a.do(t, http.MethodPost, "/v1/accounts", token, map[string]string{"currency": "XYZ"}, nil)
	requireProblem(t, w, http.StatusBadRequest)

	w = a.do(t, http.MethodPost, "/v1/accounts", token, map[string]string{"currency": "NGN"}, nil)
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestTransferWithIdempotencyReplay(t *testing.T) {
	a := setupAPI(t)
	_, token, giver := a.seedUser(t, "1000")
	receiver, _, receiverAcc := a.seedUser(t, "0")

	body := map[string]string{"currency": "NGN", "amount": "250", "receiverId": receiver.UserID}

	w := a.do(t, http.MethodPost, "/v1/accounts/transfer", token, body, nil)
	requireProblem(t, w, http.StatusBadRequest)

	headers := map[string]string{"Idempotency-Key": "transfer-1"}
	first := a.do(t, http.MethodPost, "/v1/accounts/transfer", token, body, headers)
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())
	var tx models.Transaction
	decodeData(t, first, &tx)
	assert.Equal(t, domain.TxTypeTransfer, tx.Type)
	assert.Equal(t, domain.TxStatusSuccess, tx.Status)

	replay := a.do(t, http.MethodPost, "/v1/accounts/transfer", token, body, headers)
	require.Equal(t, http.StatusOK, replay.Code)
	assert.Equal(t, "postgres", replay.Header().Get("X-Idempotent-Replay"))
	assert.JSONEq(t, first.Body.String(), replay.Body.String())

	balance, locked := a.balances(t, giver.ID)
	assert.Equal(t, "750.00", balance)
	assert.Equal(t, "0.00", locked)
	balance, _ = a.balances(t, receiverAcc.ID)
	assert.Equal(t, "250.00", balance)

	body["amount"] = "300"
	w = a.do(t, http.MethodPost, "/v1/accounts/transfer", token, body, headers)
	requireProblem(t, w, http.StatusConflict)
}

func TestTransferErrors(t *testing.T) {
	a := setupAPI(t)
	sender, token, _ := a.seedUser(t, "100")
	receiver, _, _ := a.seedUser(t, "0")

	cases := []struct {
		name   string
		body   map[string]string
		status int
	}{
		{"insufficient funds", map[string]string{"currency": "NGN", "amount": "500", "receiverId": receiver.UserID}, http.StatusUnprocessableEntity},
		{"unknown receiver", map[string]string{"currency": "NGN", "amount": "5", "receiverId": domain.GenerateID()}, http.StatusNotFound},
		{"self transfer", map[string]string{"currency": "NGN", "amount": "5", "receiverId": sender.UserID}, http.StatusBadRequest},
		{"bad amount", map[string]string{"currency": "NGN", "amount": "-5", "receiverId": receiver.UserID}, http.StatusBadRequest},
	}
	for i, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			headers := map[string]string{"Idempotency-Key": "transfer-err-" + string(rune('a'+i))}
			w := a.do(t, http.MethodPost, "/v1/accounts/transfer", token, tc.body, headers)
			requireProblem(t, w, tc.status)
		})
	}
}

func TestDepositReturnsCheckoutLink(t *testing.T) {
	a := setupAPI(t)
	_, token, account := a.seedUser(t, "0")

	w := a.do(t, http.MethodPost, "/v1/accounts/deposit", token, map[string]string{"currency": "NGN", "amount": "5000"}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var result service.DepositResult
	decodeData(t, w, &result)
	assert.Equal(t, string(gateway.Sandbox), result.Provider)
	assert.Contains(t, result.CheckoutURL, result.TransactionID)

	tx, ok := a.store.Transaction(result.TransactionID)
	require.True(t, ok)
	assert.Equal(t, domain.TxStatusPending, tx.Status)
	assert.Equal(t, account.ID, tx.ReceiverID)

	w = a.do(t, http.MethodPost, "/v1/accounts/deposit", token, map[string]string{"currency": "NGN", "amount": "50"}, nil)
	requireProblem(t, w, http.StatusUnprocessableEntity)
}

func TestWithdrawSettledByWebhook(t *testing.T) {
	a := setupAPI(t)
	_, token, account := a.seedUser(t, "1000")

	body := map[string]string{"currency": "NGN", "amount": "500", "bankAccountNumber": "0123456789", "bankCode": "058"}
	w := a.do(t, http.MethodPost, "/v1/accounts/withdraw", token, body, map[string]string{"Idempotency-Key": "withdraw-1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var tx models.Transaction
	decodeData(t, w, &tx)
	require.NotNil(t, tx.ProviderReference)

	balance, locked := a.balances(t, account.ID)
	assert.Equal(t, "500.00", balance)
	assert.Equal(t, "500.00", locked)

	payload, sig, err := a.sandbox.SignedEvent("transfer.success", tx.ID, *tx.ProviderReference)
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		w = a.do(t, http.MethodPost, "/v1/webhooks/sandbox", "", payload, map[string]string{gateway.SandboxSignatureHeader: sig})
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"status":"success"}`, w.Body.String())
	}

	balance, locked = a.balances(t, account.ID)
	assert.Equal(t, "500.00", balance)
	assert.Equal(t, "0.00", locked)
	settled, ok := a.store.Transaction(tx.ID)
	require.True(t, ok)
	assert.Equal(t, domain.TxStatusSuccess, settled.Status)
}

func TestWebhookAcknowledgesRejectedEvents(t *testing.T) {
	a := setupAPI(t)
	_, token, account := a.seedUser(t, "0")

	w := a.do(t, http.MethodPost, "/v1/accounts/deposit", token, map[string]string{"currency": "NGN", "amount": "5000"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var result service.DepositResult
	decodeData(t, w, &result)

	payload, _, err := a.sandbox.SignedEvent("charge.success", result.TransactionID, "PSK-1")
	require.NoError(t, err)

	w = a.do(t, http.MethodPost, "/v1/webhooks/sandbox", "", payload, map[string]string{gateway.SandboxSignatureHeader: "forged"})
	assert.Equal(t, http.StatusOK, w.Code)
	w = a.do(t, http.MethodPost, "/v1/webhooks/unknown", "", payload, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	balance, _ := a.balances(t, account.ID)
	assert.Equal(t, "0.00", balance)
	tx, ok := a.store.Transaction(result.TransactionID)
	require.True(t, ok)
	assert.Equal(t, domain.TxStatusPending, tx.Status)
}

func TestListTransactions(t *testing.T) {
	a := setupAPI(t)
	_, token, _ := a.seedUser(t, "1000")
	receiver, receiverToken, _ := a.seedUser(t, "0")

	w := a.do(t, http.MethodPost, "/v1/accounts/transfer", token,
		map[string]string{"currency": "NGN", "amount": "10", "receiverId": receiver.UserID},
		map[string]string{"Idempotency-Key": "list-1"})
	require.Equal(t, http.StatusOK, w.Code)

	w = a.do(t, http.MethodGet, "/v1/accounts/transactions?currency=NGN", receiverToken, nil, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var items []models.Transaction
	decodeData(t, w, &items)
	require.Len(t, items, 1)

	w = a.do(t, http.MethodGet, "/v1/accounts/transactions?transactionId=bad", receiverToken, nil, nil)
	requireProblem(t, w, http.StatusBadRequest)

	for _, query := range []string{"limit=ten", "limit=500", "offset=-1", "offset=3000000000"} {
		w = a.do(t, http.MethodGet, "/v1/accounts/transactions?"+query, receiverToken, nil, nil)
		requireProblem(t, w, http.StatusBadRequest)
	}
}

func TestPrincipalRateLimit(t *testing.T) {
	a := setupAPI(t, func(c *config.Config) { c.RateLimitRPS = 1 })
	_, token, _ := a.seedUser(t, "0")

	body := map[string]string{"currency": "NGN", "amount": "5000"}
	w := a.do(t, http.MethodPost, "/v1/accounts/deposit", token, body, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = a.do(t, http.MethodPost, "/v1/accounts/deposit", token, body, nil)
	problemBody := requireProblem(t, w, http.StatusTooManyRequests)
	assert.Equal(t, problem.Type("rate-limit-exceeded"), problemBody["type"])
	assert.Equal(t, "Too Many Requests", problemBody["title"])
}

func TestHealthEndpoints(t *testing.T) {
	a := setupAPI(t)
	w := a.do(t, http.MethodGet, "/health/live", "", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = a.do(t, http.MethodGet, "/health/ready", "", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	h := handler.NewHealthHandler(map[string]handler.Pinger{"redis": failingPinger{}})
	rec := httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	requireProblem(t, rec, http.StatusServiceUnavailable)
}

func TestOpenAPIDocumentServed(t *testing.T) {
	a := setupAPI(t)
	w := a.do(t, http.MethodGet, "/openapi.yaml", "", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/v1/accounts/transfer")
}

func TestInvalidTokenRejected(t *testing.T) {
	a := setupAPI(t)
	w := a.do(t, http.MethodGet, "/v1/accounts", "not-a-jwt", nil, nil)
	requireProblem(t, w, http.StatusUnauthorized)
}
