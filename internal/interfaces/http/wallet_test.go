package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"walletd/internal/domain/wallet"
	"walletd/internal/idempotency"
	"walletd/internal/infrastructure/memory"
	"walletd/internal/shared/middleware"
)

func newTestHandler() *WalletHandler {
	service := wallet.NewService(memory.NewWalletRepository(), nil)
	return NewWalletHandler(service, idempotency.NewGuard(nil))
}

func authed(req *http.Request, userID int64) *http.Request {
	ctx := context.WithValue(req.Context(), middleware.UserIDKey, userID)
	return req.WithContext(ctx)
}

func createWallet(t *testing.T, handler *WalletHandler, userID int64, name, balance string) string {
	t.Helper()
	body := []byte(`{"name":"` + name + `","balance":` + balance + `}`)
	req := authed(httptest.NewRequest(http.MethodPost, "/api/wallets", bytes.NewReader(body)), userID)
	rr := httptest.NewRecorder()
	handler.HandleWallets(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create wallet status = %d, body = %s", rr.Code, rr.Body)
	}
	var created wallet.Wallet
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatalf("decoding created wallet: %v", err)
	}
	return created.ID
}

func TestHandleCreateWallet(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		expectedStatus int
		expectedCode   string
	}{
		{
			name:           "Success",
			body:           `{"name":"Savings","balance":100.50}`,
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "Zero Balance",
			body:           `{"name":"Empty","balance":0}`,
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "Negative Balance",
			body:           `{"name":"Savings","balance":-5}`,
			expectedStatus: http.StatusBadRequest,
			expectedCode:   wallet.CodeInvalidAmount,
		},
		{
			name:           "Excess Precision",
			body:           `{"name":"Savings","balance":1.00001}`,
			expectedStatus: http.StatusBadRequest,
			expectedCode:   wallet.CodeInvalidAmount,
		},
		{
			name:           "Missing Name",
			body:           `{"balance":100}`,
			expectedStatus: http.StatusBadRequest,
			expectedCode:   wallet.CodeInvalidName,
		},
		{
			name:           "Invalid JSON",
			body:           `{`,
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := newTestHandler()
			req := authed(httptest.NewRequest(http.MethodPost, "/api/wallets", bytes.NewReader([]byte(tt.body))), 1)
			rr := httptest.NewRecorder()
			handler.HandleWallets(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Errorf("status = %d, want %d (body %s)", rr.Code, tt.expectedStatus, rr.Body)
			}
			if tt.expectedCode != "" {
				var resp errorBody
				if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
					t.Fatalf("decoding error body: %v", err)
				}
				if resp.Error.Code != tt.expectedCode {
					t.Errorf("error code = %q, want %q", resp.Error.Code, tt.expectedCode)
				}
			}
		})
	}
}

func TestHandleCreateWalletDuplicate(t *testing.T) {
	handler := newTestHandler()
	createWallet(t, handler, 1, "Savings", "100")

	req := authed(httptest.NewRequest(http.MethodPost, "/api/wallets",
		bytes.NewReader([]byte(`{"name":"Savings","balance":0}`))), 1)
	rr := httptest.NewRecorder()
	handler.HandleWallets(rr, req)

	if rr.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rr.Code)
	}
}

func TestHandleCreateWalletUnauthenticated(t *testing.T) {
	handler := newTestHandler()
	req := httptest.NewRequest(http.MethodPost, "/api/wallets",
		bytes.NewReader([]byte(`{"name":"Savings","balance":0}`)))
	rr := httptest.NewRecorder()
	handler.HandleWallets(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rr.Code)
	}
}

func TestHandleWalletByID(t *testing.T) {
	handler := newTestHandler()
	walletID := createWallet(t, handler, 1, "Savings", "100")

	tests := []struct {
		name           string
		walletID       string
		userID         int64
		expectedStatus int
	}{
		{name: "Success", walletID: walletID, userID: 1, expectedStatus: http.StatusOK},
		{name: "Unknown Wallet", walletID: "nope", userID: 1, expectedStatus: http.StatusNotFound},
		{name: "Owner Mismatch", walletID: walletID, userID: 2, expectedStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := authed(httptest.NewRequest(http.MethodGet, "/api/wallets/"+tt.walletID, nil), tt.userID)
			req.SetPathValue("id", tt.walletID)
			rr := httptest.NewRecorder()
			handler.HandleWalletByID(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.expectedStatus)
			}
		})
	}
}

func TestHandleTransact(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		expectedStatus int
	}{
		{
			name:           "Credit",
			body:           `{"amount":25.50,"description":"Deposit"}`,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Debit",
			body:           `{"amount":-50,"description":"Withdrawal"}`,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Overdraw",
			body:           `{"amount":-500,"description":"Withdrawal"}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Zero Amount",
			body:           `{"amount":0,"description":"Nothing"}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Excess Precision",
			body:           `{"amount":10.00005,"description":"Deposit"}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Missing Description",
			body:           `{"amount":10}`,
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := newTestHandler()
			walletID := createWallet(t, handler, 1, "Savings", "100")

			req := authed(httptest.NewRequest(http.MethodPost, "/api/wallets/"+walletID+"/transact",
				bytes.NewReader([]byte(tt.body))), 1)
			req.SetPathValue("id", walletID)
			req.Header.Set("Idempotency-Key", "key-1")
			rr := httptest.NewRecorder()
			handler.HandleTransact(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Errorf("status = %d, want %d (body %s)", rr.Code, tt.expectedStatus, rr.Body)
			}
		})
	}
}

func TestHandleTransactMissingIdempotencyKey(t *testing.T) {
	handler := newTestHandler()
	walletID := createWallet(t, handler, 1, "Savings", "100")

	req := authed(httptest.NewRequest(http.MethodPost, "/api/wallets/"+walletID+"/transact",
		bytes.NewReader([]byte(`{"amount":10,"description":"Deposit"}`))), 1)
	req.SetPathValue("id", walletID)
	rr := httptest.NewRecorder()
	handler.HandleTransact(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}

	var resp errorBody
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	if resp.Error.Code != wallet.CodeMissingIdempotency {
		t.Errorf("error code = %q, want %q", resp.Error.Code, wallet.CodeMissingIdempotency)
	}
}

func TestHandleTransactPreservesPrecision(t *testing.T) {
	handler := newTestHandler()
	walletID := createWallet(t, handler, 1, "Savings", "0")

	// A float64 decode of 10.0001 would survive, but 10.00005 must be caught
	// exactly as sent.
	req := authed(httptest.NewRequest(http.MethodPost, "/api/wallets/"+walletID+"/transact",
		bytes.NewReader([]byte(`{"amount":10.0001,"description":"Deposit"}`))), 1)
	req.SetPathValue("id", walletID)
	req.Header.Set("Idempotency-Key", "key-1")
	rr := httptest.NewRecorder()
	handler.HandleTransact(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body)
	}

	var result wallet.TransactionResult
	if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	if result.Balance.String() != "10.0001" {
		t.Errorf("balance = %s, want 10.0001", result.Balance)
	}
	if result.Type != wallet.TypeCredit {
		t.Errorf("type = %s, want CREDIT", result.Type)
	}
}

type replayStore map[string]string

func (s replayStore) Get(_ context.Context, key string) (string, error) {
	v, ok := s[key]
	if !ok {
		return "", idempotency.ErrMiss
	}
	return v, nil
}

func (s replayStore) Set(_ context.Context, key, value string, _ time.Duration) error {
	s[key] = value
	return nil
}

func TestHandleTransactReplay(t *testing.T) {
	service := wallet.NewService(memory.NewWalletRepository(), nil)
	handler := NewWalletHandler(service, idempotency.NewGuard(replayStore{}))
	walletID := createWallet(t, handler, 1, "Savings", "100")

	send := func() *httptest.ResponseRecorder {
		req := authed(httptest.NewRequest(http.MethodPost, "/api/wallets/"+walletID+"/transact",
			bytes.NewReader([]byte(`{"amount":-30,"description":"Withdrawal"}`))), 1)
		req.SetPathValue("id", walletID)
		req.Header.Set("Idempotency-Key", "retry-key")
		rr := httptest.NewRecorder()
		handler.HandleTransact(rr, req)
		return rr
	}

	first := send()
	if first.Code != http.StatusOK {
		t.Fatalf("first status = %d, body = %s", first.Code, first.Body)
	}
	second := send()
	if second.Code != http.StatusOK {
		t.Fatalf("second status = %d, body = %s", second.Code, second.Body)
	}
	if first.Body.String() != second.Body.String() {
		t.Errorf("replayed body differs:\n%s\n%s", first.Body, second.Body)
	}

	// The debit must have happened exactly once.
	snapshot, err := service.GetWallet(context.Background(), walletID, 1)
	if err != nil {
		t.Fatalf("GetWallet failed: %v", err)
	}
	if snapshot.Balance.String() != "70" {
		t.Errorf("balance = %s, want 70 (one committed debit)", snapshot.Balance)
	}
}

func TestHandleListTransactions(t *testing.T) {
	handler := newTestHandler()
	walletID := createWallet(t, handler, 1, "Savings", "100")

	for _, body := range []string{
		`{"amount":10,"description":"First"}`,
		`{"amount":-5,"description":"Second"}`,
	} {
		req := authed(httptest.NewRequest(http.MethodPost, "/api/wallets/"+walletID+"/transact",
			bytes.NewReader([]byte(body))), 1)
		req.SetPathValue("id", walletID)
		req.Header.Set("Idempotency-Key", body)
		rr := httptest.NewRecorder()
		handler.HandleTransact(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("seeding transaction failed: %d %s", rr.Code, rr.Body)
		}
	}

	req := authed(httptest.NewRequest(http.MethodGet,
		"/api/wallets/"+walletID+"/transactions?limit=2&sortBy=date&sortOrder=desc", nil), 1)
	req.SetPathValue("id", walletID)
	rr := httptest.NewRecorder()
	handler.HandleListTransactions(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body)
	}

	var page wallet.TransactionPage
	if err := json.Unmarshal(rr.Body.Bytes(), &page); err != nil {
		t.Fatalf("decoding page: %v", err)
	}
	if page.Total != 3 {
		t.Errorf("total = %d, want 3 (opening deposit + 2)", page.Total)
	}
	if len(page.Transactions) != 2 {
		t.Errorf("page size = %d, want 2", len(page.Transactions))
	}
}

func TestHandleListTransactionsOwnerMismatch(t *testing.T) {
	handler := newTestHandler()
	walletID := createWallet(t, handler, 1, "Savings", "100")

	req := authed(httptest.NewRequest(http.MethodGet, "/api/wallets/"+walletID+"/transactions", nil), 2)
	req.SetPathValue("id", walletID)
	rr := httptest.NewRecorder()
	handler.HandleListTransactions(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 (ownership must not leak)", rr.Code)
	}
}

func TestHandleListWallets(t *testing.T) {
	handler := newTestHandler()
	createWallet(t, handler, 1, "A", "10")
	createWallet(t, handler, 1, "B", "20")
	createWallet(t, handler, 2, "C", "30")

	req := authed(httptest.NewRequest(http.MethodGet, "/api/wallets", nil), 1)
	rr := httptest.NewRecorder()
	handler.HandleWallets(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body)
	}

	var resp struct {
		Data []*wallet.Wallet `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding list: %v", err)
	}
	if len(resp.Data) != 2 {
		t.Errorf("wallet count = %d, want 2", len(resp.Data))
	}
}
