package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"walletd/internal/domain/wallet"
	"walletd/internal/idempotency"
	"walletd/internal/shared/middleware"
)

// WalletHandler exposes the ledger engine over HTTP. It is thin glue: all
// validation and invariants live in the wallet service.
type WalletHandler struct {
	service *wallet.Service
	guard   *idempotency.Guard
}

func NewWalletHandler(service *wallet.Service, guard *idempotency.Guard) *WalletHandler {
	return &WalletHandler{service: service, guard: guard}
}

// Amounts cross the wire as json.Number so precision checks see the
// caller's literal digits, not a float64 approximation.
type CreateWalletRequest struct {
	Name    string      `json:"name"`
	Balance json.Number `json:"balance"`
}

type TransactRequest struct {
	Amount      json.Number `json:"amount"`
	Description string      `json:"description"`
}

// HandleWallets serves POST (create) and GET (list) on /api/wallets.
func (h *WalletHandler) HandleWallets(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	switch r.Method {
	case http.MethodPost:
		h.handleCreateWallet(w, r, userID)
	case http.MethodGet:
		h.handleListWallets(w, r, userID)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *WalletHandler) handleCreateWallet(w http.ResponseWriter, r *http.Request, userID int64) {
	var req CreateWalletRequest
	if err := decodeBody(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}

	created, err := h.service.CreateWallet(r.Context(), req.Name, req.Balance.String(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

func (h *WalletHandler) handleListWallets(w http.ResponseWriter, r *http.Request, userID int64) {
	wallets, err := h.service.ListWallets(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": wallets})
}

// HandleWalletByID serves GET /api/wallets/{id}.
func (h *WalletHandler) HandleWalletByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	walletID := r.PathValue("id")
	if walletID == "" {
		http.Error(w, "Wallet ID is required", http.StatusBadRequest)
		return
	}

	snapshot, err := h.service.GetWallet(r.Context(), walletID, userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, snapshot)
}

// HandleTransact serves POST /api/wallets/{id}/transact. The mutation is
// idempotency-guarded: repeated calls with the same Idempotency-Key replay
// the recorded response without touching the ledger again.
func (h *WalletHandler) HandleTransact(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	walletID := r.PathValue("id")
	if walletID == "" {
		http.Error(w, "Wallet ID is required", http.StatusBadRequest)
		return
	}

	var req TransactRequest
	if err := decodeBody(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}

	key := r.Header.Get("Idempotency-Key")
	result, err := h.guard.Do(r.Context(), userID, key, func(ctx context.Context) (any, error) {
		return h.service.ProcessTransaction(ctx, walletID, req.Amount.String(), req.Description, userID)
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeRawJSON(w, http.StatusOK, result.Body)
}

// HandleListTransactions serves GET /api/wallets/{id}/transactions.
func (h *WalletHandler) HandleListTransactions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	walletID := r.PathValue("id")
	if walletID == "" {
		http.Error(w, "Wallet ID is required", http.StatusBadRequest)
		return
	}

	params := wallet.ListParams{
		Offset:        queryInt(r, "offset", 0),
		Limit:         queryInt(r, "limit", 10),
		SortField:     r.URL.Query().Get("sortBy"),
		SortDirection: r.URL.Query().Get("sortOrder"),
	}

	page, err := h.service.ListTransactions(r.Context(), walletID, userID, params)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, page)
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return wallet.NewValidationError("INVALID_BODY", "invalid JSON request body")
	}
	return nil
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
