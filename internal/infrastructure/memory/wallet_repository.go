// Package memory provides an in-memory wallet.Repository with the same
// atomicity and locking semantics as the PostgreSQL implementation. It backs
// the concurrency property tests and local development without a database.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"walletd/internal/domain/wallet"
)

// WalletRepository keeps the ledger in process memory. A per-wallet mutex
// stands in for the row lock: mutations on one wallet are totally ordered,
// mutations on different wallets proceed independently.
type WalletRepository struct {
	mu      sync.RWMutex
	wallets map[string]*walletState
	byOwner map[int64][]string
}

type walletState struct {
	mu           sync.Mutex // serializes the read-modify-write cycle
	snapshot     wallet.Wallet
	transactions []*wallet.Transaction
}

func NewWalletRepository() *WalletRepository {
	return &WalletRepository{
		wallets: make(map[string]*walletState),
		byOwner: make(map[int64][]string),
	}
}

func (r *WalletRepository) CreateWithOpeningDeposit(_ context.Context, params wallet.CreateParams) (*wallet.Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range r.byOwner[params.UserID] {
		if r.wallets[id].snapshot.Name == params.Name {
			return nil, wallet.NewConflictError(fmt.Sprintf("wallet with name %q already exists", params.Name))
		}
	}

	now := time.Now().UTC()
	state := &walletState{
		snapshot: wallet.Wallet{
			ID:        params.ID,
			UserID:    params.UserID,
			Name:      params.Name,
			Balance:   params.InitialBalance,
			CreatedAt: now,
			UpdatedAt: now,
		},
		transactions: []*wallet.Transaction{{
			ID:          uuid.NewString(),
			WalletID:    params.ID,
			Amount:      params.InitialBalance,
			Balance:     params.InitialBalance,
			Type:        wallet.TypeCredit,
			Description: "Initial deposit",
			CreatedAt:   now,
		}},
	}

	r.wallets[params.ID] = state
	r.byOwner[params.UserID] = append(r.byOwner[params.UserID], params.ID)

	snapshot := state.snapshot
	return &snapshot, nil
}

func (r *WalletRepository) ApplyMutation(_ context.Context, walletID string, userID int64, amount decimal.Decimal, description string) (*wallet.TransactionResult, error) {
	r.mu.RLock()
	state, ok := r.wallets[walletID]
	r.mu.RUnlock()

	if !ok || state.snapshot.UserID != userID {
		return nil, wallet.NewNotFoundError(walletID)
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	newBalance := state.snapshot.Balance.Add(amount)
	if newBalance.IsNegative() {
		return nil, wallet.NewInsufficientBalanceError(state.snapshot.Balance.String(), amount.Abs().String())
	}

	now := time.Now().UTC()
	tx := &wallet.Transaction{
		ID:          uuid.NewString(),
		WalletID:    walletID,
		Amount:      amount,
		Balance:     newBalance,
		Type:        wallet.TypeOf(amount),
		Description: description,
		CreatedAt:   now,
	}

	state.snapshot.Balance = newBalance
	state.snapshot.UpdatedAt = now
	state.transactions = append(state.transactions, tx)

	return &wallet.TransactionResult{
		Balance:       newBalance,
		TransactionID: tx.ID,
		Type:          tx.Type,
		Timestamp:     now,
	}, nil
}

func (r *WalletRepository) GetByID(_ context.Context, id string) (*wallet.Wallet, error) {
	r.mu.RLock()
	state, ok := r.wallets[id]
	r.mu.RUnlock()

	if !ok {
		return nil, wallet.NewNotFoundError(id)
	}

	state.mu.Lock()
	snapshot := state.snapshot
	state.mu.Unlock()
	return &snapshot, nil
}

func (r *WalletRepository) ListByUserID(_ context.Context, userID int64) ([]*wallet.Wallet, error) {
	r.mu.RLock()
	ids := append([]string(nil), r.byOwner[userID]...)
	states := make([]*walletState, 0, len(ids))
	for _, id := range ids {
		states = append(states, r.wallets[id])
	}
	r.mu.RUnlock()

	wallets := make([]*wallet.Wallet, 0, len(states))
	for _, state := range states {
		state.mu.Lock()
		snapshot := state.snapshot
		state.mu.Unlock()
		wallets = append(wallets, &snapshot)
	}

	sort.Slice(wallets, func(i, j int) bool {
		return wallets[i].CreatedAt.After(wallets[j].CreatedAt)
	})
	return wallets, nil
}

func (r *WalletRepository) ListTransactions(_ context.Context, walletID string, params wallet.ListParams) (*wallet.TransactionPage, error) {
	r.mu.RLock()
	state, ok := r.wallets[walletID]
	r.mu.RUnlock()

	if !ok {
		return nil, wallet.NewNotFoundError(walletID)
	}

	params = params.Normalize()

	state.mu.Lock()
	all := append([]*wallet.Transaction(nil), state.transactions...)
	state.mu.Unlock()

	sort.SliceStable(all, func(i, j int) bool {
		var less bool
		if params.SortField == wallet.SortByAmount {
			cmp := all[i].Amount.Cmp(all[j].Amount)
			if cmp == 0 {
				less = all[i].ID < all[j].ID
			} else {
				less = cmp < 0
			}
		} else {
			if all[i].CreatedAt.Equal(all[j].CreatedAt) {
				less = all[i].ID < all[j].ID
			} else {
				less = all[i].CreatedAt.Before(all[j].CreatedAt)
			}
		}
		if params.SortDirection == wallet.SortDesc {
			return !less
		}
		return less
	})

	total := int64(len(all))
	start := params.Offset
	if start > len(all) {
		start = len(all)
	}
	end := start + params.Limit
	if end > len(all) {
		end = len(all)
	}

	return &wallet.TransactionPage{Transactions: all[start:end], Total: total}, nil
}
