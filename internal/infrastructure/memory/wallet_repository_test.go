package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"walletd/internal/domain/wallet"
)

func mustCreate(t *testing.T, repo *WalletRepository, userID int64, name, balance string) *wallet.Wallet {
	t.Helper()
	w, err := repo.CreateWithOpeningDeposit(context.Background(), wallet.CreateParams{
		ID:             uuid.NewString(),
		UserID:         userID,
		Name:           name,
		InitialBalance: decimal.RequireFromString(balance),
	})
	if err != nil {
		t.Fatalf("CreateWithOpeningDeposit failed: %v", err)
	}
	return w
}

func TestCreateWithOpeningDeposit(t *testing.T) {
	repo := NewWalletRepository()
	w := mustCreate(t, repo, 1, "Savings", "100")

	page, err := repo.ListTransactions(context.Background(), w.ID, wallet.ListParams{})
	if err != nil {
		t.Fatalf("ListTransactions failed: %v", err)
	}
	if page.Total != 1 {
		t.Fatalf("transaction count = %d, want 1 (opening deposit)", page.Total)
	}
	opening := page.Transactions[0]
	if opening.Type != wallet.TypeCredit {
		t.Errorf("opening deposit type = %s, want CREDIT", opening.Type)
	}
	if !opening.Amount.Equal(decimal.RequireFromString("100")) {
		t.Errorf("opening deposit amount = %s, want 100", opening.Amount)
	}
	if opening.Description != "Initial deposit" {
		t.Errorf("opening deposit description = %q", opening.Description)
	}
}

func TestCreateDuplicateName(t *testing.T) {
	repo := NewWalletRepository()
	mustCreate(t, repo, 1, "Savings", "100")

	_, err := repo.CreateWithOpeningDeposit(context.Background(), wallet.CreateParams{
		ID:             uuid.NewString(),
		UserID:         1,
		Name:           "Savings",
		InitialBalance: decimal.Zero,
	})
	if !wallet.IsKind(err, wallet.KindConflict) {
		t.Errorf("duplicate name error = %v, want CONFLICT", err)
	}

	// Same name under a different owner is fine.
	if _, err := repo.CreateWithOpeningDeposit(context.Background(), wallet.CreateParams{
		ID:             uuid.NewString(),
		UserID:         2,
		Name:           "Savings",
		InitialBalance: decimal.Zero,
	}); err != nil {
		t.Errorf("same name under different owner failed: %v", err)
	}
}

func TestApplyMutation(t *testing.T) {
	repo := NewWalletRepository()
	w := mustCreate(t, repo, 1, "Savings", "100")

	tests := []struct {
		name     string
		walletID string
		userID   int64
		amount   string
		wantErr  bool
		wantKind wallet.Kind
		wantBal  string
	}{
		{name: "Credit", walletID: w.ID, userID: 1, amount: "50.25", wantBal: "150.25"},
		{name: "Debit", walletID: w.ID, userID: 1, amount: "-150.25", wantBal: "0"},
		{name: "Overdraw", walletID: w.ID, userID: 1, amount: "-0.0001", wantErr: true, wantKind: wallet.KindInsufficientBalance},
		{name: "Unknown Wallet", walletID: "nope", userID: 1, amount: "10", wantErr: true, wantKind: wallet.KindNotFound},
		{name: "Owner Mismatch", walletID: w.ID, userID: 2, amount: "10", wantErr: true, wantKind: wallet.KindNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := repo.ApplyMutation(context.Background(), tt.walletID, tt.userID,
				decimal.RequireFromString(tt.amount), "test entry")
			if tt.wantErr {
				if !wallet.IsKind(err, tt.wantKind) {
					t.Errorf("error = %v, want kind %s", err, tt.wantKind)
				}
				return
			}
			if err != nil {
				t.Fatalf("ApplyMutation failed: %v", err)
			}
			if !result.Balance.Equal(decimal.RequireFromString(tt.wantBal)) {
				t.Errorf("balance = %s, want %s", result.Balance, tt.wantBal)
			}
		})
	}
}

// Concurrent debits against one wallet: some subset must commit, the balance
// must never go negative, and the final balance must equal the opening
// balance minus exactly the committed debits.
func TestConcurrentDebits(t *testing.T) {
	repo := NewWalletRepository()
	w := mustCreate(t, repo, 1, "Contended", "100")

	const workers = 50
	debit := decimal.RequireFromString("-7")

	var wg sync.WaitGroup
	var mu sync.Mutex
	committed := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.ApplyMutation(context.Background(), w.ID, 1, debit, "concurrent debit")
			if err == nil {
				mu.Lock()
				committed++
				mu.Unlock()
				return
			}
			if !wallet.IsKind(err, wallet.KindInsufficientBalance) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	// 100 / 7 = 14 full debits fit.
	if committed != 14 {
		t.Errorf("committed debits = %d, want 14", committed)
	}

	final, err := repo.GetByID(context.Background(), w.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	want := decimal.RequireFromString("100").Sub(decimal.RequireFromString("7").Mul(decimal.NewFromInt(int64(committed))))
	if !final.Balance.Equal(want) {
		t.Errorf("final balance = %s, want %s", final.Balance, want)
	}
	if final.Balance.IsNegative() {
		t.Error("balance went negative under concurrency")
	}

	// Ledger replay: opening deposit plus committed debits, and the recorded
	// balances form a gapless running sum — each entry's balance is the
	// previous balance plus its amount, with no entry skipped or repeated.
	page, err := repo.ListTransactions(context.Background(), w.ID, wallet.ListParams{Limit: 100, SortField: wallet.SortByDate, SortDirection: wallet.SortAsc})
	if err != nil {
		t.Fatalf("ListTransactions failed: %v", err)
	}
	if page.Total != int64(committed+1) {
		t.Errorf("ledger entries = %d, want %d", page.Total, committed+1)
	}

	running := decimal.Zero
	for i, tx := range page.Transactions {
		running = running.Add(tx.Amount)
		if !tx.Balance.Equal(running) {
			t.Fatalf("entry %d: balance = %s, want running sum %s (amount %s)",
				i, tx.Balance, running, tx.Amount)
		}
	}
	if !running.Equal(final.Balance) {
		t.Errorf("replayed sum = %s, want final balance %s", running, final.Balance)
	}
}

func TestListTransactionsPagination(t *testing.T) {
	repo := NewWalletRepository()
	w := mustCreate(t, repo, 1, "Paged", "1000")

	for i := 1; i <= 15; i++ {
		amount := decimal.NewFromInt(int64(i))
		if _, err := repo.ApplyMutation(context.Background(), w.ID, 1, amount, fmt.Sprintf("entry %d", i)); err != nil {
			t.Fatalf("ApplyMutation failed: %v", err)
		}
	}

	// Default page: 10 rows, total counts everything including the opening
	// deposit.
	page, err := repo.ListTransactions(context.Background(), w.ID, wallet.ListParams{})
	if err != nil {
		t.Fatalf("ListTransactions failed: %v", err)
	}
	if page.Total != 16 {
		t.Errorf("total = %d, want 16", page.Total)
	}
	if len(page.Transactions) != 10 {
		t.Errorf("page size = %d, want 10", len(page.Transactions))
	}

	// Amount ascending: first row is the smallest credit.
	page, err = repo.ListTransactions(context.Background(), w.ID, wallet.ListParams{
		Limit:         5,
		SortField:     wallet.SortByAmount,
		SortDirection: wallet.SortAsc,
	})
	if err != nil {
		t.Fatalf("ListTransactions failed: %v", err)
	}
	if !page.Transactions[0].Amount.Equal(decimal.NewFromInt(1)) {
		t.Errorf("first amount = %s, want 1", page.Transactions[0].Amount)
	}

	// Offset past the end yields an empty page, not an error.
	page, err = repo.ListTransactions(context.Background(), w.ID, wallet.ListParams{Offset: 100})
	if err != nil {
		t.Fatalf("ListTransactions failed: %v", err)
	}
	if len(page.Transactions) != 0 {
		t.Errorf("page size = %d, want 0", len(page.Transactions))
	}
	if page.Total != 16 {
		t.Errorf("total = %d, want 16", page.Total)
	}
}

func TestListByUserID(t *testing.T) {
	repo := NewWalletRepository()
	mustCreate(t, repo, 1, "A", "10")
	mustCreate(t, repo, 1, "B", "20")
	mustCreate(t, repo, 2, "C", "30")

	wallets, err := repo.ListByUserID(context.Background(), 1)
	if err != nil {
		t.Fatalf("ListByUserID failed: %v", err)
	}
	if len(wallets) != 2 {
		t.Errorf("wallet count = %d, want 2", len(wallets))
	}

	wallets, err = repo.ListByUserID(context.Background(), 3)
	if err != nil {
		t.Fatalf("ListByUserID failed: %v", err)
	}
	if len(wallets) != 0 {
		t.Errorf("wallet count = %d, want 0", len(wallets))
	}
}
