package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"walletd/internal/domain/wallet"
)

// Postgres error codes the ledger cares about.
const (
	pqUniqueViolation      = "23505"
	pqSerializationFailure = "40001"
)

// WalletRepository implements wallet.Repository on PostgreSQL. Both mutating
// operations run inside a SERIALIZABLE transaction; ApplyMutation
// additionally takes a FOR UPDATE lock on the wallet row, which totally
// orders mutations per wallet while leaving other wallets untouched.
type WalletRepository struct {
	db *DB
}

func NewWalletRepository(db *DB) *WalletRepository {
	return &WalletRepository{db: db}
}

func (r *WalletRepository) CreateWithOpeningDeposit(ctx context.Context, params wallet.CreateParams) (*wallet.Wallet, error) {
	tx, err := r.db.BeginSerializable(ctx)
	if err != nil {
		return nil, wallet.NewInfrastructureError("opening ledger transaction", err)
	}
	defer tx.Rollback()

	var w wallet.Wallet
	err = tx.QueryRowContext(ctx, `
		INSERT INTO wallets (id, user_id, name, balance)
		VALUES ($1, $2, $3, $4)
		RETURNING id, user_id, name, balance, created_at, updated_at
	`, params.ID, params.UserID, params.Name, params.InitialBalance).Scan(
		&w.ID, &w.UserID, &w.Name, &w.Balance, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		if isPQCode(err, pqUniqueViolation) {
			return nil, wallet.NewConflictError(fmt.Sprintf("wallet with name %q already exists", params.Name))
		}
		return nil, wallet.NewInfrastructureError("creating wallet", err)
	}

	// Synthetic opening deposit: amount and resulting balance both equal the
	// initial balance.
	_, err = tx.ExecContext(ctx, `
		INSERT INTO transactions (id, wallet_id, amount, balance, type, description)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.NewString(), w.ID, params.InitialBalance, params.InitialBalance, wallet.TypeCredit, "Initial deposit")
	if err != nil {
		return nil, wallet.NewInfrastructureError("creating opening deposit", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, wallet.NewInfrastructureError("committing wallet creation", err)
	}

	return &w, nil
}

func (r *WalletRepository) ApplyMutation(ctx context.Context, walletID string, userID int64, amount decimal.Decimal, description string) (*wallet.TransactionResult, error) {
	tx, err := r.db.BeginSerializable(ctx)
	if err != nil {
		return nil, wallet.NewInfrastructureError("opening ledger transaction", err)
	}
	defer tx.Rollback()

	var balance decimal.Decimal
	err = tx.QueryRowContext(ctx, `
		SELECT balance FROM wallets
		WHERE id = $1 AND user_id = $2
		FOR UPDATE
	`, walletID, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, wallet.NewNotFoundError(walletID)
		}
		return nil, wallet.NewInfrastructureError("locking wallet row", err)
	}

	newBalance := balance.Add(amount)
	if newBalance.IsNegative() {
		return nil, wallet.NewInsufficientBalanceError(balance.String(), amount.Abs().String())
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE wallets SET balance = $1, updated_at = NOW() WHERE id = $2
	`, newBalance, walletID)
	if err != nil {
		return nil, wallet.NewInfrastructureError("updating wallet balance", err)
	}

	result := wallet.TransactionResult{
		Balance: newBalance,
		Type:    wallet.TypeOf(amount),
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO transactions (id, wallet_id, amount, balance, type, description)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, uuid.NewString(), walletID, amount, newBalance, result.Type, description).Scan(
		&result.TransactionID, &result.Timestamp,
	)
	if err != nil {
		return nil, wallet.NewInfrastructureError("writing ledger entry", err)
	}

	if err := tx.Commit(); err != nil {
		if isPQCode(err, pqSerializationFailure) {
			return nil, wallet.NewInfrastructureError("serialization conflict, caller may retry", err)
		}
		return nil, wallet.NewInfrastructureError("committing ledger mutation", err)
	}

	return &result, nil
}

func (r *WalletRepository) GetByID(ctx context.Context, id string) (*wallet.Wallet, error) {
	var w wallet.Wallet
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, balance, created_at, updated_at
		FROM wallets
		WHERE id = $1
	`, id).Scan(&w.ID, &w.UserID, &w.Name, &w.Balance, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, wallet.NewNotFoundError(id)
	}
	if err != nil {
		return nil, wallet.NewInfrastructureError("reading wallet", err)
	}
	return &w, nil
}

func (r *WalletRepository) ListByUserID(ctx context.Context, userID int64) ([]*wallet.Wallet, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, name, balance, created_at, updated_at
		FROM wallets
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, wallet.NewInfrastructureError("listing wallets", err)
	}
	defer rows.Close()

	wallets := make([]*wallet.Wallet, 0)
	for rows.Next() {
		var w wallet.Wallet
		if err := rows.Scan(&w.ID, &w.UserID, &w.Name, &w.Balance, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, wallet.NewInfrastructureError("scanning wallet", err)
		}
		wallets = append(wallets, &w)
	}
	if err := rows.Err(); err != nil {
		return nil, wallet.NewInfrastructureError("iterating wallets", err)
	}
	return wallets, nil
}

func (r *WalletRepository) ListTransactions(ctx context.Context, walletID string, params wallet.ListParams) (*wallet.TransactionPage, error) {
	params = params.Normalize()

	// Sort column and direction come from a closed set; see ListParams.Normalize.
	column := "created_at"
	if params.SortField == wallet.SortByAmount {
		column = "amount"
	}
	direction := "DESC"
	if params.SortDirection == wallet.SortAsc {
		direction = "ASC"
	}

	var total int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM transactions WHERE wallet_id = $1
	`, walletID).Scan(&total)
	if err != nil {
		return nil, wallet.NewInfrastructureError("counting transactions", err)
	}

	// id as tiebreak keeps ordering stable across equal timestamps/amounts.
	query := fmt.Sprintf(`
		SELECT id, wallet_id, amount, balance, type, description, created_at
		FROM transactions
		WHERE wallet_id = $1
		ORDER BY %s %s, id %s
		LIMIT $2 OFFSET $3
	`, column, direction, direction)

	rows, err := r.db.QueryContext(ctx, query, walletID, params.Limit, params.Offset)
	if err != nil {
		return nil, wallet.NewInfrastructureError("listing transactions", err)
	}
	defer rows.Close()

	page := &wallet.TransactionPage{Transactions: make([]*wallet.Transaction, 0), Total: total}
	for rows.Next() {
		var t wallet.Transaction
		if err := rows.Scan(&t.ID, &t.WalletID, &t.Amount, &t.Balance, &t.Type, &t.Description, &t.CreatedAt); err != nil {
			return nil, wallet.NewInfrastructureError("scanning transaction", err)
		}
		page.Transactions = append(page.Transactions, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, wallet.NewInfrastructureError("iterating transactions", err)
	}
	return page, nil
}

func isPQCode(err error, code string) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == code
}
