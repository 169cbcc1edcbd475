package wallet

import (
	"context"

	"github.com/shopspring/decimal"
)

// Repository is the durable ledger store. It is defined in the domain layer
// and implemented in the infrastructure layer.
//
// Implementations must provide serializable transaction semantics: the two
// mutating operations run as single atomic units with an exclusive lock on
// the wallet row, so concurrent mutations of one wallet are totally ordered
// and no partial write is ever observable.
type Repository interface {
	// CreateWithOpeningDeposit atomically inserts the wallet and a synthetic
	// CREDIT opening transaction whose amount and resulting balance both
	// equal the initial balance. A duplicate (owner, name) pair yields a
	// Conflict error.
	CreateWithOpeningDeposit(ctx context.Context, params CreateParams) (*Wallet, error)

	// ApplyMutation locks the wallet row scoped by (walletID, userID), adds
	// amount to the current balance, and writes the updated balance together
	// with a new transaction row in the same atomic unit. It fails with
	// NotFound when no matching wallet/owner pair exists and with
	// InsufficientBalance when the new balance would be negative; either
	// failure rolls back everything.
	ApplyMutation(ctx context.Context, walletID string, userID int64, amount decimal.Decimal, description string) (*TransactionResult, error)

	// GetByID retrieves one wallet snapshot. No locking.
	GetByID(ctx context.Context, id string) (*Wallet, error)

	// ListByUserID retrieves all wallets owned by a user, newest first.
	ListByUserID(ctx context.Context, userID int64) ([]*Wallet, error)

	// ListTransactions retrieves one page of a wallet's transaction log plus
	// the total count.
	ListTransactions(ctx context.Context, walletID string, params ListParams) (*TransactionPage, error)
}
