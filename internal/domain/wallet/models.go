package wallet

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType is derived from the sign of the amount and never set
// independently: positive amounts are CREDIT, negative amounts are DEBIT.
type TransactionType string

const (
	TypeCredit TransactionType = "CREDIT"
	TypeDebit  TransactionType = "DEBIT"
)

// TypeOf derives the transaction type from a signed amount.
func TypeOf(amount decimal.Decimal) TransactionType {
	if amount.Sign() > 0 {
		return TypeCredit
	}
	return TypeDebit
}

// Wallet is a holder of funds. Balance is fixed-point with 4 fractional
// digits and is never negative.
type Wallet struct {
	ID        string          `json:"id"`
	UserID    int64           `json:"userId"`
	Name      string          `json:"name"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Transaction is an immutable ledger entry. Balance is the wallet balance
// immediately after this entry was applied.
type Transaction struct {
	ID          string          `json:"id"`
	WalletID    string          `json:"walletId"`
	Amount      decimal.Decimal `json:"amount"`
	Balance     decimal.Decimal `json:"balance"`
	Type        TransactionType `json:"type"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"date"`
}

// CreateParams contains parameters for creating a wallet with its opening
// deposit.
type CreateParams struct {
	ID             string
	UserID         int64
	Name           string
	InitialBalance decimal.Decimal
}

// TransactionResult is returned by a successful ledger mutation.
type TransactionResult struct {
	Balance       decimal.Decimal `json:"balance"`
	TransactionID string          `json:"transactionId"`
	Type          TransactionType `json:"type"`
	Timestamp     time.Time       `json:"timestamp"`
}

// Sort fields accepted by transaction listings.
const (
	SortByDate   = "date"
	SortByAmount = "amount"

	SortAsc  = "asc"
	SortDesc = "desc"
)

// ListParams selects one page of a wallet's transaction log.
type ListParams struct {
	Offset        int
	Limit         int
	SortField     string
	SortDirection string
}

// Normalize applies listing defaults and clamps the page size.
func (p ListParams) Normalize() ListParams {
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.Limit <= 0 {
		p.Limit = 10
	}
	if p.Limit > 100 {
		p.Limit = 100
	}
	if p.SortField != SortByAmount {
		p.SortField = SortByDate
	}
	if p.SortDirection != SortAsc {
		p.SortDirection = SortDesc
	}
	return p
}

// TransactionPage is one page of a wallet's transaction log plus the total
// row count.
type TransactionPage struct {
	Transactions []*Transaction `json:"transactions"`
	Total        int64          `json:"total"`
}
