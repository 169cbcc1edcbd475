package wallet

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"walletd/internal/cache"
)

var tracer = otel.Tracer("walletd.ledger")

// Cache TTLs. Reads self-heal within this window if an invalidation is lost
// between commit and cache deletion.
const (
	snapshotTTL = 60 * time.Second
	listingTTL  = 60 * time.Second
	ownerTTL    = 30 * time.Second
)

const (
	maxNameLen        = 100
	maxDescriptionLen = 200
)

// Service validates and normalizes ledger inputs and orchestrates atomic
// mutations against the Repository. Reads go through the cache-aside store;
// every successful mutation synchronously invalidates the affected keys
// before the result is returned.
type Service struct {
	repo  Repository
	store cache.Store
}

// NewService creates a wallet service. store may be nil, in which case all
// reads go straight to the repository.
func NewService(repo Repository, store cache.Store) *Service {
	return &Service{repo: repo, store: store}
}

// CreateWallet creates a wallet and its synthetic opening CREDIT deposit in
// one atomic unit. rawBalance must be a non-negative amount with at most
// four fractional digits.
func (s *Service) CreateWallet(ctx context.Context, name, rawBalance string, userID int64) (*Wallet, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxNameLen {
		return nil, NewValidationError(CodeInvalidName,
			fmt.Sprintf("name must be between 1 and %d characters", maxNameLen),
			FieldError{Field: "name", Message: fmt.Sprintf("name must be between 1 and %d characters", maxNameLen)},
		)
	}

	balance, err := ParseBalance(rawBalance)
	if err != nil {
		return nil, err
	}

	w, err := s.repo.CreateWithOpeningDeposit(ctx, CreateParams{
		ID:             uuid.NewString(),
		UserID:         userID,
		Name:           name,
		InitialBalance: balance,
	})
	if err != nil {
		return nil, err
	}

	// Prime the snapshot and drop the owner's stale wallet list.
	cache.Put(ctx, s.store, snapshotKey(w.ID), w, snapshotTTL)
	cache.Invalidate(ctx, s.store, nil, ownerKey(userID))

	return w, nil
}

// GetWallet returns one wallet snapshot, cache-accelerated. An owner
// mismatch reports NotFound, same as a missing wallet.
func (s *Service) GetWallet(ctx context.Context, walletID string, userID int64) (*Wallet, error) {
	w, err := cache.GetOrLoad(ctx, s.store, snapshotKey(walletID), snapshotTTL,
		func(ctx context.Context) (*Wallet, error) {
			return s.repo.GetByID(ctx, walletID)
		})
	if err != nil {
		return nil, err
	}
	if w == nil || w.UserID != userID {
		return nil, NewNotFoundError(walletID)
	}
	return w, nil
}

// ListWallets returns all wallets owned by a user, newest first.
func (s *Service) ListWallets(ctx context.Context, userID int64) ([]*Wallet, error) {
	return cache.GetOrLoad(ctx, s.store, ownerKey(userID), ownerTTL,
		func(ctx context.Context) ([]*Wallet, error) {
			return s.repo.ListByUserID(ctx, userID)
		})
}

// ProcessTransaction validates and normalizes rawAmount, derives the
// transaction type from its sign, and applies one atomic ledger mutation.
// NotFound and InsufficientBalance from the store propagate unchanged; there
// is no automatic retry — callers retry under an idempotency key.
func (s *Service) ProcessTransaction(ctx context.Context, walletID, rawAmount, description string, userID int64) (*TransactionResult, error) {
	ctx, span := tracer.Start(ctx, "ledger.ProcessTransaction",
		trace.WithAttributes(
			attribute.String("wallet.id", walletID),
			attribute.Int64("user.id", userID),
		))
	defer span.End()
	start := time.Now()

	amount, err := ParseAmount(rawAmount)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	description = strings.TrimSpace(description)
	if description == "" || len(description) > maxDescriptionLen {
		err := NewValidationError(CodeInvalidDescription,
			fmt.Sprintf("description must be between 1 and %d characters", maxDescriptionLen),
			FieldError{Field: "description", Message: fmt.Sprintf("description must be between 1 and %d characters", maxDescriptionLen)},
		)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	txType := TypeOf(amount)
	span.SetAttributes(
		attribute.String("transaction.amount", amount.String()),
		attribute.String("transaction.type", string(txType)),
	)

	result, err := s.repo.ApplyMutation(ctx, walletID, userID, amount, description)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Printf("transaction failed: wallet=%s type=%s amount=%s duration=%s err=%v",
			walletID, txType, amount, time.Since(start), err)
		return nil, err
	}

	// Synchronous invalidation, after commit, before the response leaves the
	// processor. A crash here leaves a stale entry that expires with its TTL.
	cache.Invalidate(ctx, s.store, []string{snapshotKey(walletID)}, ownerKey(userID))

	span.SetAttributes(attribute.String("transaction.id", result.TransactionID))
	log.Printf("transaction completed: wallet=%s tx=%s type=%s amount=%s balance=%s duration=%s",
		walletID, result.TransactionID, txType, amount, result.Balance, time.Since(start))

	return result, nil
}

// ListTransactions returns one page of a wallet's ledger, cache-accelerated.
// Ownership is checked through the (cached) snapshot first.
func (s *Service) ListTransactions(ctx context.Context, walletID string, userID int64, params ListParams) (*TransactionPage, error) {
	if _, err := s.GetWallet(ctx, walletID, userID); err != nil {
		return nil, err
	}

	params = params.Normalize()
	return cache.GetOrLoad(ctx, s.store, listingKey(walletID, params), listingTTL,
		func(ctx context.Context) (*TransactionPage, error) {
			return s.repo.ListTransactions(ctx, walletID, params)
		})
}

// snapshotKey doubles as the invalidation prefix for everything derived from
// one wallet: the snapshot itself and all listing-page variants under it.
func snapshotKey(walletID string) string {
	return "cache:wallet:" + walletID
}

func listingKey(walletID string, p ListParams) string {
	return fmt.Sprintf("cache:wallet:%s:txns:%d:%d:%s:%s",
		walletID, p.Offset, p.Limit, p.SortField, p.SortDirection)
}

func ownerKey(userID int64) string {
	return fmt.Sprintf("cache:user:%d:wallets", userID)
}
