// Package store defines the persistence contract for account state. The
// concrete SQLite implementation lives in store/gormstore; decision-cycle
// audit records live in store/cyclelog.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"aurum/internal/account"
)

var (
	// ErrNotFound means no account row exists for the auth token.
	ErrNotFound = errors.New("account not found")
	// ErrConflict means the optimistic version check failed: another
	// writer saved the row between our read and our write.
	ErrConflict = errors.New("concurrent update conflict")
)

// RegisterOptions seed a newly created account. They are ignored when the
// auth already exists: re-registration must not reset engine state.
type RegisterOptions struct {
	ExpireTime time.Time
	Window     account.TradingWindow
	Switched   account.Switch
	Creator    string
}

// AccountStore is the gateway the orchestrator loads and saves through.
type AccountStore interface {
	// Get returns the account for auth or ErrNotFound.
	Get(ctx context.Context, auth string) (*account.Account, error)
	// Save persists the account if its stored version still equals
	// expectedVersion, bumping the version; ErrConflict otherwise.
	Save(ctx context.Context, a *account.Account, expectedVersion int64) error
	// RegisterOrSync creates the account if absent (flat position, empty
	// trade history); if present it updates only totalCost, totalShares
	// and the update timestamp.
	RegisterOrSync(ctx context.Context, auth string, totalCost decimal.Decimal, totalShares int64, opts RegisterOptions) (*account.Account, error)
	// SoftDelete marks the account deleted; the row stays.
	SoftDelete(ctx context.Context, auth, updater string) error
	// List returns accounts, skipping deleted ones unless asked.
	List(ctx context.Context, includeDeleted bool) ([]*account.Account, error)
	Close() error
}
