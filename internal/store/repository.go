/**
 * @description
 * Repository contracts for the collections service. Each aggregate (charges,
 * clients, history) has its own repository; a Store hands out repositories that
 * are bound either to the shared connection or to one transaction.
 */
package store

import (
	"context"
	"errors"

	"github.com/transfa/collections-service/internal/domain"
)

// ErrReadOnly is returned when a write is attempted inside a read snapshot.
var ErrReadOnly = errors.New("store: write attempted in read-only snapshot")

// ChargeRepository persists charges.
type ChargeRepository interface {
	Get(ctx context.Context, id string) (*domain.Charge, error)
	// GetForUpdate loads the charge and holds its write lock until the
	// surrounding transaction ends.
	GetForUpdate(ctx context.Context, id string) (*domain.Charge, error)
	List(ctx context.Context) ([]domain.Charge, error)
	ListByClient(ctx context.Context, clientID string) ([]domain.Charge, error)
	ListByClientForUpdate(ctx context.Context, clientID string) ([]domain.Charge, error)
	Insert(ctx context.Context, charge domain.Charge) error
	Update(ctx context.Context, charge domain.Charge) error
}

// ClientRepository persists clients. TotalOwed is never stored.
type ClientRepository interface {
	Get(ctx context.Context, id string) (*domain.Client, error)
	GetForUpdate(ctx context.Context, id string) (*domain.Client, error)
	List(ctx context.Context) ([]domain.Client, error)
	Insert(ctx context.Context, client domain.Client) error
	Update(ctx context.Context, client domain.Client) error
}

// HistoryRepository is the append-only audit log.
type HistoryRepository interface {
	Append(ctx context.Context, entry domain.HistoryEntry) error
	ListByCharge(ctx context.Context, chargeID string) ([]domain.HistoryEntry, error)
	List(ctx context.Context, filter domain.HistoryFilter) ([]domain.HistoryEntry, error)
}

// Repositories groups the per-aggregate repositories of one unit of work.
type Repositories interface {
	Charges() ChargeRepository
	Clients() ClientRepository
	History() HistoryRepository
}

// Store is the persistence boundary of the service.
type Store interface {
	Repositories
	// WithinTx runs fn in one transaction. Any error returned by fn rolls back
	// every write made through repos.
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
	// Snapshot runs fn against a consistent read-only view.
	Snapshot(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}
