package repository

import (
	"context"

	"github.com/iliyamo/club-payments/internal/model"
)

// PaymentStore is the contract every backend and the failover coordinator
// satisfy.
//
//   - Save persists a new payment.  Backends that own identity assign the id
//     on the payment.  A failed save leaves nothing visible to later reads.
//   - FindByID returns ErrNotFound when the id is absent.
//   - FindAll returns an empty, non-nil slice for an empty store.
//   - Update replaces the line items of an existing payment; the payment must
//     carry an id.
//   - Delete is idempotent: deleting an absent id is not an error.
//
// I/O and connectivity failures are reported as *StorageError.
type PaymentStore interface {
	Save(ctx context.Context, p *model.Payment) error
	FindByID(ctx context.Context, id int64) (*model.Payment, error)
	FindAll(ctx context.Context) ([]*model.Payment, error)
	Update(ctx context.Context, p *model.Payment) error
	Delete(ctx context.Context, id int64) error
}
