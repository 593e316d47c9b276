package engine

import (
	"context"
	"time"

	"github.com/iliyamo/railway-reservation/internal/model"
)

// Tx is one atomic unit of durable work.  All reads and writes of a
// single engine operation go through the same Tx; nothing is visible to
// other callers until Commit.  Load* methods report a missing row with
// ok == false rather than an error.
type Tx interface {
	LoadResource(ctx context.Context, trainID uint64) (t model.Train, ok bool, err error)
	InsertResource(ctx context.Context, t *model.Train) error
	// SaveResource writes TotalSeats and AvailableSeats and advances
	// t.Version by one.
	SaveResource(ctx context.Context, t *model.Train) error
	DeleteResource(ctx context.Context, trainID uint64) error

	ActiveSeats(ctx context.Context, trainID uint64) ([]int, error)
	InsertReservation(ctx context.Context, r *model.Reservation) error
	LoadReservation(ctx context.Context, pnr string) (r model.Reservation, ok bool, err error)
	CancelReservation(ctx context.Context, id uint64, at time.Time) error
	ReservationsByHolder(ctx context.Context, holderID uint64) ([]model.Reservation, error)
	// AllReservations lists every booking, newest first.
	AllReservations(ctx context.Context) ([]model.Reservation, error)

	WaitlistLength(ctx context.Context, trainID uint64) (int, error)
	WaitlistHead(ctx context.Context, trainID uint64) (e model.WaitlistEntry, ok bool, err error)
	InsertWaitlistEntry(ctx context.Context, e *model.WaitlistEntry) error
	DeleteWaitlistEntry(ctx context.Context, id uint64) error
	// RenumberWaitlist decrements the position of every entry of the
	// train at or after fromPosition.
	RenumberWaitlist(ctx context.Context, trainID uint64, fromPosition int) error

	Commit() error
	Rollback() error
}

// Store opens transactions.
type Store interface {
	Begin(ctx context.Context) (Tx, error)
}

// StoreFunc adapts a function to Store.
type StoreFunc func(ctx context.Context) (Tx, error)

// Begin calls f.
func (f StoreFunc) Begin(ctx context.Context) (Tx, error) { return f(ctx) }

// Using adapts a Begin method returning a concrete transaction type,
// such as (*repository.Store).Begin, to Store.
func Using[T Tx](begin func(ctx context.Context) (T, error)) Store {
	return StoreFunc(func(ctx context.Context) (Tx, error) {
		tx, err := begin(ctx)
		if err != nil {
			return nil, err
		}
		return tx, nil
	})
}
