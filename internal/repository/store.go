package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/railway-reservation/internal/model"
)

// Store bundles the repositories behind one database handle. It hands
// out Sessions for the allocation engine and serves the full-table
// reads used to rebuild the mirror index.
type Store struct {
	db           *sql.DB
	Trains       *TrainRepo
	Reservations *ReservationRepo
	Waitlist     *WaitlistRepo
}

// NewStore wires the repositories for the given dialect.
func NewStore(db *sql.DB, dialect Dialect) *Store {
	return &Store{
		db:           db,
		Trains:       NewTrainRepo(db, dialect),
		Reservations: NewReservationRepo(db),
		Waitlist:     NewWaitlistRepo(db),
	}
}

// DB exposes the underlying handle (health checks).
func (s *Store) DB() *sql.DB { return s.db }

// Begin opens a transaction and wraps it in a Session.
func (s *Store) Begin(ctx context.Context) (*Session, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &Session{tx: tx, store: s}, nil
}

// ListTrains returns every train ordered by id.
func (s *Store) ListTrains(ctx context.Context) ([]model.Train, error) {
	return s.Trains.List(ctx)
}

// ListActiveReservations returns every ACTIVE booking.
func (s *Store) ListActiveReservations(ctx context.Context) ([]model.Reservation, error) {
	return s.Reservations.ListActive(ctx)
}

// ListWaitlist returns every waiting list entry ordered by position.
func (s *Store) ListWaitlist(ctx context.Context) ([]model.WaitlistEntry, error) {
	return s.Waitlist.List(ctx)
}

// Session is one engine transaction. Every read and write goes through
// the same *sql.Tx so that SQLite's single connection never deadlocks
// against itself.
type Session struct {
	tx    *sql.Tx
	store *Store
}

// LoadResource reads the train and locks its row until the session ends.
func (s *Session) LoadResource(ctx context.Context, trainID uint64) (model.Train, bool, error) {
	t, err := s.store.Trains.GetByIDTx(ctx, s.tx, trainID, true)
	if errors.Is(err, ErrTrainNotFound) {
		return model.Train{}, false, nil
	}
	if err != nil {
		return model.Train{}, false, err
	}
	return t, true, nil
}

// InsertResource creates a train row.
func (s *Session) InsertResource(ctx context.Context, t *model.Train) error {
	return s.store.Trains.CreateTx(ctx, s.tx, t)
}

// SaveResource writes the seat counters and advances the version by one.
func (s *Session) SaveResource(ctx context.Context, t *model.Train) error {
	prev := t.Version
	t.Version = prev + 1
	if err := s.store.Trains.UpdateSeatsTx(ctx, s.tx, t, prev); err != nil {
		t.Version = prev
		return err
	}
	return nil
}

// DeleteResource removes the train together with its waiting list.
func (s *Session) DeleteResource(ctx context.Context, trainID uint64) error {
	if err := s.store.Waitlist.DeleteByTrainTx(ctx, s.tx, trainID); err != nil {
		return err
	}
	return s.store.Trains.DeleteTx(ctx, s.tx, trainID)
}

// ActiveSeats returns the seat numbers held on the train.
func (s *Session) ActiveSeats(ctx context.Context, trainID uint64) ([]int, error) {
	return s.store.Reservations.ActiveSeatsTx(ctx, s.tx, trainID)
}

// InsertReservation persists a new booking.
func (s *Session) InsertReservation(ctx context.Context, r *model.Reservation) error {
	return s.store.Reservations.CreateTx(ctx, s.tx, r)
}

// LoadReservation reads a booking by PNR.
func (s *Session) LoadReservation(ctx context.Context, pnr string) (model.Reservation, bool, error) {
	r, err := s.store.Reservations.GetByPNRTx(ctx, s.tx, pnr)
	if errors.Is(err, ErrReservationNotFound) {
		return model.Reservation{}, false, nil
	}
	if err != nil {
		return model.Reservation{}, false, err
	}
	return r, true, nil
}

// CancelReservation marks the booking CANCELLED.
func (s *Session) CancelReservation(ctx context.Context, id uint64, at time.Time) error {
	return s.store.Reservations.CancelTx(ctx, s.tx, id, at)
}

// WaitlistLength counts the entries queued for the train.
func (s *Session) WaitlistLength(ctx context.Context, trainID uint64) (int, error) {
	return s.store.Waitlist.CountTx(ctx, s.tx, trainID)
}

// WaitlistHead returns the entry at position 1, if any.
func (s *Session) WaitlistHead(ctx context.Context, trainID uint64) (model.WaitlistEntry, bool, error) {
	return s.store.Waitlist.HeadTx(ctx, s.tx, trainID)
}

// InsertWaitlistEntry appends an entry.
func (s *Session) InsertWaitlistEntry(ctx context.Context, e *model.WaitlistEntry) error {
	return s.store.Waitlist.CreateTx(ctx, s.tx, e)
}

// DeleteWaitlistEntry removes an entry by id.
func (s *Session) DeleteWaitlistEntry(ctx context.Context, id uint64) error {
	return s.store.Waitlist.DeleteTx(ctx, s.tx, id)
}

// RenumberWaitlist closes the gap left at fromPosition-1.
func (s *Session) RenumberWaitlist(ctx context.Context, trainID uint64, fromPosition int) error {
	return s.store.Waitlist.ShiftTx(ctx, s.tx, trainID, fromPosition)
}

// ReservationsByHolder lists the bookings of a holder.
func (s *Session) ReservationsByHolder(ctx context.Context, holderID uint64) ([]model.Reservation, error) {
	rows, err := s.tx.QueryContext(ctx,
		`SELECT `+reservationColumns+` FROM bookings WHERE user_id = ? ORDER BY created_at DESC, id DESC`,
		holderID)
	if err != nil {
		return nil, err
	}
	return scanReservations(rows)
}

// AllReservations lists every booking, cancelled ones included.
func (s *Session) AllReservations(ctx context.Context) ([]model.Reservation, error) {
	rows, err := s.tx.QueryContext(ctx,
		`SELECT `+reservationColumns+` FROM bookings ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	return scanReservations(rows)
}

// Commit commits the transaction.
func (s *Session) Commit() error { return s.tx.Commit() }

// Rollback aborts the transaction. Calling it after Commit is harmless.
func (s *Session) Rollback() error { return s.tx.Rollback() }
