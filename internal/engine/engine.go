// Package engine allocates train seats and runs the FIFO waiting list.
//
// Every mutating operation runs inside one durable transaction while
// holding the train's mutex, so the read-decide-write sequence is atomic
// per train and different trains proceed in parallel.  After commit the
// change is pushed to the mirror index; a failed operation never touches
// the mirror.  A global read/write gate lets RebuildMirror quiesce all
// writers while it reloads the mirror from durable state.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/labstack/gommon/log"

	"github.com/iliyamo/railway-reservation/internal/mirror"
	"github.com/iliyamo/railway-reservation/internal/model"
	"github.com/iliyamo/railway-reservation/internal/repository"
	"github.com/iliyamo/railway-reservation/internal/utils"
)

// Engine is safe for concurrent use.
type Engine struct {
	store  Store
	index  *mirror.Index
	source mirror.Source

	gate  sync.RWMutex
	locks *lockTable

	now    func() time.Time
	newPNR func() (string, error)
	logger *log.Logger
}

// Option customises an Engine.
type Option func(*Engine)

// WithClock replaces time.Now (tests).
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithPNRGenerator replaces the confirmation code generator (tests).
func WithPNRGenerator(gen func() (string, error)) Option {
	return func(e *Engine) { e.newPNR = gen }
}

// New returns an engine writing through store, publishing to index and
// rebuilding index from source.
func New(store Store, index *mirror.Index, source mirror.Source, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		index:  index,
		source: source,
		locks:  newLockTable(),
		now:    func() time.Time { return time.Now().UTC() },
		newPNR: utils.NewPNR,
		logger: log.New("engine"),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// inTx runs fn in a fresh transaction and commits when fn succeeds.
func (e *Engine) inTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := e.store.Begin(ctx)
	if err != nil {
		return storageErr("begin", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return storageErr("commit", err)
	}
	committed = true
	return nil
}

func (e *Engine) loadTrain(ctx context.Context, tx Tx, trainID uint64) (model.Train, error) {
	t, ok, err := tx.LoadResource(ctx, trainID)
	if err != nil {
		return model.Train{}, storageErr("load train", err)
	}
	if !ok {
		return model.Train{}, ErrResourceNotFound
	}
	return t, nil
}

// Reserve grants the lowest free seat of the train to holder, or queues
// the request at the end of the waiting list when no seat is available.
func (e *Engine) Reserve(ctx context.Context, trainID, holderID uint64, p model.Passenger) (out Outcome, err error) {
	start := time.Now()
	defer func() { track("reserve", start, err) }()
	e.gate.RLock()
	defer e.gate.RUnlock()
	unlock := e.locks.lock(trainID)
	defer unlock()

	var m mirror.Mutation
	err = e.inTx(ctx, func(tx Tx) error {
		t, err := e.loadTrain(ctx, tx, trainID)
		if err != nil {
			return err
		}
		now := e.now()
		t.UpdatedAt = now

		if t.AvailableSeats > 0 {
			held, err := tx.ActiveSeats(ctx, trainID)
			if err != nil {
				return storageErr("active seats", err)
			}
			seat, ok := lowestFreeSeat(held, t.TotalSeats)
			if !ok {
				return storageErr("assign seat", fmt.Errorf("train %d reports %d available seats but all %d are held",
					trainID, t.AvailableSeats, t.TotalSeats))
			}
			pnr, err := e.newPNR()
			if err != nil {
				return storageErr("generate pnr", err)
			}
			r := model.Reservation{
				PNR:        pnr,
				TrainID:    trainID,
				HolderID:   holderID,
				Passenger:  p,
				SeatNumber: seat,
				Status:     model.StatusActive,
				CreatedAt:  now,
				UpdatedAt:  now,
			}
			if err := tx.InsertReservation(ctx, &r); err != nil {
				return storageErr("insert reservation", err)
			}
			t.AvailableSeats--
			if err := tx.SaveResource(ctx, &t); err != nil {
				return storageErr("save train", err)
			}
			out = Outcome{Kind: Confirmed, Train: t, Reservation: &r}
			m = mirror.Mutation{Train: t, Granted: []model.Reservation{r}}
			return nil
		}

		n, err := tx.WaitlistLength(ctx, trainID)
		if err != nil {
			return storageErr("waitlist length", err)
		}
		entry := model.WaitlistEntry{
			TrainID:   trainID,
			HolderID:  holderID,
			Passenger: p,
			Position:  n + 1,
			AddedAt:   now,
		}
		if err := tx.InsertWaitlistEntry(ctx, &entry); err != nil {
			return storageErr("insert waitlist entry", err)
		}
		if err := tx.SaveResource(ctx, &t); err != nil {
			return storageErr("save train", err)
		}
		out = Outcome{Kind: Waitlisted, Train: t, Entry: &entry}
		m = mirror.Mutation{Train: t, Enqueued: &entry}
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}
	e.index.Apply(m)
	return out, nil
}

// Release cancels the booking identified by pnr.  When the train has a
// waiting list the entry at position 1 takes over the vacated seat under
// a new PNR and available seats stay unchanged; otherwise the seat is
// returned to the pool.
func (e *Engine) Release(ctx context.Context, pnr string) (out Outcome, err error) {
	start := time.Now()
	defer func() { track("release", start, err) }()
	e.gate.RLock()
	defer e.gate.RUnlock()

	// The train is not known until the booking is read; the booking is
	// re-read and re-checked under the train lock below.
	first, err := e.lookup(ctx, pnr)
	if err != nil {
		return Outcome{}, err
	}
	if !first.Active() {
		return Outcome{}, ErrAlreadyCancelled
	}
	unlock := e.locks.lock(first.TrainID)
	defer unlock()

	var m mirror.Mutation
	err = e.inTx(ctx, func(tx Tx) error {
		r, ok, err := tx.LoadReservation(ctx, pnr)
		if err != nil {
			return storageErr("load reservation", err)
		}
		if !ok {
			return ErrReservationNotFound
		}
		if !r.Active() {
			return ErrAlreadyCancelled
		}
		t, err := e.loadTrain(ctx, tx, r.TrainID)
		if err != nil {
			return err
		}
		now := e.now()
		if err := tx.CancelReservation(ctx, r.ID, now); err != nil {
			return storageErr("cancel reservation", err)
		}
		r.Status = model.StatusCancelled
		r.UpdatedAt = now
		t.UpdatedAt = now
		out = Outcome{Kind: Released, Reservation: &r}
		m = mirror.Mutation{Cancelled: []string{r.PNR}}

		head, ok, err := tx.WaitlistHead(ctx, t.ID)
		if err != nil {
			return storageErr("waitlist head", err)
		}
		if ok {
			code, err := e.newPNR()
			if err != nil {
				return storageErr("generate pnr", err)
			}
			promoted := model.Reservation{
				PNR:        code,
				TrainID:    t.ID,
				HolderID:   head.HolderID,
				Passenger:  head.Passenger,
				SeatNumber: r.SeatNumber,
				Status:     model.StatusActive,
				CreatedAt:  now,
				UpdatedAt:  now,
			}
			if err := tx.InsertReservation(ctx, &promoted); err != nil {
				return storageErr("insert promoted reservation", err)
			}
			if err := tx.DeleteWaitlistEntry(ctx, head.ID); err != nil {
				return storageErr("delete waitlist entry", err)
			}
			if err := tx.RenumberWaitlist(ctx, t.ID, head.Position+1); err != nil {
				return storageErr("renumber waitlist", err)
			}
			out.Promoted = &promoted
			m.Granted = []model.Reservation{promoted}
			m.Dequeued = true
		} else {
			t.AvailableSeats++
		}
		if err := tx.SaveResource(ctx, &t); err != nil {
			return storageErr("save train", err)
		}
		out.Train = t
		m.Train = t
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}
	e.index.Apply(m)
	if out.Promoted != nil {
		promotions.Inc()
		e.logger.Infof("train %d: seat %d passed from %s to %s", out.Train.ID, out.Seat(), out.PNR(), out.PromotedPNR())
	}
	return out, nil
}

// AdjustCapacity sets the train's total seats to newTotal and moves the
// available count by the same difference.  Shrinking below the number of
// held seats, or below the highest held seat number, fails with
// ErrInvalidCapacity.  Growing never promotes waiting passengers.
func (e *Engine) AdjustCapacity(ctx context.Context, trainID uint64, newTotal int) (out Outcome, err error) {
	start := time.Now()
	defer func() { track("adjust_capacity", start, err) }()
	if newTotal < 0 {
		return Outcome{}, fmt.Errorf("%w: total seats must not be negative", ErrInvalidCapacity)
	}
	e.gate.RLock()
	defer e.gate.RUnlock()
	unlock := e.locks.lock(trainID)
	defer unlock()

	var m mirror.Mutation
	err = e.inTx(ctx, func(tx Tx) error {
		t, err := e.loadTrain(ctx, tx, trainID)
		if err != nil {
			return err
		}
		available := t.AvailableSeats + (newTotal - t.TotalSeats)
		if available < 0 {
			return fmt.Errorf("%w: %d seats are held", ErrInvalidCapacity, t.BookedSeats())
		}
		held, err := tx.ActiveSeats(ctx, trainID)
		if err != nil {
			return storageErr("active seats", err)
		}
		if top := highestSeat(held); top > newTotal {
			return fmt.Errorf("%w: seat %d is held", ErrInvalidCapacity, top)
		}
		t.TotalSeats = newTotal
		t.AvailableSeats = available
		t.UpdatedAt = e.now()
		if err := tx.SaveResource(ctx, &t); err != nil {
			return storageErr("save train", err)
		}
		out = Outcome{Kind: Adjusted, Train: t}
		m = mirror.Mutation{Train: t}
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}
	e.index.Apply(m)
	return out, nil
}

// Snapshot returns the published view of a train without touching
// durable storage.
func (e *Engine) Snapshot(trainID uint64) (mirror.TrainView, error) {
	v, ok := e.index.Get(trainID)
	if !ok {
		return mirror.TrainView{}, ErrResourceNotFound
	}
	return v, nil
}

// CreateTrain stores a new train with every seat available and
// publishes it to the mirror.
func (e *Engine) CreateTrain(ctx context.Context, t model.Train) (out model.Train, err error) {
	start := time.Now()
	defer func() { track("create_train", start, err) }()
	if err := validateTrain(t); err != nil {
		return model.Train{}, err
	}
	// The id is unknown until the insert, so no train lock can cover the
	// window between commit and Put; hold the gate exclusively instead.
	e.gate.Lock()
	defer e.gate.Unlock()

	now := e.now()
	t.ID = 0
	t.AvailableSeats = t.TotalSeats
	t.Version = 1
	t.CreatedAt = now
	t.UpdatedAt = now
	err = e.inTx(ctx, func(tx Tx) error {
		if err := tx.InsertResource(ctx, &t); err != nil {
			if errors.Is(err, repository.ErrDuplicateTrainNumber) {
				return fmt.Errorf("%w: train number %s already exists", ErrConflict, t.Number)
			}
			return storageErr("insert train", err)
		}
		return nil
	})
	if err != nil {
		return model.Train{}, err
	}
	e.index.Put(t)
	mirrorTrains.Set(float64(e.index.Len()))
	e.logger.Infof("train %d (%s) created with %d seats", t.ID, t.Number, t.TotalSeats)
	return t, nil
}

func validateTrain(t model.Train) error {
	switch {
	case strings.TrimSpace(t.Number) == "":
		return fmt.Errorf("%w: train_number is required", ErrInvalidRequest)
	case strings.TrimSpace(t.Name) == "":
		return fmt.Errorf("%w: train_name is required", ErrInvalidRequest)
	case strings.TrimSpace(t.Source) == "" || strings.TrimSpace(t.Destination) == "":
		return fmt.Errorf("%w: source and destination are required", ErrInvalidRequest)
	case t.TotalSeats < 0:
		return fmt.Errorf("%w: total seats must not be negative", ErrInvalidCapacity)
	case t.Fare.IsNegative():
		return fmt.Errorf("%w: fare must not be negative", ErrInvalidRequest)
	}
	return nil
}

// DeleteTrain removes a train and its waiting list.  Trains with active
// bookings cannot be deleted.
func (e *Engine) DeleteTrain(ctx context.Context, trainID uint64) (err error) {
	start := time.Now()
	defer func() { track("delete_train", start, err) }()
	e.gate.RLock()
	defer e.gate.RUnlock()
	unlock := e.locks.lock(trainID)
	defer unlock()

	err = e.inTx(ctx, func(tx Tx) error {
		if _, err := e.loadTrain(ctx, tx, trainID); err != nil {
			return err
		}
		held, err := tx.ActiveSeats(ctx, trainID)
		if err != nil {
			return storageErr("active seats", err)
		}
		if len(held) > 0 {
			return fmt.Errorf("%w: train has %d active bookings", ErrConflict, len(held))
		}
		if err := tx.DeleteResource(ctx, trainID); err != nil {
			return storageErr("delete train", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	e.index.Drop(trainID)
	mirrorTrains.Set(float64(e.index.Len()))
	e.logger.Infof("train %d deleted", trainID)
	return nil
}

// Lookup reads a booking by PNR from durable storage.
func (e *Engine) Lookup(ctx context.Context, pnr string) (model.Reservation, error) {
	return e.lookup(ctx, pnr)
}

func (e *Engine) lookup(ctx context.Context, pnr string) (model.Reservation, error) {
	var r model.Reservation
	err := e.inTx(ctx, func(tx Tx) error {
		got, ok, err := tx.LoadReservation(ctx, pnr)
		if err != nil {
			return storageErr("load reservation", err)
		}
		if !ok {
			return ErrReservationNotFound
		}
		r = got
		return nil
	})
	return r, err
}

// ReservationsByHolder lists every booking of holder, newest first.
func (e *Engine) ReservationsByHolder(ctx context.Context, holderID uint64) ([]model.Reservation, error) {
	var out []model.Reservation
	err := e.inTx(ctx, func(tx Tx) error {
		rs, err := tx.ReservationsByHolder(ctx, holderID)
		if err != nil {
			return storageErr("list reservations", err)
		}
		out = rs
		return nil
	})
	return out, err
}

// AllReservations lists every booking of every train, cancelled ones
// included, newest first.
func (e *Engine) AllReservations(ctx context.Context) ([]model.Reservation, error) {
	var out []model.Reservation
	err := e.inTx(ctx, func(tx Tx) error {
		rs, err := tx.AllReservations(ctx)
		if err != nil {
			return storageErr("list all reservations", err)
		}
		out = rs
		return nil
	})
	return out, err
}

// RebuildMirror waits for in-flight mutations to finish, blocks new ones
// and reloads the mirror from durable storage.  It is the recovery path
// whenever the mirror may have diverged.
func (e *Engine) RebuildMirror(ctx context.Context) error {
	e.gate.Lock()
	defer e.gate.Unlock()
	if err := e.index.Reload(ctx, e.source); err != nil {
		mirrorReloads.WithLabelValues("error").Inc()
		return storageErr("reload mirror", err)
	}
	mirrorReloads.WithLabelValues("ok").Inc()
	mirrorTrains.Set(float64(e.index.Len()))
	return nil
}
