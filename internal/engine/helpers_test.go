package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/railway-reservation/internal/database"
	"github.com/iliyamo/railway-reservation/internal/mirror"
	"github.com/iliyamo/railway-reservation/internal/model"
	"github.com/iliyamo/railway-reservation/internal/repository"
)

type harness struct {
	eng   *Engine
	store *repository.Store
	index *mirror.Index
	fault *faultyStore
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "railway.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db, database.DriverSQLite))

	store := repository.NewStore(db, repository.SQLite)
	fault := &faultyStore{inner: Using(store.Begin)}
	idx := mirror.New()
	return &harness{
		eng:   New(fault, idx, store, opts...),
		store: store,
		index: idx,
		fault: fault,
	}
}

var trainSeq atomic.Int64

func (h *harness) train(t require.TestingT, seats int) model.Train {
	n := trainSeq.Add(1)
	tr, err := h.eng.CreateTrain(context.Background(), model.Train{
		Number:      fmt.Sprintf("T%05d", n),
		Name:        "Coastal Express",
		Source:      "Chennai",
		Destination: "Mumbai",
		Fare:        decimal.RequireFromString("450.00"),
		TotalSeats:  seats,
	})
	require.NoError(t, err)
	return tr
}

func passenger(name string) model.Passenger {
	return model.Passenger{Name: name, Age: 30, Gender: "F", Phone: "9000000000"}
}

// durable reads the committed state of one train straight from the store.
func (h *harness) durable(t require.TestingT, trainID uint64) (model.Train, []model.Reservation, []model.WaitlistEntry) {
	ctx := context.Background()
	trains, err := h.store.ListTrains(ctx)
	require.NoError(t, err)
	var tr model.Train
	found := false
	for _, x := range trains {
		if x.ID == trainID {
			tr, found = x, true
		}
	}
	require.True(t, found, "train %d missing", trainID)

	all, err := h.store.ListActiveReservations(ctx)
	require.NoError(t, err)
	var active []model.Reservation
	for _, r := range all {
		if r.TrainID == trainID {
			active = append(active, r)
		}
	}
	entries, err := h.store.ListWaitlist(ctx)
	require.NoError(t, err)
	var wl []model.WaitlistEntry
	for _, e := range entries {
		if e.TrainID == trainID {
			wl = append(wl, e)
		}
	}
	return tr, active, wl
}

// checkInvariants asserts the seat and waiting list rules for one train
// and that the mirror agrees with durable state.
func (h *harness) checkInvariants(t require.TestingT, trainID uint64) {
	h.checkCounters(t, trainID)
	tr, _, wl := h.durable(t, trainID)
	if tr.AvailableSeats > 0 {
		require.Empty(t, wl, "free seats while passengers wait")
	}
}

// checkCounters is checkInvariants without the idle-capacity rule, which
// a capacity increase is allowed to break.
func (h *harness) checkCounters(t require.TestingT, trainID uint64) {
	tr, active, wl := h.durable(t, trainID)

	require.GreaterOrEqual(t, tr.AvailableSeats, 0, "available must not be negative")
	require.Equal(t, tr.TotalSeats-len(active), tr.AvailableSeats, "available = total - active")

	seen := make(map[int]bool)
	for _, r := range active {
		require.GreaterOrEqual(t, r.SeatNumber, 1)
		require.LessOrEqual(t, r.SeatNumber, tr.TotalSeats)
		require.False(t, seen[r.SeatNumber], "seat %d held twice", r.SeatNumber)
		seen[r.SeatNumber] = true
	}

	for i, e := range wl {
		require.Equal(t, i+1, e.Position, "waiting list positions must be 1..n")
	}

	v, ok := h.index.Get(trainID)
	require.True(t, ok, "train %d missing from mirror", trainID)
	require.Equal(t, tr.AvailableSeats, v.Train.AvailableSeats)
	require.Equal(t, tr.TotalSeats, v.Train.TotalSeats)
	require.Equal(t, tr.Version, v.Train.Version)
	require.Equal(t, pnrs(active), pnrs(v.Reservations))
	require.Len(t, v.Waitlist, len(wl))
	for i := range wl {
		require.Equal(t, wl[i].ID, v.Waitlist[i].ID)
		require.Equal(t, wl[i].Position, v.Waitlist[i].Position)
	}
}

func pnrs(rs []model.Reservation) []string {
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.PNR)
	}
	sort.Strings(out)
	return out
}

var errInjected = errors.New("injected fault")

// faultyStore wraps a Store and fails the named Tx method once armed.
type faultyStore struct {
	inner  Store
	failOn atomic.Value // string
}

func (f *faultyStore) arm(method string) { f.failOn.Store(method) }
func (f *faultyStore) disarm()            { f.failOn.Store("") }

func (f *faultyStore) should(method string) bool {
	v, _ := f.failOn.Load().(string)
	return v == method
}

func (f *faultyStore) Begin(ctx context.Context) (Tx, error) {
	if f.should("Begin") {
		return nil, errInjected
	}
	tx, err := f.inner.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &faultyTx{Tx: tx, f: f}, nil
}

type faultyTx struct {
	Tx
	f *faultyStore
}

func (x *faultyTx) InsertReservation(ctx context.Context, r *model.Reservation) error {
	if x.f.should("InsertReservation") {
		return errInjected
	}
	return x.Tx.InsertReservation(ctx, r)
}

func (x *faultyTx) InsertWaitlistEntry(ctx context.Context, e *model.WaitlistEntry) error {
	if x.f.should("InsertWaitlistEntry") {
		return errInjected
	}
	return x.Tx.InsertWaitlistEntry(ctx, e)
}

func (x *faultyTx) SaveResource(ctx context.Context, t *model.Train) error {
	if x.f.should("SaveResource") {
		return errInjected
	}
	return x.Tx.SaveResource(ctx, t)
}

func (x *faultyTx) CancelReservation(ctx context.Context, id uint64, at time.Time) error {
	if x.f.should("CancelReservation") {
		return errInjected
	}
	return x.Tx.CancelReservation(ctx, id, at)
}

func (x *faultyTx) RenumberWaitlist(ctx context.Context, trainID uint64, from int) error {
	if x.f.should("RenumberWaitlist") {
		return errInjected
	}
	return x.Tx.RenumberWaitlist(ctx, trainID, from)
}

func (x *faultyTx) Commit() error {
	if x.f.should("Commit") {
		_ = x.Tx.Rollback()
		return errInjected
	}
	return x.Tx.Commit()
}
