// Package mirror keeps an in-memory, read-optimised copy of every
// train's seat counters, active bookings and waiting list.  It answers
// the listing, search and report endpoints without touching the
// database.  The mirror is never consulted for write decisions; the
// allocation engine reads durable state for those and pushes each
// committed change here with Apply.
//
// Views are immutable once published.  Apply builds a fresh view and
// swaps the pointer, so a reader either sees a train before or after a
// mutation, never halfway.
package mirror

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/labstack/gommon/log"

	"github.com/iliyamo/railway-reservation/internal/model"
)

// TrainView is the published snapshot of one train.  Reservations are
// the ACTIVE bookings ordered by seat number; Waitlist is ordered by
// position starting at 1.
type TrainView struct {
	Train        model.Train           `json:"train"`
	Reservations []model.Reservation   `json:"reservations"`
	Waitlist     []model.WaitlistEntry `json:"waiting_list"`
}

// WaitingCount returns the length of the waiting list.
func (v TrainView) WaitingCount() int { return len(v.Waitlist) }

// Mutation describes one committed engine operation on a train.  Train
// carries the counters and version as written by the transaction.
type Mutation struct {
	Train     model.Train
	Granted   []model.Reservation
	Cancelled []string
	Enqueued  *model.WaitlistEntry
	Dequeued  bool
}

// Source enumerates durable state for a full reload.
type Source interface {
	ListTrains(ctx context.Context) ([]model.Train, error)
	ListActiveReservations(ctx context.Context) ([]model.Reservation, error)
	ListWaitlist(ctx context.Context) ([]model.WaitlistEntry, error)
}

// Index holds one TrainView per train.  gen counts published changes
// and moves together with views under mu.
type Index struct {
	mu     sync.RWMutex
	views  map[uint64]*TrainView
	gen    uint64
	logger *log.Logger
}

// New returns an empty index.
func New() *Index {
	l := log.New("mirror")
	return &Index{views: make(map[uint64]*TrainView), logger: l}
}

// Reload replaces the whole index with state read from src.  Trains are
// enumerated first, then active bookings, then waiting list entries in
// position order.  The current contents stay published if any read
// fails.
func (x *Index) Reload(ctx context.Context, src Source) error {
	trains, err := src.ListTrains(ctx)
	if err != nil {
		return fmt.Errorf("list trains: %w", err)
	}
	reservations, err := src.ListActiveReservations(ctx)
	if err != nil {
		return fmt.Errorf("list reservations: %w", err)
	}
	entries, err := src.ListWaitlist(ctx)
	if err != nil {
		return fmt.Errorf("list waiting list: %w", err)
	}

	views := make(map[uint64]*TrainView, len(trains))
	for _, t := range trains {
		views[t.ID] = &TrainView{Train: t}
	}
	for _, r := range reservations {
		v, ok := views[r.TrainID]
		if !ok || !r.Active() {
			continue
		}
		v.Reservations = append(v.Reservations, r)
	}
	for _, e := range entries {
		v, ok := views[e.TrainID]
		if !ok {
			continue
		}
		v.Waitlist = append(v.Waitlist, e)
	}
	for _, v := range views {
		sortReservations(v.Reservations)
		sort.SliceStable(v.Waitlist, func(i, j int) bool { return v.Waitlist[i].Position < v.Waitlist[j].Position })
	}

	x.mu.Lock()
	x.views = views
	x.gen++
	x.mu.Unlock()
	x.logger.Infof("mirror reloaded: %d trains, %d bookings, %d waiting", len(trains), len(reservations), len(entries))
	return nil
}

// Put publishes a train that was just created.
func (x *Index) Put(t model.Train) {
	x.mu.Lock()
	x.views[t.ID] = &TrainView{Train: t}
	x.gen++
	x.mu.Unlock()
}

// Drop removes a deleted train together with its waiting list.
func (x *Index) Drop(trainID uint64) {
	x.mu.Lock()
	delete(x.views, trainID)
	x.gen++
	x.mu.Unlock()
}

// Apply publishes a committed mutation.  Mutations carrying a version
// that is not newer than the published one are ignored, which keeps the
// published state monotonic.  It reports whether the view changed.
func (x *Index) Apply(m Mutation) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	cur, ok := x.views[m.Train.ID]
	if !ok {
		x.logger.Warnf("mutation for unknown train %d ignored", m.Train.ID)
		return false
	}
	if m.Train.Version <= cur.Train.Version {
		return false
	}
	x.views[m.Train.ID] = cur.apply(m)
	x.gen++
	return true
}

// Generation returns a counter that grows with every published change.
// Response caches key on it so a cached listing is never older than the
// mirror it was rendered from.
func (x *Index) Generation() uint64 {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.gen
}

func (v *TrainView) apply(m Mutation) *TrainView {
	next := &TrainView{Train: m.Train}

	cancelled := make(map[string]struct{}, len(m.Cancelled))
	for _, pnr := range m.Cancelled {
		cancelled[pnr] = struct{}{}
	}
	next.Reservations = make([]model.Reservation, 0, len(v.Reservations)+len(m.Granted))
	for _, r := range v.Reservations {
		if _, gone := cancelled[r.PNR]; gone {
			continue
		}
		next.Reservations = append(next.Reservations, r)
	}
	next.Reservations = append(next.Reservations, m.Granted...)
	sortReservations(next.Reservations)

	wl := v.Waitlist
	if m.Dequeued && len(wl) > 0 {
		wl = wl[1:]
	}
	next.Waitlist = make([]model.WaitlistEntry, 0, len(wl)+1)
	for _, e := range wl {
		if m.Dequeued {
			e.Position--
		}
		next.Waitlist = append(next.Waitlist, e)
	}
	if m.Enqueued != nil {
		next.Waitlist = append(next.Waitlist, *m.Enqueued)
	}
	return next
}

func sortReservations(rs []model.Reservation) {
	sort.Slice(rs, func(i, j int) bool { return rs[i].SeatNumber < rs[j].SeatNumber })
}

// Get returns the published view of a train.
func (x *Index) Get(trainID uint64) (TrainView, bool) {
	x.mu.RLock()
	v, ok := x.views[trainID]
	x.mu.RUnlock()
	if !ok {
		return TrainView{}, false
	}
	return *v, true
}

// List returns every view ordered by train id.
func (x *Index) List() []TrainView {
	x.mu.RLock()
	out := make([]TrainView, 0, len(x.views))
	for _, v := range x.views {
		out = append(out, *v)
	}
	x.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Train.ID < out[j].Train.ID })
	return out
}

// Len returns the number of trains in the index.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.views)
}
