package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/railway-reservation/internal/engine"
	"github.com/iliyamo/railway-reservation/internal/model"
	"github.com/iliyamo/railway-reservation/internal/queue"
)

type recorder struct {
	mu     sync.Mutex
	events []queue.BookingEvent
	err    error
}

func (r *recorder) Publish(_ context.Context, ev queue.BookingEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

// stalled blocks every Publish until release is closed, like a broker
// that accepts the TCP connection and never answers.
type stalled struct {
	release   chan struct{}
	published atomic.Int64
}

func (s *stalled) Publish(ctx context.Context, _ queue.BookingEvent) error {
	select {
	case <-s.release:
		s.published.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *stalled) Close() error { return nil }

func (r *recorder) Close() error { return nil }

var train = model.Train{ID: 4, Number: "12951", TotalSeats: 1, AvailableSeats: 0}

func TestEventsConfirmed(t *testing.T) {
	evs := Events(engine.Outcome{
		Kind:  engine.Confirmed,
		Train: train,
		Reservation: &model.Reservation{
			PNR: "AAAAAAAAAA", HolderID: 7, SeatNumber: 1,
			Passenger: model.Passenger{Name: "Asha"},
		},
	})
	require.Len(t, evs, 1)
	assert.Equal(t, queue.KindConfirmed, evs[0].Kind)
	assert.Equal(t, "AAAAAAAAAA", evs[0].PNR)
	assert.Equal(t, 1, evs[0].SeatNumber)
	assert.Equal(t, uint64(7), evs[0].UserID)
	assert.Equal(t, "12951", evs[0].TrainNumber)
}

func TestEventsWaitlisted(t *testing.T) {
	evs := Events(engine.Outcome{
		Kind:  engine.Waitlisted,
		Train: train,
		Entry: &model.WaitlistEntry{HolderID: 9, Position: 3, Passenger: model.Passenger{Name: "B"}},
	})
	require.Len(t, evs, 1)
	assert.Equal(t, queue.KindWaitlisted, evs[0].Kind)
	assert.Equal(t, 3, evs[0].Position)
	assert.Empty(t, evs[0].PNR)
}

func TestEventsReleaseWithPromotion(t *testing.T) {
	evs := Events(engine.Outcome{
		Kind:        engine.Released,
		Train:       train,
		Reservation: &model.Reservation{PNR: "OLDOLDOLD1", HolderID: 1, SeatNumber: 1},
		Promoted:    &model.Reservation{PNR: "NEWNEWNEW2", HolderID: 2, SeatNumber: 1},
	})
	require.Len(t, evs, 2)
	assert.Equal(t, queue.KindCancelled, evs[0].Kind)
	assert.Equal(t, queue.KindPromoted, evs[1].Kind)
	assert.Equal(t, "NEWNEWNEW2", evs[1].PNR)
	assert.Equal(t, "OLDOLDOLD1", evs[1].ReplacedPNR)
	assert.Equal(t, uint64(2), evs[1].UserID)

	assert.Nil(t, Events(engine.Outcome{Kind: engine.Adjusted, Train: train}))
}

func TestNotifierSwallowsErrors(t *testing.T) {
	rec := &recorder{err: errors.New("broker down")}
	n := NewNotifier(rec, 0)
	n.Notify(engine.Outcome{
		Kind:        engine.Released,
		Train:       train,
		Reservation: &model.Reservation{PNR: "X"},
		Promoted:    &model.Reservation{PNR: "Y"},
	})
	require.NoError(t, n.Close())
	require.Len(t, rec.events, 2)
	assert.Equal(t, queue.KindCancelled, rec.events[0].Kind)
	assert.Equal(t, queue.KindPromoted, rec.events[1].Kind)
	assert.NotEmpty(t, rec.events[0].ID)
	assert.Zero(t, n.Dropped())

	// closed notifiers drop instead of panicking
	n.Notify(engine.Outcome{Kind: engine.Confirmed, Train: train, Reservation: &model.Reservation{PNR: "Z"}})
	assert.Equal(t, uint64(1), n.Dropped())
	require.NoError(t, n.Close())
}

func TestNotifyDoesNotWaitForBroker(t *testing.T) {
	pub := &stalled{release: make(chan struct{})}
	n := NewNotifier(pub, 1)

	const total = 6
	start := time.Now()
	for i := 0; i < total; i++ {
		n.Notify(engine.Outcome{Kind: engine.Confirmed, Train: train, Reservation: &model.Reservation{PNR: "P"}})
	}
	assert.Less(t, time.Since(start), time.Second)
	// one event may be in flight and one buffered; the rest are dropped
	assert.GreaterOrEqual(t, n.Dropped(), uint64(total-2))

	close(pub.release)
	require.NoError(t, n.Close())
	assert.Equal(t, uint64(total), n.Dropped()+uint64(pub.published.Load()))
}

func TestStamp(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	ev := stamp(queue.BookingEvent{Kind: queue.KindConfirmed}, at)
	assert.Len(t, ev.ID, 36)
	assert.Equal(t, "2026-03-01T10:00:00Z", ev.OccurredAt)

	kept := stamp(queue.BookingEvent{ID: "fixed", OccurredAt: "then"}, at)
	assert.Equal(t, "fixed", kept.ID)
	assert.Equal(t, "then", kept.OccurredAt)
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	assert.NoError(t, p.Publish(context.Background(), queue.BookingEvent{}))
	assert.NoError(t, p.Close())
}
