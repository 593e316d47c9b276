package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/labstack/gommon/log"

	"github.com/iliyamo/railway-reservation/internal/engine"
	"github.com/iliyamo/railway-reservation/internal/model"
	"github.com/iliyamo/railway-reservation/internal/queue"
)

// Events returns the booking events an engine outcome produces, in
// publish order.  Capacity adjustments produce none.
func Events(out engine.Outcome) []queue.BookingEvent {
	t := out.Train
	base := func(kind string, holder uint64, p model.Passenger) queue.BookingEvent {
		return queue.BookingEvent{
			Kind:           kind,
			TrainID:        t.ID,
			TrainNumber:    t.Number,
			UserID:         holder,
			PassengerName:  p.Name,
			AvailableSeats: t.AvailableSeats,
		}
	}

	switch out.Kind {
	case engine.Confirmed:
		r := out.Reservation
		ev := base(queue.KindConfirmed, r.HolderID, r.Passenger)
		ev.PNR, ev.SeatNumber = r.PNR, r.SeatNumber
		return []queue.BookingEvent{ev}
	case engine.Waitlisted:
		e := out.Entry
		ev := base(queue.KindWaitlisted, e.HolderID, e.Passenger)
		ev.Position = e.Position
		return []queue.BookingEvent{ev}
	case engine.Released:
		r := out.Reservation
		ev := base(queue.KindCancelled, r.HolderID, r.Passenger)
		ev.PNR, ev.SeatNumber = r.PNR, r.SeatNumber
		evs := []queue.BookingEvent{ev}
		if p := out.Promoted; p != nil {
			pe := base(queue.KindPromoted, p.HolderID, p.Passenger)
			pe.PNR, pe.SeatNumber, pe.ReplacedPNR = p.PNR, p.SeatNumber, r.PNR
			evs = append(evs, pe)
		}
		return evs
	}
	return nil
}

// DefaultNotifyBuffer is the number of events a Notifier queues before
// it starts dropping.
const DefaultNotifyBuffer = 256

// Notifier hands the events of committed outcomes to a Publisher on a
// background goroutine.  Requests never wait for the broker: when the
// buffer is full the event is dropped and counted.
type Notifier struct {
	pub     Publisher
	events  chan queue.BookingEvent
	done    chan struct{}
	timeout time.Duration

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64

	logger *log.Logger
}

// NewNotifier starts the delivery goroutine.  A nil pub drops
// everything; buffer <= 0 means DefaultNotifyBuffer.
func NewNotifier(pub Publisher, buffer int) *Notifier {
	if pub == nil {
		pub = NopPublisher{}
	}
	if buffer <= 0 {
		buffer = DefaultNotifyBuffer
	}
	n := &Notifier{
		pub:     pub,
		events:  make(chan queue.BookingEvent, buffer),
		done:    make(chan struct{}),
		timeout: 10 * time.Second,
		logger:  log.New("events"),
	}
	go n.run()
	return n
}

func (n *Notifier) run() {
	defer close(n.done)
	for ev := range n.events {
		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		err := n.pub.Publish(ctx, ev)
		cancel()
		if err != nil {
			n.logger.Errorf("booking event %s for train %d not published: %v", ev.Kind, ev.TrainID, err)
		}
	}
}

// Notify queues every event of out in publish order.  It never blocks
// and never fails: the booking is already durable.
func (n *Notifier) Notify(out engine.Outcome) {
	evs := Events(out)
	if len(evs) == 0 {
		return
	}
	now := time.Now().UTC()

	n.mu.RLock()
	defer n.mu.RUnlock()
	for _, ev := range evs {
		if n.closed {
			n.drop(ev, "notifier closed")
			continue
		}
		select {
		case n.events <- stamp(ev, now):
		default:
			n.drop(ev, "buffer full")
		}
	}
}

func (n *Notifier) drop(ev queue.BookingEvent, why string) {
	n.dropped.Add(1)
	n.logger.Warnf("booking event %s for train %d dropped: %s", ev.Kind, ev.TrainID, why)
}

// Dropped returns how many events were discarded.
func (n *Notifier) Dropped() uint64 { return n.dropped.Load() }

// Close stops accepting events and waits until the queued ones have been
// handed to the publisher.  It is safe to call more than once.
func (n *Notifier) Close() error {
	n.mu.Lock()
	if !n.closed {
		n.closed = true
		close(n.events)
	}
	n.mu.Unlock()
	<-n.done
	return nil
}
