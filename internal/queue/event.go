// Package queue defines the booking event payload and the consumer that
// turns the booking.events queue into an append-only log file.
package queue

// Event kinds.
const (
	KindConfirmed  = "CONFIRMED"
	KindWaitlisted = "WAITLISTED"
	KindCancelled  = "CANCELLED"
	KindPromoted   = "PROMOTED"
)

// DefaultQueue is the durable queue booking events are published to.
const DefaultQueue = "booking.events"

// BookingEvent is published after a booking operation commits.  It
// carries enough for downstream consumers to log or notify without
// querying the primary database.
type BookingEvent struct {
	ID            string `json:"id"`
	Kind          string `json:"kind"`
	PNR           string `json:"pnr,omitempty"`
	TrainID       uint64 `json:"train_id"`
	TrainNumber   string `json:"train_number"`
	UserID        uint64 `json:"user_id"`
	PassengerName string `json:"passenger_name"`
	SeatNumber    int    `json:"seat_number,omitempty"`
	Position      int    `json:"position,omitempty"`
	// ReplacedPNR is set on PROMOTED events: the cancelled booking whose
	// seat was handed over.
	ReplacedPNR    string `json:"replaced_pnr,omitempty"`
	AvailableSeats int    `json:"available_seats"`
	OccurredAt     string `json:"occurred_at"`
}
