package engine

import "github.com/iliyamo/railway-reservation/internal/model"

// Kind names the result of an engine operation.
type Kind string

const (
	Confirmed  Kind = "CONFIRMED"
	Waitlisted Kind = "WAITLISTED"
	Released   Kind = "RELEASED"
	Adjusted   Kind = "ADJUSTED"
)

// Outcome is the successful result of Reserve, Release or
// AdjustCapacity.  Train holds the counters as committed.
//
//	Confirmed:  Reservation is the new booking.
//	Waitlisted: Entry is the queued request.
//	Released:   Reservation is the cancelled booking; Promoted is set when
//	            the head of the waiting list took over the seat.
//	Adjusted:   only Train is set.
type Outcome struct {
	Kind        Kind
	Train       model.Train
	Reservation *model.Reservation
	Entry       *model.WaitlistEntry
	Promoted    *model.Reservation
}

// PNR returns the confirmation code of the booking the outcome is about.
func (o Outcome) PNR() string {
	if o.Reservation == nil {
		return ""
	}
	return o.Reservation.PNR
}

// Seat returns the seat number of the booking, or 0.
func (o Outcome) Seat() int {
	if o.Reservation == nil {
		return 0
	}
	return o.Reservation.SeatNumber
}

// Position returns the waiting list position, or 0.
func (o Outcome) Position() int {
	if o.Entry == nil {
		return 0
	}
	return o.Entry.Position
}

// PromotedPNR returns the code issued to the promoted passenger, or "".
func (o Outcome) PromotedPNR() string {
	if o.Promoted == nil {
		return ""
	}
	return o.Promoted.PNR
}
