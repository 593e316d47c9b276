package model

import "time"

// Reservation statuses.  A reservation is created ACTIVE and moves to
// CANCELLED exactly once; rows are never deleted.
const (
    StatusActive    = "ACTIVE"
    StatusCancelled = "CANCELLED"
)

// Passenger carries the traveller details attached to a reservation or a
// waiting list entry.  The allocation engine treats it as opaque; the
// booking handlers validate it.
type Passenger struct {
    Name   string `json:"name"`
    Age    int    `json:"age"`
    Gender string `json:"gender"`
    Phone  string `json:"phone"`
}

// Reservation records a granted claim on one seat of a train.  It
// corresponds to a row in the `bookings` table.
//
// Fields:
//  ID         – primary key identifier.
//  PNR        – confirmation code handed to the passenger (unique).
//  TrainID    – train the seat belongs to.
//  HolderID   – principal that owns the reservation.
//  Passenger  – traveller details.
//  SeatNumber – seat bound to the reservation while it is ACTIVE.
//  Status     – ACTIVE or CANCELLED.
//  CreatedAt  – creation timestamp.
//  UpdatedAt  – last update timestamp.
type Reservation struct {
    ID         uint64    `json:"id"`          // bookings.id
    PNR        string    `json:"pnr"`         // bookings.pnr
    TrainID    uint64    `json:"train_id"`    // bookings.train_id
    HolderID   uint64    `json:"user_id"`     // bookings.user_id
    Passenger  Passenger `json:"passenger"`   // bookings.passenger_*
    SeatNumber int       `json:"seat_number"` // bookings.seat_number
    Status     string    `json:"status"`      // bookings.status
    CreatedAt  time.Time `json:"created_at"`  // bookings.created_at
    UpdatedAt  time.Time `json:"updated_at"`  // bookings.updated_at
}

// Active reports whether the reservation still holds its seat.
func (r Reservation) Active() bool { return r.Status == StatusActive }
