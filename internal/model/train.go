package model

import (
    "time"

    "github.com/shopspring/decimal"
)

// Train is the capacity-bounded resource that passengers reserve seats
// against.  It corresponds to a row in the `trains` table.  Only the
// allocation engine mutates TotalSeats, AvailableSeats and Version; the
// descriptive fields are fixed when the train is created.
//
// Fields:
//  ID             – primary key identifier.
//  Number         – unique public train number (e.g. "12951").
//  Name           – display name of the train.
//  Source         – departure station.
//  Destination    – arrival station.
//  Fare           – ticket price per seat.
//  DepartureTime  – free-form departure time (may be empty).
//  ArrivalTime    – free-form arrival time (may be empty).
//  TotalSeats     – number of seats on the train (>= 0).
//  AvailableSeats – seats not bound to an active reservation.
//  Version        – incremented by every committed engine mutation.
//  CreatedAt      – creation timestamp.
//  UpdatedAt      – last update timestamp.
type Train struct {
    ID             uint64          `json:"id"`              // trains.id
    Number         string          `json:"train_number"`    // trains.train_number
    Name           string          `json:"train_name"`      // trains.train_name
    Source         string          `json:"source"`          // trains.source
    Destination    string          `json:"destination"`     // trains.destination
    Fare           decimal.Decimal `json:"fare"`            // trains.fare
    DepartureTime  string          `json:"departure_time"`  // trains.departure_time
    ArrivalTime    string          `json:"arrival_time"`    // trains.arrival_time
    TotalSeats     int             `json:"total_seats"`     // trains.total_seats
    AvailableSeats int             `json:"available_seats"` // trains.available_seats
    Version        uint64          `json:"version"`         // trains.version
    CreatedAt      time.Time       `json:"created_at"`      // trains.created_at
    UpdatedAt      time.Time       `json:"updated_at"`      // trains.updated_at
}

// BookedSeats returns the number of seats currently held by active
// reservations.
func (t Train) BookedSeats() int { return t.TotalSeats - t.AvailableSeats }
