package model

import "time"

// WaitlistEntry is a pending request queued while a train has no free
// seat.  Positions are 1-based and contiguous per train; the entry at
// position 1 is promoted first.  It corresponds to a row in the
// `waiting_list` table.
type WaitlistEntry struct {
    ID        uint64    `json:"id"`        // waiting_list.id
    TrainID   uint64    `json:"train_id"`  // waiting_list.train_id
    HolderID  uint64    `json:"user_id"`   // waiting_list.user_id
    Passenger Passenger `json:"passenger"` // waiting_list.passenger_*
    Position  int       `json:"position"`  // waiting_list.position
    AddedAt   time.Time `json:"added_at"`  // waiting_list.added_at
}
