package mirror

import (
	"sort"
	"strings"

	"github.com/iliyamo/railway-reservation/internal/model"
)

// Query filters trains.  Empty fields match everything.  Source and
// Destination match case-insensitive substrings; Number matches a
// case-sensitive substring of the train number.
type Query struct {
	Source      string
	Destination string
	Number      string
}

func (q Query) matches(t model.Train) bool {
	if q.Source != "" && !strings.Contains(strings.ToLower(t.Source), strings.ToLower(q.Source)) {
		return false
	}
	if q.Destination != "" && !strings.Contains(strings.ToLower(t.Destination), strings.ToLower(q.Destination)) {
		return false
	}
	if q.Number != "" && !strings.Contains(t.Number, q.Number) {
		return false
	}
	return true
}

// Search returns the views matching q, ordered by train id.
func (x *Index) Search(q Query) []TrainView {
	all := x.List()
	out := all[:0]
	for _, v := range all {
		if q.matches(v.Train) {
			out = append(out, v)
		}
	}
	return out
}

// Summary aggregates the whole index for the admin report.
type Summary struct {
	Trains         int                 `json:"total_trains"`
	Bookings       int                 `json:"total_bookings"`
	TotalSeats     int                 `json:"total_seats"`
	AvailableSeats int                 `json:"available_seats"`
	BookedSeats    int                 `json:"booked_seats"`
	Waiting        int                 `json:"waiting_count"`
	Recent         []model.Reservation `json:"recent_bookings"`
}

// recentLimit caps Summary.Recent.
const recentLimit = 10

// Summary computes totals over every published view.  Recent lists the
// newest active bookings.
func (x *Index) Summary() Summary {
	var s Summary
	var recent []model.Reservation
	for _, v := range x.List() {
		s.Trains++
		s.Bookings += len(v.Reservations)
		s.TotalSeats += v.Train.TotalSeats
		s.AvailableSeats += v.Train.AvailableSeats
		s.Waiting += len(v.Waitlist)
		recent = append(recent, v.Reservations...)
	}
	s.BookedSeats = s.TotalSeats - s.AvailableSeats
	sort.SliceStable(recent, func(i, j int) bool {
		if recent[i].CreatedAt.Equal(recent[j].CreatedAt) {
			return recent[i].ID > recent[j].ID
		}
		return recent[i].CreatedAt.After(recent[j].CreatedAt)
	})
	if len(recent) > recentLimit {
		recent = recent[:recentLimit]
	}
	s.Recent = recent
	return s
}
