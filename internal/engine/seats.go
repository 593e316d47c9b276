package engine

import "sort"

// lowestFreeSeat returns the smallest seat number in 1..total that is
// not in held.  ok is false when every seat is taken.
func lowestFreeSeat(held []int, total int) (seat int, ok bool) {
	taken := make([]int, 0, len(held))
	for _, s := range held {
		if s >= 1 && s <= total {
			taken = append(taken, s)
		}
	}
	sort.Ints(taken)
	next := 1
	for _, s := range taken {
		if s > next {
			break
		}
		if s == next {
			next++
		}
	}
	if next > total {
		return 0, false
	}
	return next, true
}

func highestSeat(held []int) int {
	max := 0
	for _, s := range held {
		if s > max {
			max = s
		}
	}
	return max
}
