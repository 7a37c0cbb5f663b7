package domain

import "math"

// Rating returns the mean score rounded to one decimal place, or nil when
// count is zero.
func Rating(sum, count int64) *float64 {
	if count <= 0 {
		return nil
	}
	mean := float64(sum) / float64(count)
	r := math.Round(mean*10) / 10
	return &r
}

// RatingOf is Rating over a slice of scores.
func RatingOf(scores []int) *float64 {
	var sum int64
	for _, s := range scores {
		sum += int64(s)
	}
	return Rating(sum, int64(len(scores)))
}
