package common

// MostCommon returns the value with the highest number of occurrences.
// Ties go to the value seen first. An empty input yields the zero value.
func MostCommon[T comparable](values []T) T {
	var best T
	if len(values) == 0 {
		return best
	}

	counts := make(map[T]int, len(values))
	bestCount := 0
	for _, v := range values {
		counts[v]++
	}
	for _, v := range values {
		if c := counts[v]; c > bestCount {
			best = v
			bestCount = c
		}
	}
	return best
}
