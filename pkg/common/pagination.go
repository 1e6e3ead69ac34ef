package common

import "strconv"

type Page struct {
	Limit  int
	Offset int
}

// ParsePage reads limit/offset query values. Invalid or negative values fall
// back to the defaults; limit is capped at maxLimit when maxLimit > 0.
func ParsePage(limitStr, offsetStr string, defaultLimit, maxLimit int) Page {
	limit := defaultLimit
	if v, err := strconv.Atoi(limitStr); err == nil && v > 0 {
		limit = v
	}
	if maxLimit > 0 && limit > maxLimit {
		limit = maxLimit
	}

	offset := 0
	if v, err := strconv.Atoi(offsetStr); err == nil && v >= 0 {
		offset = v
	}

	return Page{Limit: limit, Offset: offset}
}
