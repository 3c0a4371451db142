package query

import (
	"fmt"
	"strconv"
	"time"

	"github.com/your-username/click-lite-discover/internal/models"
)

// ParseRange converts a relative range such as "24h" or "14d" to a duration
func ParseRange(r string) (time.Duration, error) {
	if len(r) < 2 {
		return 0, fmt.Errorf("%w: range %q", ErrInvalidQuery, r)
	}
	n, err := strconv.Atoi(r[:len(r)-1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: range %q", ErrInvalidQuery, r)
	}

	var unit time.Duration
	switch r[len(r)-1] {
	case 's':
		unit = time.Second
	case 'm':
		unit = time.Minute
	case 'h':
		unit = time.Hour
	case 'd':
		unit = 24 * time.Hour
	case 'w':
		unit = 7 * 24 * time.Hour
	default:
		return 0, fmt.Errorf("%w: range unit in %q", ErrInvalidQuery, r)
	}
	return time.Duration(n) * unit, nil
}

// window resolves the time bounds of q relative to now. Absolute bounds win
// over a relative range; a missing bound stays zero.
func window(q models.QuerySpec, now time.Time) (start, end time.Time, err error) {
	if q.Start != nil || q.End != nil {
		if q.Start != nil {
			start = *q.Start
		}
		if q.End != nil {
			end = *q.End
		}
		return start, end, nil
	}
	if q.Range == "" {
		return start, end, nil
	}
	d, err := ParseRange(q.Range)
	if err != nil {
		return start, end, err
	}
	return now.Add(-d), now, nil
}
