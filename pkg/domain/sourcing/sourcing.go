package sourcing

import (
	"strconv"
	"strings"
	"sync"
	"time"
)

// StatusError is a rejection with an HTTP-aligned status code, raised
// by the sourcing service and translated at the API boundary.
type StatusError struct {
	Code   int
	Reason string
}

func (e *StatusError) Error() string {
	return strconv.Itoa(e.Code) + ": " + e.Reason
}

func Reject(code int, reason string) error {
	return &StatusError{Code: code, Reason: reason}
}

// EventStats counts received events per type over the last hour.
//
// Counts are bucketed by minute of the hour. A bucket is reset when
// its minute comes around again, so the sum over all buckets covers
// the trailing hour.
type EventStats struct {
	mu sync.Mutex

	counts     map[int]map[string]int
	lastMinute int

	// replaced in tests
	now func() time.Time
}

func NewEventStats() *EventStats {
	return &EventStats{
		counts:     map[int]map[string]int{},
		lastMinute: -1,
		now:        time.Now,
	}
}

// Increment counts one event of the given type.
func (s *EventStats) Increment(eventType string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	eventType = strings.ToLower(strings.TrimSpace(eventType))

	minute := s.now().Minute()
	if s.lastMinute != minute {
		s.counts[minute] = map[string]int{}
		s.lastMinute = minute
	}
	s.counts[minute][eventType] += 1
}

// Counts sums the buckets into a total and a per-type breakdown.
func (s *EventStats) Counts() (int, map[string]int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	perType := map[string]int{}
	for _, bucket := range s.counts {
		for eventType, count := range bucket {
			perType[eventType] += count
		}
	}

	total := 0
	for _, count := range perType {
		total += count
	}
	return total, perType
}
