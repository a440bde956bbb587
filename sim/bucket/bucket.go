// Package bucket spreads expensive yearly work over the days of the year.
// Every entity gets a fixed home day derived from its ID.
package bucket

import (
	"errors"
	"fmt"
	"sort"

	"github.com/sarchlab/gsclock/sim/dirty"
)

// ErrInvalidBucketCount is returned for a bucket count below one.
var ErrInvalidBucketCount = errors.New("bucket: bucket count must be positive")

// BucketFor returns the home bucket of an entity. A bucket count below one
// is treated as a single bucket.
func BucketFor(id dirty.EntityID, bucketCount int) int {
	if bucketCount < 1 {
		return 0
	}

	return int(uint64(id) % uint64(bucketCount))
}

// IsScheduledToday reports whether an entity's bucket is due on a day. Days
// past the bucket count wrap around. With a bucket count below one every
// entity is due every day.
func IsScheduledToday(id dirty.EntityID, dayOfYear, bucketCount int) bool {
	return BucketFor(id, bucketCount) == dayIndex(dayOfYear, bucketCount)
}

func dayIndex(day, bucketCount int) int {
	if bucketCount < 1 {
		return 0
	}

	d := day % bucketCount
	if d < 0 {
		d += bucketCount
	}

	return d
}

// Scheduler keeps the entities of each bucket so the daily work can be
// looked up without scanning every entity.
type Scheduler struct {
	buckets []map[dirty.EntityID]struct{}
	size    int
}

// New creates a scheduler with bucketCount buckets, usually the number of
// days in a year.
func New(bucketCount int) (*Scheduler, error) {
	if bucketCount < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBucketCount, bucketCount)
	}

	s := &Scheduler{
		buckets: make([]map[dirty.EntityID]struct{}, bucketCount),
	}

	for i := range s.buckets {
		s.buckets[i] = make(map[dirty.EntityID]struct{})
	}

	return s, nil
}

// BucketCount returns the number of buckets.
func (s *Scheduler) BucketCount() int {
	return len(s.buckets)
}

// Len returns the number of scheduled entities.
func (s *Scheduler) Len() int {
	return s.size
}

// Add schedules an entity in its home bucket. It returns false if the entity
// was already scheduled.
func (s *Scheduler) Add(id dirty.EntityID) bool {
	b := s.buckets[BucketFor(id, len(s.buckets))]
	if _, ok := b[id]; ok {
		return false
	}

	b[id] = struct{}{}
	s.size++

	return true
}

// Remove unschedules an entity.
func (s *Scheduler) Remove(id dirty.EntityID) bool {
	b := s.buckets[BucketFor(id, len(s.buckets))]
	if _, ok := b[id]; !ok {
		return false
	}

	delete(b, id)
	s.size--

	return true
}

// Due returns the entities scheduled on a day, ascending.
func (s *Scheduler) Due(dayOfYear int) []dirty.EntityID {
	b := s.buckets[dayIndex(dayOfYear, len(s.buckets))]

	out := make([]dirty.EntityID, 0, len(b))
	for id := range b {
		out = append(out, id)
	}

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	return out
}

// Load returns how many entities are scheduled on a day.
func (s *Scheduler) Load(dayOfYear int) int {
	return len(s.buckets[dayIndex(dayOfYear, len(s.buckets))])
}
