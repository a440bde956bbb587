package simulation

import (
	"github.com/sarchlab/gsclock/sim/dirty"
	"github.com/sarchlab/gsclock/sim/dispatch"
)

// On registers fn for every boundary of kind.
func (s *Simulation) On(kind dispatch.Kind, fn func(dispatch.Boundary)) (dispatch.HandlerID, error) {
	if fn == nil {
		return 0, dispatch.ErrNilHandler
	}

	return s.dispatcher.Register(kind, dispatch.HandlerFunc(fn))
}

// Drain registers a handler that, on every boundary of kind, processes the
// entities dirty in cat in ascending order. The bit is cleared before
// process runs, so a mark made while processing survives for the next
// boundary. If process fails the entity is marked again and stays dirty.
// The elapsed counter is reset only on success. Entities cleared or removed
// earlier in the same pass are skipped.
func (s *Simulation) Drain(
	kind dispatch.Kind,
	cat dirty.Category,
	process func(id dirty.EntityID, b dispatch.Boundary) error,
) (dispatch.HandlerID, error) {
	if !cat.Valid() {
		return 0, dirty.ErrInvalidCategory
	}

	if process == nil {
		return 0, dispatch.ErrNilHandler
	}

	return s.On(kind, func(b dispatch.Boundary) {
		for _, id := range s.tracker.Drain(cat) {
			if !s.tracker.IsDirty(id, cat) {
				continue
			}

			s.tracker.Clear(id, cat)

			if err := process(id, b); err != nil {
				_ = s.tracker.MarkDirty(id, cat)

				s.logger.Warn("dirty entity not processed",
					"entity", id,
					"category", cat,
					"tick", b.Tick,
					"err", err,
				)

				continue
			}

			s.tracker.ResetElapsed(id, cat)
		}
	})
}

// OnBucketDay registers fn to run, on every day boundary, for each entity
// whose bucket is due that day, in ascending order.
func (s *Simulation) OnBucketDay(
	fn func(id dirty.EntityID, b dispatch.Boundary),
) (dispatch.HandlerID, error) {
	if fn == nil {
		return 0, dispatch.ErrNilHandler
	}

	return s.On(dispatch.Day, func(b dispatch.Boundary) {
		for _, id := range s.scheduler.Due(s.cal.DayOfYear(b.Time)) {
			fn(id, b)
		}
	})
}

// TrackElapsed counts days since cat was last processed for each entity and
// marks the entity dirty once thresholdDays have passed.
func (s *Simulation) TrackElapsed(cat dirty.Category, thresholdDays uint32) error {
	return s.tracker.TrackElapsed(cat, thresholdDays)
}

// AddEntity starts tracking an entity and gives it a bucket.
func (s *Simulation) AddEntity(id dirty.EntityID) bool {
	added := s.tracker.Add(id)
	s.scheduler.Add(id)

	return added
}

// RemoveEntity stops tracking an entity.
func (s *Simulation) RemoveEntity(id dirty.EntityID) bool {
	removed := s.tracker.Remove(id)
	s.scheduler.Remove(id)

	return removed
}

// MarkDirty marks an entity dirty in a category.
func (s *Simulation) MarkDirty(id dirty.EntityID, cat dirty.Category) error {
	return s.tracker.MarkDirty(id, cat)
}
