// Package dirty records which entities changed since they were last
// processed, so periodic systems only touch what needs work.
package dirty

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// MaxCategories is the number of categories a Mask can hold.
const MaxCategories = 32

// Errors returned by the tracker. A failed call changes nothing.
var (
	ErrUnknownEntity    = errors.New("dirty: unknown entity")
	ErrInvalidCategory  = errors.New("dirty: invalid category")
	ErrInvalidThreshold = errors.New("dirty: elapsed threshold must be positive")
)

// EntityID identifies an entity.
type EntityID uint32

// Category is a kind of change, such as economy or population.
type Category uint8

// Valid reports whether c fits in a Mask.
func (c Category) Valid() bool {
	return c < MaxCategories
}

// Mask holds one dirty bit per category.
type Mask uint32

// Has reports whether the bit of c is set.
func (m Mask) Has(c Category) bool {
	return c.Valid() && m&(1<<c) != 0
}

type elapsedCounter struct {
	threshold uint32
	days      map[EntityID]uint32
}

// Tracker keeps a dirty bitmask per entity and, for each category, the set
// of dirty entities.
type Tracker struct {
	flags   map[EntityID]Mask
	sets    [MaxCategories]index
	elapsed map[Category]*elapsedCounter
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	t := &Tracker{
		flags:   make(map[EntityID]Mask),
		elapsed: make(map[Category]*elapsedCounter),
	}

	for i := range t.sets {
		t.sets[i] = newIndex()
	}

	return t
}

// Add starts tracking an entity with no flags set. It returns false if the
// entity is already tracked.
func (t *Tracker) Add(id EntityID) bool {
	if _, ok := t.flags[id]; ok {
		return false
	}

	t.flags[id] = 0

	for _, e := range t.elapsed {
		e.days[id] = 0
	}

	return true
}

// Remove stops tracking an entity and drops it from every category.
func (t *Tracker) Remove(id EntityID) bool {
	m, ok := t.flags[id]
	if !ok {
		return false
	}

	for c := Category(0); c < MaxCategories; c++ {
		if m.Has(c) {
			t.sets[c].remove(id)
		}
	}

	for _, e := range t.elapsed {
		delete(e.days, id)
	}

	delete(t.flags, id)

	return true
}

// Has reports whether the entity is tracked.
func (t *Tracker) Has(id EntityID) bool {
	_, ok := t.flags[id]
	return ok
}

// Len returns the number of tracked entities.
func (t *Tracker) Len() int {
	return len(t.flags)
}

// MarkDirty sets the category bit of an entity and adds it to the category
// set. Marking an already dirty entity does nothing.
func (t *Tracker) MarkDirty(id EntityID, cat Category) error {
	if err := t.check(id, cat); err != nil {
		return err
	}

	t.mark(id, cat)

	return nil
}

// MarkAllInSet marks every listed entity. If any entity is unknown nothing
// is marked.
func (t *Tracker) MarkAllInSet(ids []EntityID, cat Category) error {
	if !cat.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidCategory, cat)
	}

	for _, id := range ids {
		if !t.Has(id) {
			return fmt.Errorf("%w: %d", ErrUnknownEntity, id)
		}
	}

	for _, id := range ids {
		t.mark(id, cat)
	}

	return nil
}

func (t *Tracker) mark(id EntityID, cat Category) {
	m := t.flags[id]
	if m.Has(cat) {
		return
	}

	t.flags[id] = m | 1<<cat
	t.sets[cat].insert(id)
}

func (t *Tracker) check(id EntityID, cat Category) error {
	if !cat.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidCategory, cat)
	}

	if !t.Has(id) {
		return fmt.Errorf("%w: %d", ErrUnknownEntity, id)
	}

	return nil
}

// IsDirty reports whether the entity has the category bit set.
func (t *Tracker) IsDirty(id EntityID, cat Category) bool {
	return t.flags[id].Has(cat)
}

// Flags returns the full mask of an entity.
func (t *Tracker) Flags(id EntityID) Mask {
	return t.flags[id]
}

// Count returns the number of entities dirty in a category.
func (t *Tracker) Count(cat Category) int {
	if !cat.Valid() {
		return 0
	}

	return t.sets[cat].len()
}

// Drain returns the entities dirty in a category in ascending order. It does
// not clear anything. The processing system calls Clear for each entity it
// handled, so a failure leaves the entity dirty for the next pass.
func (t *Tracker) Drain(cat Category) []EntityID {
	if !cat.Valid() {
		return nil
	}

	return t.sets[cat].sorted()
}

// Clear resets the category bit of an entity.
func (t *Tracker) Clear(id EntityID, cat Category) {
	m, ok := t.flags[id]
	if !ok || !m.Has(cat) {
		return
	}

	t.flags[id] = m &^ (1 << cat)
	t.sets[cat].remove(id)
}

// TrackElapsed makes a category also become dirty after thresholdDays days
// without a reset. All tracked entities start counting from zero.
func (t *Tracker) TrackElapsed(cat Category, thresholdDays uint32) error {
	if !cat.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidCategory, cat)
	}

	if thresholdDays == 0 {
		return ErrInvalidThreshold
	}

	e := &elapsedCounter{
		threshold: thresholdDays,
		days:      make(map[EntityID]uint32, len(t.flags)),
	}

	for id := range t.flags {
		e.days[id] = 0
	}

	t.elapsed[cat] = e

	return nil
}

// ElapsedCategories returns the categories with elapsed counters, ascending.
func (t *Tracker) ElapsedCategories() []Category {
	cats := make([]Category, 0, len(t.elapsed))
	for c := range t.elapsed {
		cats = append(cats, c)
	}

	sort.Slice(cats, func(i, j int) bool { return cats[i] < cats[j] })

	return cats
}

// TickDay advances every elapsed counter by one day and marks the entities
// that reached their threshold. It returns how many entities were newly
// marked.
func (t *Tracker) TickDay() int {
	marked := 0

	for _, cat := range t.ElapsedCategories() {
		e := t.elapsed[cat]

		for id, d := range e.days {
			if d < math.MaxUint32 {
				d++
				e.days[id] = d
			}

			if d >= e.threshold && !t.flags[id].Has(cat) {
				t.mark(id, cat)
				marked++
			}
		}
	}

	return marked
}

// ResetElapsed sets the elapsed counter of an entity back to zero, usually
// after the category was processed.
func (t *Tracker) ResetElapsed(id EntityID, cat Category) {
	e, ok := t.elapsed[cat]
	if !ok {
		return
	}

	if _, tracked := e.days[id]; tracked {
		e.days[id] = 0
	}
}

// DaysSince returns the elapsed counter of an entity. The second result is
// false if the category has no counter or the entity is unknown.
func (t *Tracker) DaysSince(id EntityID, cat Category) (uint32, bool) {
	e, ok := t.elapsed[cat]
	if !ok {
		return 0, false
	}

	d, ok := e.days[id]

	return d, ok
}
