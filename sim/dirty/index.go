package dirty

import "sort"

// index is an unordered set with O(1) insert and remove. Removal swaps the
// last element into the hole.
type index struct {
	ids []EntityID
	pos map[EntityID]int
}

func newIndex() index {
	return index{pos: make(map[EntityID]int)}
}

func (x *index) insert(id EntityID) bool {
	if _, ok := x.pos[id]; ok {
		return false
	}

	x.pos[id] = len(x.ids)
	x.ids = append(x.ids, id)

	return true
}

func (x *index) remove(id EntityID) bool {
	i, ok := x.pos[id]
	if !ok {
		return false
	}

	last := len(x.ids) - 1
	if i != last {
		moved := x.ids[last]
		x.ids[i] = moved
		x.pos[moved] = i
	}

	x.ids = x.ids[:last]
	delete(x.pos, id)

	return true
}

func (x *index) len() int {
	return len(x.ids)
}

func (x *index) sorted() []EntityID {
	out := make([]EntityID, len(x.ids))
	copy(out, x.ids)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	return out
}
