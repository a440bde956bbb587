package hooking

import (
	"sync"
)

// CountHook counts how many times each hook position fired. The simulation
// uses it to record degradation events such as deferred cascades and capped
// steps.
type CountHook struct {
	lock sync.Mutex

	filter   func(ctx HookCtx) bool
	posNames []string
	counts   map[string]uint64
}

// NewCountHook creates a CountHook. A nil filter counts everything.
func NewCountHook(filter func(ctx HookCtx) bool) *CountHook {
	return &CountHook{
		filter: filter,
		counts: make(map[string]uint64),
	}
}

// Func counts the position of the hook context.
func (h *CountHook) Func(ctx HookCtx) {
	if h.filter != nil && !h.filter(ctx) {
		return
	}

	h.lock.Lock()
	defer h.lock.Unlock()

	name := ctx.Pos.Name
	if _, ok := h.counts[name]; !ok {
		h.posNames = append(h.posNames, name)
	}

	h.counts[name]++
}

// Names returns the positions seen so far, in first-seen order.
func (h *CountHook) Names() []string {
	h.lock.Lock()
	defer h.lock.Unlock()

	return append([]string(nil), h.posNames...)
}

// Count returns how many times the named position fired.
func (h *CountHook) Count(posName string) uint64 {
	h.lock.Lock()
	defer h.lock.Unlock()

	return h.counts[posName]
}
