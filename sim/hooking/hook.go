// Package hooking lets observers attach to well-known positions inside the
// simulation core without the core knowing who is watching.
//
// The clock, the dispatcher, the cascade controller and the simulation each
// embed a HookableBase and publish their own positions, such as
// clock.HookPosTickCapReached. Recorders and counters attach as hooks.
package hooking

// HookPos names a place in the core where hooks fire. Positions are compared
// by pointer, so each one is declared once as a package variable.
type HookPos struct {
	Name string
}

// HookCtx describes one firing. Item is the main value at the position, for
// example a boundary or a tick. Detail carries whatever else the position
// documents.
type HookCtx struct {
	Domain Hookable
	Pos    *HookPos
	Item   any
	Detail any
}

// Hookable is implemented by every component that fires hooks.
type Hookable interface {
	AcceptHook(hook Hook)
	NumHooks() int
	Hooks() []Hook
}

// Hook receives every firing of the components it is attached to. It must
// not block; it runs on the simulation goroutine.
type Hook interface {
	Func(ctx HookCtx)
}

// HookFunc turns a function into a Hook. Register a pointer to it, since
// function values cannot be compared for the duplicate check.
type HookFunc func(ctx HookCtx)

// Func calls f.
func (f *HookFunc) Func(ctx HookCtx) {
	(*f)(ctx)
}

// HookableBase keeps the attached hooks. Embed it to implement Hookable.
type HookableBase struct {
	hooks []Hook
}

// NumHooks returns how many hooks are attached.
func (h *HookableBase) NumHooks() int {
	return len(h.hooks)
}

// Hooks returns the attached hooks in the order they fire.
func (h *HookableBase) Hooks() []Hook {
	return h.hooks
}

// AcceptHook attaches a hook. Attaching the same hook twice panics.
func (h *HookableBase) AcceptHook(hook Hook) {
	for _, existing := range h.hooks {
		if existing == hook {
			panic("hooking: hook attached twice")
		}
	}

	h.hooks = append(h.hooks, hook)
}

// InvokeHook fires ctx on every attached hook in attach order.
func (h *HookableBase) InvokeHook(ctx HookCtx) {
	for _, hook := range h.hooks {
		hook.Func(ctx)
	}
}
