// Package dispatch fans hour ticks out to hourly, daily, weekly, monthly and
// yearly handlers.
package dispatch

import (
	"errors"
	"fmt"

	"github.com/sarchlab/gsclock/sim/calendar"
	"github.com/sarchlab/gsclock/sim/clock"
	"github.com/sarchlab/gsclock/sim/hooking"
)

// ErrNilHandler is returned when registering a nil handler.
var ErrNilHandler = errors.New("dispatch: nil handler")

// Hook positions fired around the handlers of each boundary. Item is the
// Boundary.
var (
	HookPosBeforeBoundary = &hooking.HookPos{Name: "BeforeBoundary"}
	HookPosAfterBoundary  = &hooking.HookPos{Name: "AfterBoundary"}
)

// Boundary describes a period that has just started.
type Boundary struct {
	Kind Kind
	// Index is the number of the new period: total hours, day number, week
	// number, month number or year.
	Index int64
	Tick  uint64
	Time  calendar.GameTime
}

// Handler reacts to a boundary.
type Handler interface {
	Handle(b Boundary)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(b Boundary)

// Handle calls f.
func (f HandlerFunc) Handle(b Boundary) {
	f(b)
}

// HandlerID identifies a registration.
type HandlerID uint64

// Invoker runs a handler for a boundary. The default invoker calls the
// handler directly. The simulation wraps handlers with its cascade guard.
type Invoker func(h Handler, b Boundary)

func directInvoker(h Handler, b Boundary) {
	h.Handle(b)
}

type registration struct {
	id      HandlerID
	handler Handler
}

// A Dispatcher keeps ordered handler lists per boundary kind.
type Dispatcher struct {
	hooking.HookableBase

	cal      *calendar.Calendar
	handlers [NumKinds][]registration
	kindOf   map[HandlerID]Kind
	nextID   HandlerID
	invoker  Invoker
}

// New creates a dispatcher for the given calendar.
func New(cal *calendar.Calendar) *Dispatcher {
	return &Dispatcher{
		cal:     cal,
		kindOf:  make(map[HandlerID]Kind),
		invoker: directInvoker,
	}
}

// SetInvoker replaces how handlers are called. A nil invoker restores direct
// calls.
func (d *Dispatcher) SetInvoker(inv Invoker) {
	if inv == nil {
		inv = directInvoker
	}

	d.invoker = inv
}

// Register appends a handler to the list of a kind. Handlers of one kind run
// in registration order.
func (d *Dispatcher) Register(kind Kind, h Handler) (HandlerID, error) {
	if !kind.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrInvalidKind, int(kind))
	}

	if h == nil {
		return 0, ErrNilHandler
	}

	d.nextID++
	id := d.nextID

	d.handlers[kind] = append(d.handlers[kind], registration{id: id, handler: h})
	d.kindOf[id] = kind

	return id, nil
}

// Unregister removes a handler. It returns false if the ID is unknown.
func (d *Dispatcher) Unregister(id HandlerID) bool {
	kind, ok := d.kindOf[id]
	if !ok {
		return false
	}

	delete(d.kindOf, id)

	// Build a new slice so a dispatch in progress keeps its own view.
	old := d.handlers[kind]
	list := make([]registration, 0, len(old)-1)

	for _, r := range old {
		if r.id != id {
			list = append(list, r)
		}
	}

	d.handlers[kind] = list

	return true
}

// NumHandlers returns how many handlers are registered for a kind.
func (d *Dispatcher) NumHandlers(kind Kind) int {
	if !kind.Valid() {
		return 0
	}

	return len(d.handlers[kind])
}

// OnHour registers fn as an hourly handler.
func (d *Dispatcher) OnHour(fn func(Boundary)) HandlerID {
	return d.mustRegister(Hour, fn)
}

// OnDay registers fn as a daily handler.
func (d *Dispatcher) OnDay(fn func(Boundary)) HandlerID {
	return d.mustRegister(Day, fn)
}

// OnWeek registers fn as a weekly handler.
func (d *Dispatcher) OnWeek(fn func(Boundary)) HandlerID {
	return d.mustRegister(Week, fn)
}

// OnMonth registers fn as a monthly handler.
func (d *Dispatcher) OnMonth(fn func(Boundary)) HandlerID {
	return d.mustRegister(Month, fn)
}

// OnYear registers fn as a yearly handler.
func (d *Dispatcher) OnYear(fn func(Boundary)) HandlerID {
	return d.mustRegister(Year, fn)
}

func (d *Dispatcher) mustRegister(kind Kind, fn func(Boundary)) HandlerID {
	if fn == nil {
		panic(ErrNilHandler)
	}

	id, err := d.Register(kind, HandlerFunc(fn))
	if err != nil {
		panic(err)
	}

	return id
}

// Boundaries returns the boundaries an hour step crosses, in dispatch order.
// A week starts on every day whose day number is a multiple of seven.
func (d *Dispatcher) Boundaries(hb clock.HourBoundary) []Boundary {
	t := hb.Time

	out := make([]Boundary, 0, NumKinds)
	out = append(out, Boundary{
		Kind: Hour, Index: hb.TotalHours, Tick: hb.Tick, Time: t,
	})

	if t.Hour != 0 {
		return out
	}

	dayNumber := d.cal.DayNumber(t)
	out = append(out, Boundary{
		Kind: Day, Index: dayNumber, Tick: hb.Tick, Time: t,
	})

	if floorMod(dayNumber, 7) == 0 {
		out = append(out, Boundary{
			Kind: Week, Index: floorDiv(dayNumber, 7), Tick: hb.Tick, Time: t,
		})
	}

	if t.Day != 1 {
		return out
	}

	out = append(out, Boundary{
		Kind: Month, Index: d.cal.MonthNumber(t), Tick: hb.Tick, Time: t,
	})

	if t.Month == 1 {
		out = append(out, Boundary{
			Kind: Year, Index: int64(t.Year), Tick: hb.Tick, Time: t,
		})
	}

	return out
}

// Dispatch runs the handlers of every boundary the hour step crosses and
// returns those boundaries. Handlers registered or removed while a boundary
// is being dispatched take effect from the next boundary.
func (d *Dispatcher) Dispatch(hb clock.HourBoundary) []Boundary {
	bs := d.Boundaries(hb)

	for _, b := range bs {
		d.dispatchOne(b)
	}

	return bs
}

func (d *Dispatcher) dispatchOne(b Boundary) {
	list := d.handlers[b.Kind]

	d.InvokeHook(hooking.HookCtx{
		Domain: d,
		Pos:    HookPosBeforeBoundary,
		Item:   b,
	})

	for _, r := range list {
		d.invoker(r.handler, b)
	}

	d.InvokeHook(hooking.HookCtx{
		Domain: d,
		Pos:    HookPosAfterBoundary,
		Item:   b,
		Detail: len(list),
	})
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}

	return q
}

func floorMod(a, b int64) int64 {
	return a - floorDiv(a, b)*b
}
