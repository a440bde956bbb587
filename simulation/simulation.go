// Package simulation wires the clock, the dispatcher, the dirty tracker, the
// bucket scheduler and the cascade controller into one step pipeline.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sarchlab/gsclock/datarecording"
	"github.com/sarchlab/gsclock/monitoring"
	"github.com/sarchlab/gsclock/sim/bucket"
	"github.com/sarchlab/gsclock/sim/calendar"
	"github.com/sarchlab/gsclock/sim/cascade"
	"github.com/sarchlab/gsclock/sim/clock"
	"github.com/sarchlab/gsclock/sim/dirty"
	"github.com/sarchlab/gsclock/sim/dispatch"
	"github.com/sarchlab/gsclock/sim/hooking"
)

// Keys under which a step publishes into the state buffer.
const (
	ClockKey  = "clock"
	ReportKey = "report"
)

// ErrBarrierNotReached is returned by SynchronizeToTick when some peer has
// not confirmed a tick on the way to the target.
var ErrBarrierNotReached = errors.New("simulation: barrier not reached")

// HookPosStepEnd fires after a step is published. Item is the StepReport.
var HookPosStepEnd = &hooking.HookPos{Name: "StepEnd"}

// StateBuffer receives the published state. Put writes the staged side and
// Swap makes every staged value visible at once.
type StateBuffer interface {
	Register(key string, value any) error
	Put(key string, value any) error
	Load(key string) (any, error)
	Swap() int
}

// CommandApplier applies the commands scheduled for a tick.
type CommandApplier interface {
	ApplyCommands(tick uint64) error
}

// Barrier is a CommandApplier that knows whether a tick may run.
type Barrier interface {
	CommandApplier
	Ready(tick uint64) bool
}

// StepReport summarizes one step.
type StepReport struct {
	Step      uint64
	RealDelta float64
	Ticks     int
	FirstTick uint64
	LastTick  uint64
	Time      calendar.GameTime
	CapHit    bool
	Drained   int
	Deferred  int
	Dropped   int
	Pending   int

	// Waiting is set when the barrier stopped the step with whole hours
	// still pending.
	Waiting bool
}

// Simulation owns every component of the core. Step and the methods that
// change the simulation must be called from one goroutine. The Request
// methods, ClockSnapshot and LastReport may be called from any goroutine.
type Simulation struct {
	hooking.HookableBase

	id     string
	logger *slog.Logger

	cal        *calendar.Calendar
	clock      *clock.Clock
	dispatcher *dispatch.Dispatcher
	cascade    *cascade.Controller
	tracker    *dirty.Tracker
	scheduler  *bucket.Scheduler

	buffer  StateBuffer
	applier CommandApplier
	barrier Barrier

	recorder     datarecording.DataRecorder
	hookRecorder *datarecording.HookRecorder
	monitor      *monitoring.Monitor
	degradations *hooking.CountHook

	mailbox mailbox
	steps   uint64
}

// ID returns the unique name of the run.
func (s *Simulation) ID() string {
	return s.id
}

// Calendar returns the calendar.
func (s *Simulation) Calendar() *calendar.Calendar {
	return s.cal
}

// Clock returns the clock.
func (s *Simulation) Clock() *clock.Clock {
	return s.clock
}

// Dispatcher returns the boundary dispatcher.
func (s *Simulation) Dispatcher() *dispatch.Dispatcher {
	return s.dispatcher
}

// Cascade returns the cascade controller.
func (s *Simulation) Cascade() *cascade.Controller {
	return s.cascade
}

// Tracker returns the dirty-flag tracker.
func (s *Simulation) Tracker() *dirty.Tracker {
	return s.tracker
}

// Scheduler returns the bucket scheduler.
func (s *Simulation) Scheduler() *bucket.Scheduler {
	return s.scheduler
}

// DataRecorder returns the recorder, or nil when recording is off.
func (s *Simulation) DataRecorder() datarecording.DataRecorder {
	return s.recorder
}

// Monitor returns the monitor, or nil when monitoring is off.
func (s *Simulation) Monitor() *monitoring.Monitor {
	return s.monitor
}

// Steps returns how many steps have run.
func (s *Simulation) Steps() uint64 {
	return s.steps
}

// Step advances the simulation by a real-time delta. Queued control
// requests are applied first and the updates deferred by the previous step
// run next. Then the clock advances and, for each hour, the tick's commands
// are applied and the boundaries are dispatched. Finally the new state is
// published with a single swap.
//
// When the command applier is a Barrier, the step stops before the first
// tick that is not ready. The hours left stay pending for later steps.
//
// Errors returned by the command applier do not stop the step. They are
// joined and returned together with the report.
func (s *Simulation) Step(realDeltaSeconds float64) (StepReport, error) {
	if err := clock.CheckDelta(realDeltaSeconds); err != nil {
		return StepReport{}, err
	}

	s.applyRequests()

	if err := s.clock.CheckAdvance(realDeltaSeconds); err != nil {
		return StepReport{}, err
	}

	report, start := s.beginStep()
	report.RealDelta = realDeltaSeconds

	var cmdErrs []error

	n, err := s.clock.AdvanceWhile(realDeltaSeconds, s.readyFunc(&report),
		func(hb clock.HourBoundary) {
			if err := s.runTick(hb); err != nil {
				cmdErrs = append(cmdErrs, err)
			}
		})
	if err != nil {
		cmdErrs = append(cmdErrs, err)
	}

	report.Ticks = n
	s.endStep(&report, start)

	if err := s.publish(report); err != nil {
		cmdErrs = append(cmdErrs, err)
	}

	return report, errors.Join(cmdErrs...)
}

func (s *Simulation) readyFunc(r *StepReport) func(uint64) bool {
	if s.barrier == nil {
		return nil
	}

	return func(tick uint64) bool {
		if s.barrier.Ready(tick) {
			return true
		}

		r.Waiting = true
		s.logger.Debug("waiting for peers", "tick", tick)

		return false
	}
}

// SynchronizeToTick runs every hour up to target through the same path as
// Step, ignoring speed, pause and the tick cap. When the command applier is
// a Barrier, every tick on the way must be ready or nothing runs.
func (s *Simulation) SynchronizeToTick(target uint64) (StepReport, error) {
	current := s.clock.CurrentTick()
	if target < current {
		return StepReport{}, fmt.Errorf("%w: at %d, asked for %d",
			clock.ErrBackwardSync, current, target)
	}

	if s.barrier != nil {
		for t := current + 1; t <= target; t++ {
			if !s.barrier.Ready(t) {
				return StepReport{}, fmt.Errorf("%w: tick %d",
					ErrBarrierNotReached, t)
			}
		}
	}

	s.applyRequests()

	report, start := s.beginStep()

	var cmdErrs []error

	n, err := s.clock.SynchronizeToTickEach(target, func(hb clock.HourBoundary) {
		if err := s.runTick(hb); err != nil {
			cmdErrs = append(cmdErrs, err)
		}
	})
	if err != nil {
		return StepReport{}, err
	}

	report.Ticks = n
	s.endStep(&report, start)

	if err := s.publish(report); err != nil {
		cmdErrs = append(cmdErrs, err)
	}

	return report, errors.Join(cmdErrs...)
}

type stepStart struct {
	capHits uint64
	cascade cascade.Stats
}

func (s *Simulation) beginStep() (StepReport, stepStart) {
	s.steps++

	start := stepStart{
		capHits: s.clock.CapHits(),
		cascade: s.cascade.Stats(),
	}
	drained := s.cascade.BeginStep()

	return StepReport{
		Step:      s.steps,
		FirstTick: s.clock.CurrentTick() + 1,
		Drained:   drained,
	}, start
}

func (s *Simulation) endStep(r *StepReport, start stepStart) {
	after := s.cascade.Stats()

	r.LastTick = s.clock.CurrentTick()
	if r.Ticks == 0 {
		r.FirstTick = r.LastTick
	}

	r.Time = s.clock.CurrentTime()
	r.CapHit = s.clock.CapHits() != start.capHits
	r.Deferred = int(after.Deferred - start.cascade.Deferred)
	r.Dropped = int(after.Dropped - start.cascade.Dropped)
	r.Pending = s.cascade.Pending()
}

func (s *Simulation) runTick(hb clock.HourBoundary) error {
	var err error
	if s.applier != nil {
		err = s.applier.ApplyCommands(hb.Tick)
	}

	s.dispatcher.Dispatch(hb)

	return err
}

func (s *Simulation) publish(r StepReport) error {
	if s.hookRecorder != nil {
		s.hookRecorder.RecordStep(datarecording.StepRecord{
			Step:      r.Step,
			RealDelta: r.RealDelta,
			Ticks:     r.Ticks,
			FirstTick: r.FirstTick,
			LastTick:  r.LastTick,
			CapHit:    r.CapHit,
			Drained:   r.Drained,
			Deferred:  r.Deferred,
		})
	}

	err := s.putState(r)

	s.InvokeHook(hooking.HookCtx{
		Domain: s,
		Pos:    HookPosStepEnd,
		Item:   r,
	})

	return err
}

func (s *Simulation) putState(r StepReport) error {
	if err := s.buffer.Put(ClockKey, s.clock.Snapshot()); err != nil {
		return fmt.Errorf("simulation: publishing clock: %w", err)
	}

	if err := s.buffer.Put(ReportKey, r); err != nil {
		return fmt.Errorf("simulation: publishing report: %w", err)
	}

	s.buffer.Swap()

	return nil
}

func (s *Simulation) registerPublished() error {
	if err := s.buffer.Register(ClockKey, s.clock.Snapshot()); err != nil {
		return err
	}

	return s.buffer.Register(ReportKey, StepReport{
		LastTick: s.clock.CurrentTick(),
		Time:     s.clock.CurrentTime(),
	})
}

func (s *Simulation) invokeGuarded(h dispatch.Handler, b dispatch.Boundary) {
	_ = s.cascade.RunGuarded(func() { h.Handle(b) })
}

func (s *Simulation) tickElapsed(dispatch.Boundary) {
	s.tracker.TickDay()
}

// RunGuarded runs an update triggered by another update. Past the cascade
// depth limit the update waits for the next step.
func (s *Simulation) RunGuarded(fn func()) error {
	return s.cascade.RunGuarded(fn)
}

// ClockSnapshot returns the clock state published by the last step.
func (s *Simulation) ClockSnapshot() (clock.Snapshot, error) {
	v, err := s.buffer.Load(ClockKey)
	if err != nil {
		return clock.Snapshot{}, err
	}

	snap, ok := v.(clock.Snapshot)
	if !ok {
		return clock.Snapshot{}, fmt.Errorf(
			"simulation: published clock has type %T", v)
	}

	return snap, nil
}

// LastReport returns the report published by the last step.
func (s *Simulation) LastReport() (StepReport, error) {
	v, err := s.buffer.Load(ReportKey)
	if err != nil {
		return StepReport{}, err
	}

	r, ok := v.(StepReport)
	if !ok {
		return StepReport{}, fmt.Errorf(
			"simulation: published report has type %T", v)
	}

	return r, nil
}

// DegradationCounts returns how many times the tick cap was hit and
// cascade updates were deferred or dropped, keyed by hook position name.
func (s *Simulation) DegradationCounts() map[string]uint64 {
	out := make(map[string]uint64)
	for _, name := range s.degradations.Names() {
		out[name] = s.degradations.Count(name)
	}

	return out
}

// Terminate flushes the recorder and stops the monitor.
func (s *Simulation) Terminate() error {
	var errs []error

	if s.monitor != nil {
		errs = append(errs, s.monitor.StopServer(context.Background()))
	}

	if s.recorder != nil {
		s.recorder.Flush()
		errs = append(errs, s.recorder.Close())
	}

	return errors.Join(errs...)
}
