package datarecording

import (
	"fmt"

	"github.com/sarchlab/gsclock/sim/cascade"
	"github.com/sarchlab/gsclock/sim/clock"
	"github.com/sarchlab/gsclock/sim/dispatch"
	"github.com/sarchlab/gsclock/sim/fixed"
	"github.com/sarchlab/gsclock/sim/hooking"
)

// HookRecorder is a hook that writes boundaries and degradation events to a
// DataRecorder. Attach it to the clock, the dispatcher and the cascade
// controller.
type HookRecorder struct {
	recorder DataRecorder
	tick     func() uint64
	minKind  dispatch.Kind
}

// NewHookRecorder creates the tables on the recorder. The tick function
// tells the recorder which tick an event without its own tick belongs to.
func NewHookRecorder(recorder DataRecorder, tick func() uint64) *HookRecorder {
	recorder.CreateTable(BoundaryTableName, BoundaryRecord{})
	recorder.CreateTable(DegradationTableName, DegradationRecord{})
	recorder.CreateTable(StepTableName, StepRecord{})

	return &HookRecorder{
		recorder: recorder,
		tick:     tick,
		minKind:  dispatch.Day,
	}
}

// WithMinKind sets the smallest boundary kind that is recorded. Days and
// longer are recorded by default.
func (h *HookRecorder) WithMinKind(k dispatch.Kind) *HookRecorder {
	h.minKind = k
	return h
}

// Func records the hook event if it is one the recorder knows.
func (h *HookRecorder) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case dispatch.HookPosAfterBoundary:
		h.recordBoundary(ctx)
	case clock.HookPosTickCapReached:
		tick, _ := ctx.Item.(uint64)
		acc, _ := ctx.Detail.(fixed.Point)

		h.recorder.InsertData(DegradationTableName, DegradationRecord{
			Tick:   tick,
			Kind:   DegradationTickCap,
			Detail: fmt.Sprintf("pending_hours=%d", acc.Floor()),
		})
	case cascade.HookPosDeferred:
		h.recordCascade(ctx, DegradationCascadeDeferred)
	case cascade.HookPosDropped:
		h.recordCascade(ctx, DegradationCascadeDropped)
	}
}

func (h *HookRecorder) recordBoundary(ctx hooking.HookCtx) {
	b, ok := ctx.Item.(dispatch.Boundary)
	if !ok || b.Kind < h.minKind {
		return
	}

	handlers, _ := ctx.Detail.(int)

	h.recorder.InsertData(BoundaryTableName, BoundaryRecord{
		Tick:     b.Tick,
		Kind:     b.Kind.String(),
		Period:   b.Index,
		Date:     b.Time.String(),
		Handlers: handlers,
	})
}

func (h *HookRecorder) recordCascade(ctx hooking.HookCtx, kind string) {
	var tick uint64
	if h.tick != nil {
		tick = h.tick()
	}

	h.recorder.InsertData(DegradationTableName, DegradationRecord{
		Tick:   tick,
		Kind:   kind,
		Detail: fmt.Sprintf("depth=%v pending=%v", ctx.Item, ctx.Detail),
	})
}

// RecordStep writes a step summary.
func (h *HookRecorder) RecordStep(r StepRecord) {
	h.recorder.InsertData(StepTableName, r)
}
