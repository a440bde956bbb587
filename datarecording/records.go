package datarecording

// Table names used by HookRecorder.
const (
	BoundaryTableName    = "boundary"
	DegradationTableName = "degradation"
	StepTableName        = "step"
)

// Degradation kinds.
const (
	DegradationTickCap         = "tick_cap"
	DegradationCascadeDeferred = "cascade_deferred"
	DegradationCascadeDropped  = "cascade_dropped"
)

// BoundaryRecord is one dispatched boundary.
type BoundaryRecord struct {
	Tick     uint64
	Kind     string
	Period   int64
	Date     string
	Handlers int
}

// DegradationRecord is one event where the simulation fell behind or cut a
// cascade short.
type DegradationRecord struct {
	Tick   uint64
	Kind   string
	Detail string
}

// StepRecord summarizes one simulation step.
type StepRecord struct {
	Step      uint64
	RealDelta float64
	Ticks     int
	FirstTick uint64
	LastTick  uint64
	CapHit    bool
	Drained   int
	Deferred  int
}
