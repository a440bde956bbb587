package simulation

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/rs/xid"

	"github.com/sarchlab/gsclock/datarecording"
	"github.com/sarchlab/gsclock/monitoring"
	"github.com/sarchlab/gsclock/sim/bucket"
	"github.com/sarchlab/gsclock/sim/calendar"
	"github.com/sarchlab/gsclock/sim/cascade"
	"github.com/sarchlab/gsclock/sim/clock"
	"github.com/sarchlab/gsclock/sim/dirty"
	"github.com/sarchlab/gsclock/sim/dispatch"
	"github.com/sarchlab/gsclock/sim/hooking"
	"github.com/sarchlab/gsclock/sim/state"
)

// Builder can be used to build a simulation.
type Builder struct {
	cal             *calendar.Calendar
	start           calendar.GameTime
	maxTicksPerStep int
	hoursPerSecond  float64
	speed           int
	paused          bool
	cascadeCfg      cascade.Config
	bucketCount     int
	logger          *slog.Logger
	logHooks        bool

	buffer  StateBuffer
	applier CommandApplier

	recording *datarecording.RecorderConfig
	recorder  datarecording.DataRecorder

	monitorOn   bool
	monitorPort int
	openBrowser bool
}

// MakeBuilder creates a new builder with the values of DefaultConfig.
func MakeBuilder() Builder {
	return Builder{
		start:           calendar.Date(1444, 11, 11, 0),
		maxTicksPerStep: clock.DefaultMaxTicksPerStep,
		hoursPerSecond:  1,
		speed:           1,
		cascadeCfg:      cascade.DefaultConfig(),
	}
}

// WithCalendar sets the calendar.
func (b Builder) WithCalendar(cal *calendar.Calendar) Builder {
	b.cal = cal
	return b
}

// WithStartTime sets the initial date.
func (b Builder) WithStartTime(t calendar.GameTime) Builder {
	b.start = t
	return b
}

// WithMaxTicksPerStep sets how many hours one step may simulate. Zero
// removes the cap.
func (b Builder) WithMaxTicksPerStep(n int) Builder {
	b.maxTicksPerStep = n
	return b
}

// WithHoursPerSecond sets how many hours one real second is worth at speed 1.
func (b Builder) WithHoursPerSecond(h float64) Builder {
	b.hoursPerSecond = h
	return b
}

// WithSpeed sets the initial speed multiplier.
func (b Builder) WithSpeed(speed int) Builder {
	b.speed = speed
	return b
}

// WithPaused makes the simulation start paused.
func (b Builder) WithPaused() Builder {
	b.paused = true
	return b
}

// WithMaxCascadeDepth sets how deeply updates may trigger other updates
// within one step.
func (b Builder) WithMaxCascadeDepth(depth int) Builder {
	b.cascadeCfg.MaxDepth = depth
	return b
}

// WithMaxDeferred bounds the number of updates carried to the next step.
// Zero means unbounded.
func (b Builder) WithMaxDeferred(n int) Builder {
	b.cascadeCfg.MaxDeferred = n
	return b
}

// WithBucketCount sets the number of yearly buckets.
func (b Builder) WithBucketCount(n int) Builder {
	b.bucketCount = n
	return b
}

// WithLogger sets the logger shared by every component.
func (b Builder) WithLogger(logger *slog.Logger) Builder {
	b.logger = logger
	return b
}

// WithLogHooks logs every hook event of the core at debug level.
func (b Builder) WithLogHooks() Builder {
	b.logHooks = true
	return b
}

// WithStateBuffer sets where the simulation publishes its state after each
// step. By default a state.Manager is used.
func (b Builder) WithStateBuffer(buf StateBuffer) Builder {
	b.buffer = buf
	return b
}

// WithCommandApplier sets what applies the player commands of each tick. A
// CommandApplier that is also a Barrier gates SynchronizeToTick.
func (b Builder) WithCommandApplier(a CommandApplier) Builder {
	b.applier = a
	return b
}

// WithRecording records boundaries and degradations into a SQLite file.
func (b Builder) WithRecording(path string) Builder {
	b.recording = &datarecording.RecorderConfig{Type: "sqlite", Path: path}
	return b
}

// WithRecorderConfig records into the backend the config selects.
func (b Builder) WithRecorderConfig(cfg datarecording.RecorderConfig) Builder {
	b.recording = &cfg
	return b
}

// WithDataRecorder records into an existing recorder.
func (b Builder) WithDataRecorder(r datarecording.DataRecorder) Builder {
	b.recorder = r
	return b
}

// WithMonitoring serves the web monitor on port. A port below 1000 picks a
// random port.
func (b Builder) WithMonitoring(port int) Builder {
	b.monitorOn = true
	b.monitorPort = port

	return b
}

// WithOpenBrowser opens the monitor in a browser once it is serving.
func (b Builder) WithOpenBrowser() Builder {
	b.openBrowser = true
	return b
}

// WithConfig applies a file configuration. The calendar and start time are
// resolved here, so their errors are reported immediately.
func (b Builder) WithConfig(cfg Config) (Builder, error) {
	cal, err := calendar.New(cfg.Calendar)
	if err != nil {
		return b, err
	}

	start := b.start
	if cfg.StartTime != "" {
		start, err = cal.Parse(cfg.StartTime)
		if err != nil {
			return b, err
		}
	}

	b.cal = cal
	b.start = start
	b.maxTicksPerStep = cfg.MaxTicksPerStep
	b.hoursPerSecond = cfg.HoursPerSecond
	b.speed = cfg.Speed
	b.paused = cfg.Paused
	b.cascadeCfg = cfg.Cascade
	b.bucketCount = cfg.BucketCount

	if cfg.Recording != nil {
		b = b.WithRecorderConfig(*cfg.Recording)
	}

	if cfg.Monitor.Enabled {
		b = b.WithMonitoring(cfg.Monitor.Port)
		b.openBrowser = cfg.Monitor.OpenBrowser
	}

	return b, nil
}

// Build builds the simulation.
func (b Builder) Build() (*Simulation, error) {
	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	cal := b.cal
	if cal == nil {
		cal = calendar.MustNew(calendar.DefaultSpec())
	}

	s := &Simulation{
		id:     xid.New().String(),
		logger: logger,
		cal:    cal,
		buffer: b.buffer,
	}

	if err := b.buildCore(s); err != nil {
		return nil, err
	}

	if err := s.registerPublished(); err != nil {
		return nil, err
	}

	if err := b.buildRecording(s); err != nil {
		return nil, err
	}

	if b.monitorOn {
		if err := b.buildMonitor(s); err != nil {
			if s.recorder != nil {
				err = errors.Join(err, s.recorder.Close())
			}

			return nil, err
		}
	}

	return s, nil
}

func (b Builder) buildCore(s *Simulation) error {
	cb := clock.MakeBuilder().
		WithCalendar(s.cal).
		WithStartTime(b.start).
		WithMaxTicksPerStep(b.maxTicksPerStep).
		WithHoursPerSecond(b.hoursPerSecond).
		WithSpeed(b.speed).
		WithLogger(s.logger)
	if b.paused {
		cb = cb.WithPaused()
	}

	clk, err := cb.Build()
	if err != nil {
		return err
	}

	ctrl, err := cascade.New(b.cascadeCfg, s.logger)
	if err != nil {
		return err
	}

	bucketCount := b.bucketCount
	if bucketCount == 0 {
		bucketCount = s.cal.DaysPerYear()
	}

	sched, err := bucket.New(bucketCount)
	if err != nil {
		return err
	}

	s.clock = clk
	s.cascade = ctrl
	s.scheduler = sched
	s.tracker = dirty.NewTracker()
	s.dispatcher = dispatch.New(s.cal)
	s.dispatcher.SetInvoker(s.invokeGuarded)
	s.dispatcher.OnDay(s.tickElapsed)

	s.applier = b.applier
	if barrier, ok := b.applier.(Barrier); ok {
		s.barrier = barrier
	}

	if s.buffer == nil {
		s.buffer = state.NewManager()
	}

	s.degradations = hooking.NewCountHook(nil)
	s.clock.AcceptHook(s.degradations)
	s.cascade.AcceptHook(s.degradations)

	if b.logHooks {
		logHook := hooking.NewLogHook(s.logger, slog.LevelDebug)
		s.clock.AcceptHook(logHook)
		s.cascade.AcceptHook(logHook)
		s.dispatcher.AcceptHook(logHook)
		s.AcceptHook(logHook)
	}

	return nil
}

func (b Builder) buildRecording(s *Simulation) error {
	rec := b.recorder
	if rec == nil && b.recording != nil {
		cfg := *b.recording
		if cfg.Type == "" || cfg.Type == "sqlite" {
			if cfg.Path == "" {
				cfg.Path = "gsclock_" + s.id
			}
		}

		var err error

		rec, err = datarecording.NewWithConfig(cfg)
		if err != nil {
			return fmt.Errorf("simulation: opening recorder: %w", err)
		}
	}

	if rec == nil {
		return nil
	}

	s.recorder = rec
	s.hookRecorder = datarecording.NewHookRecorder(rec, s.clock.CurrentTick)
	s.clock.AcceptHook(s.hookRecorder)
	s.cascade.AcceptHook(s.hookRecorder)
	s.dispatcher.AcceptHook(s.hookRecorder)

	return nil
}

func (b Builder) buildMonitor(s *Simulation) error {
	m := monitoring.NewMonitor().WithLogger(s.logger)
	if b.monitorPort > 0 {
		m.WithPortNumber(b.monitorPort)
	}

	if b.openBrowser {
		m.WithOpenBrowser()
	}

	m.RegisterClock(s)
	m.RegisterController(s)
	m.RegisterInspectable("clock", func() any {
		snap, _ := s.ClockSnapshot()
		return &snap
	})
	m.RegisterInspectable("report", func() any {
		r, _ := s.LastReport()
		return &r
	})

	if _, err := m.StartServer(); err != nil {
		return fmt.Errorf("simulation: starting monitor: %w", err)
	}

	s.monitor = m

	return nil
}
