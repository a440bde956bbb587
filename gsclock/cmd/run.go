package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sarchlab/gsclock/datarecording"
	"github.com/sarchlab/gsclock/monitoring"
	"github.com/sarchlab/gsclock/simulation"
)

type runOptions struct {
	config         string
	start          string
	until          string
	speed          int
	hoursPerSecond float64
	maxTicks       int
	frame          time.Duration
	duration       time.Duration
	realtime       bool
	record         string
	monitor        bool
	monitorPort    int
	openBrowser    bool
	logLevel       string
	reportEvery    int
}

var runOpts runOptions

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the clock headless with a fixed frame time.",
	Long: `Run steps the simulation once per frame. It stops after --duration ` +
		`of real time, or once the date reaches --until.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runSimulation(cmd, runOpts)
	},
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runOpts.config, "config", "", "YAML simulation config")
	f.StringVar(&runOpts.start, "start", "", "start date, YYYY-MM-DD-HH")
	f.StringVar(&runOpts.until, "until", "", "stop at this date, YYYY-MM-DD-HH")
	f.IntVar(&runOpts.speed, "speed", 1, "speed multiplier")
	f.Float64Var(&runOpts.hoursPerSecond, "hours-per-second", 1,
		"simulated hours per real second at speed 1")
	f.IntVar(&runOpts.maxTicks, "max-ticks-per-step", 168,
		"hours one step may simulate, 0 for no limit")
	f.DurationVar(&runOpts.frame, "frame", time.Second/60, "real time per step")
	f.DurationVar(&runOpts.duration, "duration", time.Minute,
		"real time to simulate when --until is not set")
	f.BoolVar(&runOpts.realtime, "realtime", false, "sleep between frames")
	f.StringVar(&runOpts.record, "record", "",
		"record into sqlite, sqlite:<path> or clickhouse://host:port/db")
	f.BoolVar(&runOpts.monitor, "monitor", false, "serve the web monitor")
	f.IntVar(&runOpts.monitorPort, "monitor-port", 0, "web monitor port")
	f.BoolVar(&runOpts.openBrowser, "open-browser", false,
		"open the web monitor in a browser")
	f.StringVar(&runOpts.logLevel, "log-level", "info",
		"debug, info, warn or error")
	f.IntVar(&runOpts.reportEvery, "report-every", 600,
		"log a summary every n steps, 0 to disable")

	rootCmd.AddCommand(runCmd)
}

func newLogger(level string) (*slog.Logger, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}

	return slog.New(slog.NewTextHandler(os.Stderr,
		&slog.HandlerOptions{Level: l})), nil
}

func buildConfig(cmd *cobra.Command, opts runOptions) (simulation.Config, error) {
	cfg := simulation.DefaultConfig()
	if opts.config != "" {
		var err error

		cfg, err = simulation.LoadConfig(opts.config)
		if err != nil {
			return cfg, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("start") {
		cfg.StartTime = opts.start
	}

	if flags.Changed("speed") {
		cfg.Speed = opts.speed
	}

	if flags.Changed("hours-per-second") {
		cfg.HoursPerSecond = opts.hoursPerSecond
	}

	if flags.Changed("max-ticks-per-step") {
		cfg.MaxTicksPerStep = opts.maxTicks
	}

	if opts.record != "" {
		rc, err := datarecording.ParseTarget(opts.record)
		if err != nil {
			return cfg, err
		}

		cfg.Recording = &rc
	}

	if opts.monitor || flags.Changed("monitor-port") {
		cfg.Monitor.Enabled = true
		cfg.Monitor.Port = opts.monitorPort
		cfg.Monitor.OpenBrowser = opts.openBrowser
	}

	return cfg, nil
}

func runSimulation(cmd *cobra.Command, opts runOptions) error {
	logger, err := newLogger(opts.logLevel)
	if err != nil {
		return err
	}

	if opts.frame <= 0 {
		return fmt.Errorf("frame must be positive, got %s", opts.frame)
	}

	cfg, err := buildConfig(cmd, opts)
	if err != nil {
		return err
	}

	b, err := simulation.MakeBuilder().WithLogger(logger).WithConfig(cfg)
	if err != nil {
		return err
	}

	s, err := b.Build()
	if err != nil {
		return err
	}

	h := &host{sim: s, logger: logger, opts: opts}
	if err := h.setUntil(); err != nil {
		return err
	}

	var exec *datarecording.ExecRecorder
	if rec := s.DataRecorder(); rec != nil {
		exec = datarecording.NewExecRecorder(rec)
		exec.Start()
		exec.Set("Simulation ID", s.ID())
		exec.Set("Start Date", s.Clock().CurrentTime().String())
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	runErr := h.loop(ctx)

	if exec != nil {
		exec.Set("End Date", s.Clock().CurrentTime().String())
		exec.End()
	}

	fmt.Fprintf(cmd.OutOrStdout(), "tick %d date %s steps %d\n",
		s.Clock().CurrentTick(), s.Clock().CurrentTime(), s.Steps())

	logger.Info("simulation finished",
		"id", s.ID(),
		"tick", s.Clock().CurrentTick(),
		"degradations", s.DegradationCounts(),
	)

	if err := s.Terminate(); err != nil {
		return err
	}

	return runErr
}

// host is the headless frame loop.
type host struct {
	sim    *simulation.Simulation
	logger *slog.Logger
	opts   runOptions

	hasUntil   bool
	untilHours int64
}

func (h *host) setUntil() error {
	if h.opts.until == "" {
		return nil
	}

	cal := h.sim.Calendar()

	t, err := cal.Parse(h.opts.until)
	if err != nil {
		return err
	}

	h.hasUntil = true
	h.untilHours = cal.TotalHours(t)

	return nil
}

func (h *host) done(frame, frames int) bool {
	if !h.hasUntil {
		return frame >= frames
	}

	return h.sim.Clock().TotalHours() >= h.untilHours
}

func (h *host) loop(ctx context.Context) error {
	frames := int(h.opts.duration / h.opts.frame)
	delta := h.opts.frame.Seconds()

	bar := h.progressBar(frames)

	var ticker *time.Ticker
	if h.opts.realtime {
		ticker = time.NewTicker(h.opts.frame)
		defer ticker.Stop()
	}

	for i := 0; !h.done(i, frames); i++ {
		if err := ctx.Err(); err != nil {
			h.logger.Warn("interrupted", "step", h.sim.Steps())
			return nil
		}

		report, err := h.sim.Step(delta)
		if err != nil {
			h.logger.Error("step failed", "step", report.Step, "err", err)
		}

		if h.stalled(report) {
			return fmt.Errorf("clock cannot reach %s: paused or stopped",
				h.opts.until)
		}

		h.logProgress(report)
		h.updateProgress(bar, i+1)

		if ticker != nil {
			select {
			case <-ctx.Done():
			case <-ticker.C:
			}
		}
	}

	if bar != nil {
		h.sim.Monitor().CompleteProgressBar(bar)
	}

	return nil
}

// stalled reports a run toward a date that can no longer move. With a
// monitor attached the user can still resume.
func (h *host) stalled(r simulation.StepReport) bool {
	if !h.hasUntil || r.Ticks > 0 || h.sim.Monitor() != nil {
		return false
	}

	c := h.sim.Clock()

	return c.IsPaused() || c.Speed() == 0
}

func (h *host) logProgress(r simulation.StepReport) {
	if h.opts.reportEvery <= 0 || r.Step%uint64(h.opts.reportEvery) != 0 {
		return
	}

	h.logger.Info("step",
		"step", r.Step,
		"tick", r.LastTick,
		"date", r.Time.String(),
		"ticks", r.Ticks,
		"cap_hit", r.CapHit,
		"pending", r.Pending,
	)
}

func (h *host) progressBar(frames int) *monitoring.ProgressBar {
	m := h.sim.Monitor()
	if m == nil {
		return nil
	}

	total := uint64(frames)
	if h.hasUntil {
		remaining := h.untilHours - h.sim.Clock().TotalHours()
		if remaining < 0 {
			remaining = 0
		}

		total = uint64(remaining)
	}

	return m.CreateProgressBar("Run", total)
}

func (h *host) updateProgress(bar *monitoring.ProgressBar, frame int) {
	if bar == nil {
		return
	}

	if !h.hasUntil {
		bar.SetFinished(uint64(frame))
		return
	}

	total := bar.Status().Total
	remaining := h.untilHours - h.sim.Clock().TotalHours()

	switch {
	case remaining <= 0:
		bar.SetFinished(total)
	case uint64(remaining) >= total:
		bar.SetFinished(0)
	default:
		bar.SetFinished(total - uint64(remaining))
	}
}
