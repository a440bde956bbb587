package simulation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/gsclock/datarecording"
	"github.com/sarchlab/gsclock/sim/calendar"
	"github.com/sarchlab/gsclock/sim/clock"
	"github.com/sarchlab/gsclock/sim/dirty"
	"github.com/sarchlab/gsclock/sim/dispatch"
	"github.com/sarchlab/gsclock/sim/fixed"
)

func mustBuild(b Builder) *Simulation {
	s, err := b.WithLogger(quietLogger()).Build()
	Expect(err).ToNot(HaveOccurred())

	return s
}

func logBoundaries(s *Simulation, log *[]string) {
	for k := dispatch.Hour; k < dispatch.NumKinds; k++ {
		kind := k
		_, err := s.On(kind, func(b dispatch.Boundary) {
			*log = append(*log, fmt.Sprintf("%s %d", kind, b.Tick))
		})
		Expect(err).ToNot(HaveOccurred())
	}
}

var _ = Describe("Builder", func() {
	It("should publish the initial clock", func() {
		s := mustBuild(MakeBuilder())

		snap, err := s.ClockSnapshot()

		Expect(err).ToNot(HaveOccurred())
		Expect(snap.Tick).To(Equal(uint64(0)))
		Expect(snap.Time()).To(Equal(calendar.Date(1444, 11, 11, 0)))
		Expect(s.ID()).ToNot(BeEmpty())
		Expect(s.Scheduler().BucketCount()).To(Equal(360))
	})

	It("should reject an invalid cascade config", func() {
		_, err := MakeBuilder().WithMaxCascadeDepth(0).Build()

		Expect(err).To(HaveOccurred())
	})

	It("should reject an invalid clock config", func() {
		_, err := MakeBuilder().WithHoursPerSecond(-1).Build()

		Expect(errors.Is(err, clock.ErrInvalidConfig)).To(BeTrue())
	})
})

var _ = Describe("Simulation", func() {
	var (
		mockCtrl *gomock.Controller
		s        *Simulation
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		s = mustBuild(MakeBuilder())
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should advance and publish", func() {
		report, err := s.Step(3)

		Expect(err).ToNot(HaveOccurred())
		Expect(report.Step).To(Equal(uint64(1)))
		Expect(report.Ticks).To(Equal(3))
		Expect(report.FirstTick).To(Equal(uint64(1)))
		Expect(report.LastTick).To(Equal(uint64(3)))
		Expect(report.Time).To(Equal(calendar.Date(1444, 11, 11, 3)))

		snap, err := s.ClockSnapshot()
		Expect(err).ToNot(HaveOccurred())
		Expect(snap.Tick).To(Equal(uint64(3)))

		published, err := s.LastReport()
		Expect(err).ToNot(HaveOccurred())
		Expect(published).To(Equal(report))
	})

	It("should reject an invalid delta without changing anything", func() {
		_, err := s.Step(-1)

		Expect(errors.Is(err, clock.ErrInvalidDelta)).To(BeTrue())
		Expect(s.Steps()).To(Equal(uint64(0)))
		Expect(s.Clock().CurrentTick()).To(Equal(uint64(0)))
	})

	It("should dispatch boundaries in order", func() {
		var log []string
		logBoundaries(s, &log)

		_, err := s.Step(24)

		Expect(err).ToNot(HaveOccurred())
		Expect(log).To(HaveLen(25))
		Expect(log[0]).To(Equal("hour 1"))
		Expect(log[23:]).To(Equal([]string{"hour 24", "day 24"}))
	})

	It("should apply commands before the boundaries of a tick", func() {
		applier := NewMockCommandApplier(mockCtrl)
		s = mustBuild(MakeBuilder().WithCommandApplier(applier))

		var log []string
		applier.EXPECT().ApplyCommands(gomock.Any()).
			DoAndReturn(func(tick uint64) error {
				log = append(log, fmt.Sprintf("cmd %d", tick))
				return nil
			}).
			Times(2)
		logBoundaries(s, &log)

		_, err := s.Step(2)

		Expect(err).ToNot(HaveOccurred())
		Expect(log).To(Equal([]string{"cmd 1", "hour 1", "cmd 2", "hour 2"}))
	})

	It("should keep going when commands fail", func() {
		applier := NewMockCommandApplier(mockCtrl)
		s = mustBuild(MakeBuilder().WithCommandApplier(applier))
		boom := errors.New("boom")

		applier.EXPECT().ApplyCommands(uint64(1)).Return(nil)
		applier.EXPECT().ApplyCommands(uint64(2)).Return(boom)
		applier.EXPECT().ApplyCommands(uint64(3)).Return(nil)

		report, err := s.Step(3)

		Expect(errors.Is(err, boom)).To(BeTrue())
		Expect(report.Ticks).To(Equal(3))
	})

	Context("when paused", func() {
		It("should neither gain nor lose time", func() {
			_, err := s.Step(0.5)
			Expect(err).ToNot(HaveOccurred())

			s.RequestPause()
			report, err := s.Step(10)

			Expect(err).ToNot(HaveOccurred())
			Expect(report.Ticks).To(Equal(0))

			snap, _ := s.ClockSnapshot()
			Expect(snap.Paused).To(BeTrue())
			Expect(snap.Accumulator).To(Equal(fixed.Half.Raw()))

			s.RequestResume()
			report, err = s.Step(0.5)

			Expect(err).ToNot(HaveOccurred())
			Expect(report.Ticks).To(Equal(1))
		})

		It("should toggle", func() {
			s.RequestTogglePause()
			_, _ = s.Step(0)
			Expect(s.Clock().IsPaused()).To(BeTrue())

			s.RequestTogglePause()
			_, _ = s.Step(0)
			Expect(s.Clock().IsPaused()).To(BeFalse())
		})
	})

	It("should apply speed requests at the next step", func() {
		Expect(s.RequestSpeed(3)).To(Succeed())
		Expect(s.Clock().Speed()).To(Equal(uint32(1)))

		report, err := s.Step(1)

		Expect(err).ToNot(HaveOccurred())
		Expect(report.Ticks).To(Equal(3))
	})

	It("should reject an invalid speed request", func() {
		err := s.RequestSpeed(-1)

		Expect(errors.Is(err, clock.ErrNegativeSpeed)).To(BeTrue())
	})

	It("should report the tick cap", func() {
		s = mustBuild(MakeBuilder().WithMaxTicksPerStep(24))

		report, err := s.Step(100)

		Expect(err).ToNot(HaveOccurred())
		Expect(report.Ticks).To(Equal(24))
		Expect(report.CapHit).To(BeTrue())
		Expect(s.DegradationCounts()).To(HaveKeyWithValue("TickCapReached", uint64(1)))

		report, _ = s.Step(0)
		Expect(report.Ticks).To(Equal(24))

		for i := 0; i < 3; i++ {
			report, _ = s.Step(0)
		}
		Expect(report.Ticks).To(Equal(4))
		Expect(report.CapHit).To(BeFalse())
		Expect(s.Clock().CurrentTick()).To(Equal(uint64(100)))
	})

	It("should run deferred updates in the next step", func() {
		s = mustBuild(MakeBuilder().WithMaxCascadeDepth(1))

		ran := 0
		_, err := s.On(dispatch.Day, func(dispatch.Boundary) {
			Expect(s.RunGuarded(func() { ran++ })).To(Succeed())
		})
		Expect(err).ToNot(HaveOccurred())

		report, err := s.Step(24)

		Expect(err).ToNot(HaveOccurred())
		Expect(ran).To(Equal(0))
		Expect(report.Deferred).To(Equal(1))
		Expect(report.Pending).To(Equal(1))

		report, err = s.Step(0)

		Expect(err).ToNot(HaveOccurred())
		Expect(ran).To(Equal(1))
		Expect(report.Drained).To(Equal(1))
		Expect(report.Pending).To(Equal(0))
		Expect(s.DegradationCounts()).To(HaveKeyWithValue("CascadeDeferred", uint64(1)))
	})

	It("should clear only the entities processed successfully", func() {
		for id := dirty.EntityID(1); id <= 3; id++ {
			Expect(s.AddEntity(id)).To(BeTrue())
		}
		Expect(s.MarkDirty(1, 0)).To(Succeed())
		Expect(s.MarkDirty(2, 0)).To(Succeed())

		var processed []dirty.EntityID
		_, err := s.Drain(dispatch.Day, 0,
			func(id dirty.EntityID, _ dispatch.Boundary) error {
				processed = append(processed, id)
				if id == 2 {
					return errors.New("not now")
				}

				return nil
			})
		Expect(err).ToNot(HaveOccurred())

		_, err = s.Step(24)

		Expect(err).ToNot(HaveOccurred())
		Expect(processed).To(Equal([]dirty.EntityID{1, 2}))
		Expect(s.Tracker().IsDirty(1, 0)).To(BeFalse())
		Expect(s.Tracker().IsDirty(2, 0)).To(BeTrue())
	})

	It("should keep a mark made while the entity is processed", func() {
		s.AddEntity(1)
		Expect(s.MarkDirty(1, 0)).To(Succeed())

		calls := 0
		_, err := s.Drain(dispatch.Day, 0,
			func(id dirty.EntityID, _ dispatch.Boundary) error {
				calls++
				if calls == 1 {
					Expect(s.MarkDirty(id, 0)).To(Succeed())
				}

				return nil
			})
		Expect(err).ToNot(HaveOccurred())

		_, _ = s.Step(24)

		Expect(calls).To(Equal(1))
		Expect(s.Tracker().IsDirty(1, 0)).To(BeTrue())

		_, _ = s.Step(24)

		Expect(calls).To(Equal(2))
		Expect(s.Tracker().IsDirty(1, 0)).To(BeFalse())
	})

	It("should process entities marked while paused at the next day", func() {
		s.AddEntity(1)

		var seen []uint64
		_, err := s.Drain(dispatch.Day, 0,
			func(_ dirty.EntityID, b dispatch.Boundary) error {
				seen = append(seen, b.Tick)
				return nil
			})
		Expect(err).ToNot(HaveOccurred())

		s.RequestPause()
		_, _ = s.Step(0)
		Expect(s.MarkDirty(1, 0)).To(Succeed())

		_, _ = s.Step(48)
		Expect(seen).To(BeEmpty())

		s.RequestResume()
		report, err := s.Step(0)

		Expect(err).ToNot(HaveOccurred())
		Expect(report.Ticks).To(BeZero())
		Expect(seen).To(BeEmpty())

		_, _ = s.Step(23)
		Expect(seen).To(BeEmpty())
		Expect(s.Tracker().IsDirty(1, 0)).To(BeTrue())

		_, _ = s.Step(1)
		Expect(seen).To(Equal([]uint64{24}))
		Expect(s.Tracker().IsDirty(1, 0)).To(BeFalse())
	})

	It("should reject an invalid drain category", func() {
		_, err := s.Drain(dispatch.Day, dirty.MaxCategories,
			func(dirty.EntityID, dispatch.Boundary) error { return nil })

		Expect(errors.Is(err, dirty.ErrInvalidCategory)).To(BeTrue())
	})

	It("should mark entities dirty after the elapsed threshold", func() {
		s.AddEntity(7)
		Expect(s.TrackElapsed(1, 2)).To(Succeed())

		var processed []dirty.EntityID
		_, err := s.Drain(dispatch.Day, 1,
			func(id dirty.EntityID, _ dispatch.Boundary) error {
				processed = append(processed, id)
				return nil
			})
		Expect(err).ToNot(HaveOccurred())

		_, _ = s.Step(24)
		Expect(processed).To(BeEmpty())

		_, _ = s.Step(24)
		Expect(processed).To(Equal([]dirty.EntityID{7}))

		days, ok := s.Tracker().DaysSince(7, 1)
		Expect(ok).To(BeTrue())
		Expect(days).To(Equal(uint32(0)))
	})

	It("should run the bucket of the day", func() {
		for id := dirty.EntityID(0); id < 720; id++ {
			s.AddEntity(id)
		}

		var due []dirty.EntityID
		_, err := s.OnBucketDay(func(id dirty.EntityID, _ dispatch.Boundary) {
			due = append(due, id)
		})
		Expect(err).ToNot(HaveOccurred())

		_, _ = s.Step(24)

		Expect(due).To(Equal([]dirty.EntityID{311, 671}))

		s.RemoveEntity(671)
		due = nil
		_, err = s.SynchronizeToTick(24 + 24*360)
		Expect(err).ToNot(HaveOccurred())
		Expect(due).To(ContainElement(dirty.EntityID(311)))
		Expect(due).ToNot(ContainElement(dirty.EntityID(671)))
	})

	Context("when synchronizing", func() {
		It("should match live stepping", func() {
			live := mustBuild(MakeBuilder())
			replay := mustBuild(MakeBuilder())

			var liveLog, replayLog []string
			logBoundaries(live, &liveLog)
			logBoundaries(replay, &replayLog)

			for i := 0; i < 48; i++ {
				_, err := live.Step(1)
				Expect(err).ToNot(HaveOccurred())
			}

			report, err := replay.SynchronizeToTick(48)

			Expect(err).ToNot(HaveOccurred())
			Expect(report.Ticks).To(Equal(48))
			Expect(replayLog).To(Equal(liveLog))

			liveSnap, _ := live.ClockSnapshot()
			replaySnap, _ := replay.ClockSnapshot()
			Expect(replaySnap).To(Equal(liveSnap))
		})

		It("should refuse to go back", func() {
			_, _ = s.Step(5)

			_, err := s.SynchronizeToTick(2)

			Expect(errors.Is(err, clock.ErrBackwardSync)).To(BeTrue())
		})

		It("should wait for the barrier", func() {
			barrier := NewMockBarrier(mockCtrl)
			s = mustBuild(MakeBuilder().WithCommandApplier(barrier))

			gomock.InOrder(
				barrier.EXPECT().Ready(uint64(1)).Return(true),
				barrier.EXPECT().Ready(uint64(2)).Return(false),
			)

			_, err := s.SynchronizeToTick(2)

			Expect(errors.Is(err, ErrBarrierNotReached)).To(BeTrue())
			Expect(s.Clock().CurrentTick()).To(Equal(uint64(0)))

			gomock.InOrder(
				barrier.EXPECT().Ready(uint64(1)).Return(true),
				barrier.EXPECT().Ready(uint64(2)).Return(true),
				barrier.EXPECT().ApplyCommands(uint64(1)).Return(nil),
				barrier.EXPECT().ApplyCommands(uint64(2)).Return(nil),
			)

			_, err = s.SynchronizeToTick(2)

			Expect(err).ToNot(HaveOccurred())
			Expect(s.Clock().CurrentTick()).To(Equal(uint64(2)))
		})

		It("should stop a live step at the first unready tick", func() {
			barrier := NewMockBarrier(mockCtrl)
			s = mustBuild(MakeBuilder().WithCommandApplier(barrier))

			gomock.InOrder(
				barrier.EXPECT().Ready(uint64(1)).Return(true),
				barrier.EXPECT().ApplyCommands(uint64(1)).Return(nil),
				barrier.EXPECT().Ready(uint64(2)).Return(false),
			)

			report, err := s.Step(3)

			Expect(err).ToNot(HaveOccurred())
			Expect(report.Ticks).To(Equal(1))
			Expect(report.Waiting).To(BeTrue())
			Expect(report.CapHit).To(BeFalse())
			Expect(s.Clock().Accumulator().Floor()).To(Equal(int64(2)))
		})
	})

	It("should save and load", func() {
		Expect(s.RequestSpeed(2)).To(Succeed())
		_, _ = s.Step(15.25)

		var buf bytes.Buffer
		Expect(s.Save(&buf, "binary")).To(Succeed())

		restored := mustBuild(MakeBuilder())
		Expect(restored.Load(&buf, "binary")).To(Succeed())

		want, _ := s.ClockSnapshot()
		got, err := restored.ClockSnapshot()
		Expect(err).ToNot(HaveOccurred())
		Expect(got).To(Equal(want))
		Expect(restored.Clock().Speed()).To(Equal(uint32(2)))
	})

	It("should reject an unknown codec", func() {
		var buf bytes.Buffer

		Expect(s.Save(&buf, "xml")).ToNot(Succeed())
	})

	It("should publish through the state buffer", func() {
		buffer := NewMockStateBuffer(mockCtrl)
		buffer.EXPECT().Register(ClockKey, gomock.Any()).Return(nil)
		buffer.EXPECT().Register(ReportKey, gomock.Any()).Return(nil)

		s = mustBuild(MakeBuilder().WithStateBuffer(buffer))

		gomock.InOrder(
			buffer.EXPECT().Put(ClockKey, gomock.Any()).
				DoAndReturn(func(_ string, v any) error {
					Expect(v.(clock.Snapshot).Tick).To(Equal(uint64(2)))
					return nil
				}),
			buffer.EXPECT().Put(ReportKey, gomock.Any()).Return(nil),
			buffer.EXPECT().Swap().Return(2),
		)

		_, err := s.Step(2)

		Expect(err).ToNot(HaveOccurred())
	})

	It("should report a failed publish", func() {
		buffer := NewMockStateBuffer(mockCtrl)
		buffer.EXPECT().Register(gomock.Any(), gomock.Any()).
			Return(nil).Times(2)

		s = mustBuild(MakeBuilder().WithStateBuffer(buffer))

		buffer.EXPECT().Put(ClockKey, gomock.Any()).
			Return(errors.New("full"))

		_, err := s.Step(1)

		Expect(err).To(HaveOccurred())
	})

	It("should record boundaries and steps", func() {
		path := filepath.Join(GinkgoT().TempDir(), "run")
		s = mustBuild(MakeBuilder().WithRecording(path))

		_, err := s.Step(48)
		Expect(err).ToNot(HaveOccurred())

		Expect(s.DataRecorder().ListTables()).To(ContainElements(
			datarecording.BoundaryTableName,
			datarecording.DegradationTableName,
			datarecording.StepTableName,
		))
		Expect(s.Terminate()).To(Succeed())
		Expect(path + ".sqlite3").To(BeAnExistingFile())

		reader, err := datarecording.OpenReader(path + ".sqlite3")
		Expect(err).ToNot(HaveOccurred())
		defer reader.Close()

		summary, err := reader.Summary(context.Background())
		Expect(err).ToNot(HaveOccurred())
		Expect(summary.Steps).To(Equal(1))
		Expect(summary.Ticks).To(Equal(48))
		Expect(summary.Boundaries).To(Equal(map[string]int{"day": 2}))
	})

	It("should close the recorder when the monitor cannot start", func() {
		taken, err := net.Listen("tcp", ":0")
		Expect(err).ToNot(HaveOccurred())
		defer taken.Close()

		rec := NewMockDataRecorder(mockCtrl)
		rec.EXPECT().CreateTable(gomock.Any(), gomock.Any()).Times(3)
		rec.EXPECT().Close().Return(nil)

		_, err = MakeBuilder().
			WithLogger(quietLogger()).
			WithDataRecorder(rec).
			WithMonitoring(taken.Addr().(*net.TCPAddr).Port).
			Build()

		Expect(err).To(HaveOccurred())
	})
})
