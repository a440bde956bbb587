package simulation

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/gsclock/sim/lockstep"
)

var _ = Describe("Simulation with a lockstep session", func() {
	var (
		executed []lockstep.Command
		session  *lockstep.Session
		s        *Simulation
	)

	BeforeEach(func() {
		executed = nil
		session = lockstep.NewSession(
			lockstep.ExecutorFunc(func(cmd lockstep.Command) error {
				executed = append(executed, cmd)
				return nil
			}),
			1, 2,
		).WithLogger(quietLogger())
		s = mustBuild(MakeBuilder().WithCommandApplier(session))
	})

	It("should apply every peer's commands in total order", func() {
		Expect(session.Submit(lockstep.Command{Tick: 2, Peer: 2, Seq: 0})).To(Succeed())
		Expect(session.Submit(lockstep.Command{Tick: 2, Peer: 1, Seq: 1})).To(Succeed())
		Expect(session.Submit(lockstep.Command{Tick: 1, Peer: 2, Seq: 0})).To(Succeed())
		Expect(session.Submit(lockstep.Command{Tick: 2, Peer: 1, Seq: 0})).To(Succeed())

		Expect(session.MarkReady(1, 2)).To(Succeed())
		Expect(session.MarkReady(2, 2)).To(Succeed())

		_, err := s.SynchronizeToTick(2)

		Expect(err).ToNot(HaveOccurred())
		Expect(executed).To(Equal([]lockstep.Command{
			{Tick: 1, Peer: 2, Seq: 0},
			{Tick: 2, Peer: 1, Seq: 0},
			{Tick: 2, Peer: 1, Seq: 1},
			{Tick: 2, Peer: 2, Seq: 0},
		}))
		Expect(session.LastApplied()).To(Equal(uint64(2)))
	})

	It("should not run ahead of a slow peer", func() {
		Expect(session.MarkReady(1, 5)).To(Succeed())
		Expect(session.MarkReady(2, 3)).To(Succeed())

		_, err := s.SynchronizeToTick(5)

		Expect(errors.Is(err, ErrBarrierNotReached)).To(BeTrue())
		Expect(s.Clock().CurrentTick()).To(Equal(uint64(0)))

		_, err = s.SynchronizeToTick(3)

		Expect(err).ToNot(HaveOccurred())
		Expect(s.Clock().CurrentTick()).To(Equal(uint64(3)))
	})

	It("should hold live steps at the barrier", func() {
		report, err := s.Step(5)

		Expect(err).ToNot(HaveOccurred())
		Expect(report.Ticks).To(BeZero())
		Expect(report.Waiting).To(BeTrue())
		Expect(s.Clock().CurrentTick()).To(BeZero())
		Expect(s.Clock().Accumulator().Floor()).To(Equal(int64(5)))

		cmd := lockstep.Command{Tick: 3, Peer: 2}
		Expect(session.Submit(cmd)).To(Succeed())
		Expect(session.MarkReady(1, 3)).To(Succeed())
		Expect(session.MarkReady(2, 3)).To(Succeed())

		report, err = s.Step(0)

		Expect(err).ToNot(HaveOccurred())
		Expect(report.Ticks).To(Equal(3))
		Expect(report.Waiting).To(BeTrue())
		Expect(executed).To(Equal([]lockstep.Command{cmd}))

		Expect(session.MarkReady(1, 10)).To(Succeed())
		Expect(session.MarkReady(2, 10)).To(Succeed())

		report, err = s.Step(0)

		Expect(err).ToNot(HaveOccurred())
		Expect(report.Ticks).To(Equal(2))
		Expect(report.Waiting).To(BeFalse())
		Expect(s.Clock().CurrentTick()).To(Equal(uint64(5)))
	})

	It("should reject commands for ticks already run", func() {
		Expect(session.MarkReady(1, 2)).To(Succeed())
		Expect(session.MarkReady(2, 2)).To(Succeed())

		_, err := s.Step(2)
		Expect(err).ToNot(HaveOccurred())

		err = session.Submit(lockstep.Command{Tick: 2, Peer: 1})

		Expect(errors.Is(err, lockstep.ErrLateCommand)).To(BeTrue())
	})
})
