package simulation

import (
	"io"

	"github.com/sarchlab/gsclock/sim/serialization"
)

// Save writes the clock state with the named codec.
func (s *Simulation) Save(w io.Writer, codecName string) error {
	codec, err := serialization.CodecFor(codecName)
	if err != nil {
		return err
	}

	return codec.Encode(w, s.clock.Snapshot())
}

// Load restores the clock state written by Save and publishes it. Deferred
// cascade updates belong to the abandoned timeline and are discarded. A
// snapshot that fails to decode or validate leaves the simulation untouched.
func (s *Simulation) Load(r io.Reader, codecName string) error {
	codec, err := serialization.CodecFor(codecName)
	if err != nil {
		return err
	}

	snap, err := codec.Decode(r)
	if err != nil {
		return err
	}

	if err := s.clock.Restore(snap); err != nil {
		return err
	}

	if n := s.cascade.Discard(); n > 0 {
		s.logger.Warn("discarded deferred updates on load", "count", n)
	}

	report := StepReport{
		Step:      s.steps,
		FirstTick: snap.Tick,
		LastTick:  snap.Tick,
		Time:      snap.Time(),
	}

	return s.putState(report)
}
