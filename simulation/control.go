package simulation

import (
	"sync"

	"github.com/sarchlab/gsclock/sim/clock"
)

type requestKind int

const (
	requestPause requestKind = iota
	requestResume
	requestToggle
	requestSpeed
)

type request struct {
	kind  requestKind
	speed int
}

// mailbox queues control requests from other goroutines until the next
// step applies them in arrival order.
type mailbox struct {
	lock     sync.Mutex
	requests []request
}

func (m *mailbox) push(r request) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.requests = append(m.requests, r)
}

func (m *mailbox) take() []request {
	m.lock.Lock()
	defer m.lock.Unlock()

	rs := m.requests
	m.requests = nil

	return rs
}

// RequestPause pauses the clock at the start of the next step.
func (s *Simulation) RequestPause() {
	s.mailbox.push(request{kind: requestPause})
}

// RequestResume resumes the clock at the start of the next step.
func (s *Simulation) RequestResume() {
	s.mailbox.push(request{kind: requestResume})
}

// RequestTogglePause flips the pause state at the start of the next step.
func (s *Simulation) RequestTogglePause() {
	s.mailbox.push(request{kind: requestToggle})
}

// RequestSpeed changes the speed at the start of the next step. An invalid
// speed is rejected immediately and never queued.
func (s *Simulation) RequestSpeed(speed int) error {
	if err := clock.CheckSpeed(speed); err != nil {
		return err
	}

	s.mailbox.push(request{kind: requestSpeed, speed: speed})

	return nil
}

func (s *Simulation) applyRequests() {
	for _, r := range s.mailbox.take() {
		switch r.kind {
		case requestPause:
			s.clock.Pause()
		case requestResume:
			s.clock.Resume()
		case requestToggle:
			s.clock.TogglePause()
		case requestSpeed:
			if err := s.clock.SetSpeed(r.speed); err != nil {
				s.logger.Error("cannot apply speed request",
					"speed", r.speed, "err", err)
			}
		}
	}
}
