// Package lockstep collects player commands per tick and applies them in
// one total order, so every peer that runs the same ticks reaches the same
// state.
package lockstep

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Errors returned by a session.
var (
	ErrUnknownPeer      = errors.New("lockstep: unknown peer")
	ErrLateCommand      = errors.New("lockstep: command targets an applied tick")
	ErrDuplicateCommand = errors.New("lockstep: duplicate command")
)

// PeerID identifies a participant.
type PeerID uint32

// Command is one player action scheduled for a tick.
type Command struct {
	Tick    uint64 `json:"tick"`
	Peer    PeerID `json:"peer"`
	Seq     uint32 `json:"seq"`
	Payload []byte `json:"payload"`
}

// Less is the total order commands are applied in: by tick, then peer, then
// sequence number.
func Less(a, b Command) bool {
	if a.Tick != b.Tick {
		return a.Tick < b.Tick
	}

	if a.Peer != b.Peer {
		return a.Peer < b.Peer
	}

	return a.Seq < b.Seq
}

// Executor applies a command to the game state.
type Executor interface {
	Execute(cmd Command) error
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(cmd Command) error

// Execute calls f.
func (f ExecutorFunc) Execute(cmd Command) error {
	return f(cmd)
}

// Session gathers commands from all peers. Submit and MarkReady may be
// called from network goroutines. ApplyCommands runs on the simulation
// goroutine.
type Session struct {
	mu sync.Mutex

	exec   Executor
	logger *slog.Logger

	peers   []PeerID
	ready   map[PeerID]uint64
	pending map[uint64][]Command
	applied uint64
}

// NewSession creates a session for a fixed set of peers.
func NewSession(exec Executor, peers ...PeerID) *Session {
	s := &Session{
		exec:    exec,
		logger:  slog.Default(),
		ready:   make(map[PeerID]uint64, len(peers)),
		pending: make(map[uint64][]Command),
	}

	for _, p := range peers {
		if _, ok := s.ready[p]; ok {
			continue
		}

		s.ready[p] = 0
		s.peers = append(s.peers, p)
	}

	sort.Slice(s.peers, func(i, j int) bool { return s.peers[i] < s.peers[j] })

	return s
}

// WithLogger sets the logger and returns the session.
func (s *Session) WithLogger(logger *slog.Logger) *Session {
	s.logger = logger
	return s
}

// Peers returns the participants in ascending order.
func (s *Session) Peers() []PeerID {
	out := make([]PeerID, len(s.peers))
	copy(out, s.peers)

	return out
}

// LastApplied returns the last tick whose commands were applied.
func (s *Session) LastApplied() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.applied
}

// Submit queues a command for its tick.
func (s *Session) Submit(cmd Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ready[cmd.Peer]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownPeer, cmd.Peer)
	}

	if cmd.Tick <= s.applied {
		return fmt.Errorf("%w: tick %d, applied through %d",
			ErrLateCommand, cmd.Tick, s.applied)
	}

	for _, c := range s.pending[cmd.Tick] {
		if c.Peer == cmd.Peer && c.Seq == cmd.Seq {
			return fmt.Errorf("%w: tick %d peer %d seq %d",
				ErrDuplicateCommand, cmd.Tick, cmd.Peer, cmd.Seq)
		}
	}

	cmd.Payload = bytes.Clone(cmd.Payload)
	s.pending[cmd.Tick] = append(s.pending[cmd.Tick], cmd)

	return nil
}

// MarkReady records that a peer has sent everything up to and including
// tick.
func (s *Session) MarkReady(peer PeerID, tick uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.ready[peer]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownPeer, peer)
	}

	if tick > cur {
		s.ready[peer] = tick
	}

	return nil
}

// Ready reports whether every peer has confirmed tick.
func (s *Session) Ready(tick uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.ready {
		if t < tick {
			return false
		}
	}

	return true
}

// CommandsFor returns the commands of a tick in application order.
func (s *Session) CommandsFor(tick uint64) []Command {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.sorted(tick)
}

func (s *Session) sorted(tick uint64) []Command {
	cmds := make([]Command, len(s.pending[tick]))
	copy(cmds, s.pending[tick])

	sort.Slice(cmds, func(i, j int) bool { return Less(cmds[i], cmds[j]) })

	return cmds
}

// ApplyCommands executes the commands of a tick in order and forgets them.
// A failing command is logged and does not stop the others; all errors are
// returned joined.
func (s *Session) ApplyCommands(tick uint64) error {
	s.mu.Lock()
	cmds := s.sorted(tick)
	delete(s.pending, tick)

	if tick > s.applied {
		s.applied = tick
	}
	s.mu.Unlock()

	var errs []error

	for _, cmd := range cmds {
		if err := s.exec.Execute(cmd); err != nil {
			s.logger.Warn("command failed",
				"tick", cmd.Tick,
				"peer", cmd.Peer,
				"seq", cmd.Seq,
				"err", err,
			)

			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
