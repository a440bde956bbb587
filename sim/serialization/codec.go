// Package serialization writes and reads the clock save block. The layout
// is explicit: fields are written in a fixed order, so a save made on one
// machine loads bit for bit on another.
package serialization

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/sarchlab/gsclock/sim/clock"
)

// Errors returned while decoding.
var (
	ErrBadMagic           = errors.New("serialization: not a clock save block")
	ErrUnsupportedVersion = errors.New("serialization: unsupported save version")
	ErrFieldOutOfRange    = errors.New("serialization: field out of range")
	ErrUnknownCodec       = errors.New("serialization: unknown codec")
)

// Codec encodes clock snapshots.
type Codec interface {
	Encode(w io.Writer, s clock.Snapshot) error
	Decode(r io.Reader) (clock.Snapshot, error)
}

type codecRegistry struct {
	lock   sync.RWMutex
	codecs map[string]Codec
}

func (r *codecRegistry) register(name string, c Codec) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if _, ok := r.codecs[name]; ok {
		return fmt.Errorf("serialization: codec %q already registered", name)
	}

	r.codecs[name] = c

	return nil
}

func (r *codecRegistry) lookup(name string) (Codec, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	c, ok := r.codecs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}

	return c, nil
}

func (r *codecRegistry) names() []string {
	r.lock.RLock()
	defer r.lock.RUnlock()

	out := make([]string, 0, len(r.codecs))
	for n := range r.codecs {
		out = append(out, n)
	}

	sort.Strings(out)

	return out
}

var registry = codecRegistry{
	codecs: map[string]Codec{
		"binary": BinaryCodec{},
		"json":   JSONCodec{},
	},
}

// RegisterCodec makes a codec available under a name.
func RegisterCodec(name string, c Codec) error {
	return registry.register(name, c)
}

// CodecFor returns the codec registered under name.
func CodecFor(name string) (Codec, error) {
	return registry.lookup(name)
}

// CodecNames lists the registered codec names.
func CodecNames() []string {
	return registry.names()
}
