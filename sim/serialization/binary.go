package serialization

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/sarchlab/gsclock/sim/clock"
)

// Magic starts every binary clock save block.
var Magic = [4]byte{'G', 'S', 'C', 'K'}

// BinaryVersion is the layout version written by BinaryCodec.
const BinaryVersion uint16 = 1

type binaryHeader struct {
	Magic   [4]byte
	Version uint16
}

// binarySnapshot is the version 1 layout. Field order is the save order.
type binarySnapshot struct {
	Tick        uint64
	Year        int64
	Month       uint16
	Day         uint16
	Hour        uint16
	Speed       uint32
	Paused      uint8
	Accumulator int64
}

// BinaryCodec writes snapshots as big-endian fixed-size records.
type BinaryCodec struct{}

// Encode writes the header and the snapshot.
func (BinaryCodec) Encode(w io.Writer, s clock.Snapshot) error {
	rec, err := toBinary(s)
	if err != nil {
		return err
	}

	h := binaryHeader{Magic: Magic, Version: BinaryVersion}
	if err := binary.Write(w, binary.BigEndian, h); err != nil {
		return err
	}

	return binary.Write(w, binary.BigEndian, rec)
}

// Decode reads a snapshot written by Encode.
func (BinaryCodec) Decode(r io.Reader) (clock.Snapshot, error) {
	var h binaryHeader
	if err := binary.Read(r, binary.BigEndian, &h); err != nil {
		return clock.Snapshot{}, err
	}

	if h.Magic != Magic {
		return clock.Snapshot{}, fmt.Errorf("%w: %q", ErrBadMagic, h.Magic[:])
	}

	if h.Version != BinaryVersion {
		return clock.Snapshot{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, h.Version)
	}

	var rec binarySnapshot
	if err := binary.Read(r, binary.BigEndian, &rec); err != nil {
		return clock.Snapshot{}, err
	}

	return fromBinary(rec)
}

func toBinary(s clock.Snapshot) (binarySnapshot, error) {
	for _, f := range []struct {
		name string
		v    int
	}{
		{"month", s.Month},
		{"day", s.Day},
		{"hour", s.Hour},
	} {
		if f.v < 0 || f.v > math.MaxUint16 {
			return binarySnapshot{}, fmt.Errorf("%w: %s %d",
				ErrFieldOutOfRange, f.name, f.v)
		}
	}

	var paused uint8
	if s.Paused {
		paused = 1
	}

	return binarySnapshot{
		Tick:        s.Tick,
		Year:        int64(s.Year),
		Month:       uint16(s.Month),
		Day:         uint16(s.Day),
		Hour:        uint16(s.Hour),
		Speed:       s.Speed,
		Paused:      paused,
		Accumulator: s.Accumulator,
	}, nil
}

func fromBinary(rec binarySnapshot) (clock.Snapshot, error) {
	if rec.Paused > 1 {
		return clock.Snapshot{}, fmt.Errorf("%w: paused flag %d",
			ErrFieldOutOfRange, rec.Paused)
	}

	if rec.Year < math.MinInt32 || rec.Year > math.MaxInt32 {
		return clock.Snapshot{}, fmt.Errorf("%w: year %d",
			ErrFieldOutOfRange, rec.Year)
	}

	return clock.Snapshot{
		Tick:        rec.Tick,
		Year:        int(rec.Year),
		Month:       int(rec.Month),
		Day:         int(rec.Day),
		Hour:        int(rec.Hour),
		Speed:       rec.Speed,
		Paused:      rec.Paused == 1,
		Accumulator: rec.Accumulator,
	}, nil
}
