// Package fixed provides a deterministic fixed-point number used for all
// simulation time math.
//
// A Point is a signed Q32.32 value stored in an int64. Arithmetic never
// touches floating point, so the same inputs produce the same bits on every
// machine.
package fixed

import (
	"fmt"
	"math"
	"math/bits"
)

const fracBits = 32

// Point is a Q32.32 fixed-point value.
type Point int64

// Commonly used constants.
const (
	Zero Point = 0
	One  Point = 1 << fracBits
	Half Point = One / 2
	Max  Point = math.MaxInt64
	Min  Point = math.MinInt64
)

const fracMask = int64(One) - 1

// FromInt converts an integer. Values outside the representable range
// saturate.
func FromInt(i int64) Point {
	if i > math.MaxInt32 {
		return Max
	}

	if i < math.MinInt32 {
		return Min
	}

	return Point(i << fracBits)
}

// FromRaw wraps a raw Q32.32 bit pattern, as produced by Raw.
func FromRaw(raw int64) Point {
	return Point(raw)
}

// FromFloat64 converts a float to the nearest representable Point. NaN
// converts to zero and out-of-range values saturate.
//
// This is the only place where a float enters the time math. Peers feeding
// the same float64 always get the same Point.
func FromFloat64(f float64) Point {
	p, _ := FromFloat64Overflow(f)
	return p
}

// FromFloat64Overflow is like FromFloat64 and also reports whether f was out
// of range.
func FromFloat64Overflow(f float64) (Point, bool) {
	if math.IsNaN(f) {
		return Zero, false
	}

	scaled := math.Round(f * float64(One))
	if scaled >= math.MaxInt64 {
		return Max, true
	}

	if scaled <= math.MinInt64 {
		return Min, true
	}

	return Point(int64(scaled)), false
}

// Raw returns the underlying bit pattern.
func (p Point) Raw() int64 {
	return int64(p)
}

// Add returns p+q, saturating on overflow.
func (p Point) Add(q Point) Point {
	r, _ := p.AddOverflow(q)
	return r
}

// AddOverflow is like Add and also reports whether the sum saturated.
func (p Point) AddOverflow(q Point) (Point, bool) {
	s := p + q
	if q > 0 && s < p {
		return Max, true
	}

	if q < 0 && s > p {
		return Min, true
	}

	return s, false
}

// Sub returns p-q, saturating on overflow.
func (p Point) Sub(q Point) Point {
	if q == Min {
		if p >= 0 {
			return Max
		}

		return p - q
	}

	return p.Add(-q)
}

// Mul returns p*q truncated toward zero, saturating on overflow.
func (p Point) Mul(q Point) Point {
	r, _ := p.MulOverflow(q)
	return r
}

// MulOverflow is like Mul and also reports whether the product saturated.
func (p Point) MulOverflow(q Point) (Point, bool) {
	neg := (p < 0) != (q < 0)
	hi, lo := bits.Mul64(abs(p), abs(q))

	// The product carries 64 fractional bits; keep 32 of them.
	if hi>>(fracBits-1) != 0 {
		return saturate(neg), true
	}

	mag := hi<<fracBits | lo>>fracBits
	if mag > math.MaxInt64 {
		return saturate(neg), true
	}

	if neg {
		return Point(-int64(mag)), false
	}

	return Point(int64(mag)), false
}

// MulInt returns p*n, saturating on overflow.
func (p Point) MulInt(n int64) Point {
	r, _ := p.MulIntOverflow(n)
	return r
}

// MulIntOverflow is like MulInt and also reports whether the product
// saturated.
func (p Point) MulIntOverflow(n int64) (Point, bool) {
	if p == 0 || n == 0 {
		return Zero, false
	}

	r := int64(p) * n
	if r/n != int64(p) || (int64(p) == math.MinInt64 && n == -1) {
		return saturate((p < 0) != (n < 0)), true
	}

	return Point(r), false
}

// Floor returns the largest integer not greater than p.
func (p Point) Floor() int64 {
	return int64(p) >> fracBits
}

// Frac returns the fractional part of p, always in [0, One).
func (p Point) Frac() Point {
	return Point(int64(p) & fracMask)
}

// Cmp returns -1, 0 or +1 depending on whether p is less than, equal to or
// greater than q.
func (p Point) Cmp(q Point) int {
	switch {
	case p < q:
		return -1
	case p > q:
		return 1
	default:
		return 0
	}
}

// Min returns the smaller of p and q.
func (p Point) Min(q Point) Point {
	if q < p {
		return q
	}

	return p
}

// Float64 converts p to a float. It is for display only and must not feed
// back into simulation state.
func (p Point) Float64() float64 {
	return float64(p) / float64(One)
}

// String formats p with six decimals.
func (p Point) String() string {
	return fmt.Sprintf("%.6f", p.Float64())
}

func abs(p Point) uint64 {
	if p < 0 {
		return uint64(-(int64(p) + 1)) + 1
	}

	return uint64(p)
}

func saturate(neg bool) Point {
	if neg {
		return Min
	}

	return Max
}
