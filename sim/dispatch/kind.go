package dispatch

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is the frequency of a boundary.
type Kind int

// Boundary kinds, in dispatch order.
const (
	Hour Kind = iota
	Day
	Week
	Month
	Year

	NumKinds = 5
)

// ErrInvalidKind is returned for a Kind outside the known set.
var ErrInvalidKind = errors.New("dispatch: invalid boundary kind")

var kindNames = [NumKinds]string{"hour", "day", "week", "month", "year"}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k >= Hour && k <= Year
}

func (k Kind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("Kind(%d)", int(k))
	}

	return kindNames[k]
}

// ParseKind converts a name such as "day" to a Kind.
func ParseKind(s string) (Kind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range kindNames {
		if n == name {
			return Kind(i), nil
		}
	}

	return 0, fmt.Errorf("%w: %q", ErrInvalidKind, s)
}
