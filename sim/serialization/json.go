package serialization

import (
	"encoding/json"
	"io"

	"github.com/sarchlab/gsclock/sim/clock"
)

// JSONCodec writes snapshots as one JSON object. Unknown fields are
// rejected on decode.
type JSONCodec struct{}

// Encode writes the snapshot.
func (JSONCodec) Encode(w io.Writer, s clock.Snapshot) error {
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)

	return encoder.Encode(s)
}

// Decode reads a snapshot.
func (JSONCodec) Decode(r io.Reader) (clock.Snapshot, error) {
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()

	var s clock.Snapshot
	if err := decoder.Decode(&s); err != nil {
		return clock.Snapshot{}, err
	}

	return s, nil
}
