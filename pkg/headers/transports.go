package headers

import (
	"fmt"
	"strings"

	"github.com/mediabridge/rtspclientsrc/pkg/base"
)

// Transports is a Transport header with multiple transports.
type Transports []Transport

// Read decodes a Transport header.
func (ts *Transports) Read(v base.HeaderValue) error {
	if len(v) == 0 {
		return fmt.Errorf("value not provided")
	}

	if len(v) > 1 {
		return fmt.Errorf("value provided multiple times (%v)", v)
	}

	v0 := v[0]
	transports := strings.Split(v0, ",") // , separated per RFC2326 section 12.39
	*ts = make([]Transport, len(transports))

	for i, transport := range transports {
		var tr Transport
		err := tr.Read(base.HeaderValue{strings.TrimLeft(transport, " ")})
		if err != nil {
			return err
		}
		(*ts)[i] = tr
	}

	return nil
}

// Write encodes a Transport header.
func (ts Transports) Write() base.HeaderValue {
	vals := make([]string, len(ts))

	for i, th := range ts {
		vals[i] = th.Write()[0]
	}

	return base.HeaderValue{strings.Join(vals, ",")}
}
