package bench

import (
	"fmt"
	"io"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Report - what one side measured during a round.
type Report struct {
	Backend    string        `msgpack:"backend"`
	Role       string        `msgpack:"role"`
	PID        int           `msgpack:"pid"`
	Iterations int           `msgpack:"iterations"`
	Elapsed    time.Duration `msgpack:"elapsed"`
}

// PerRoundTrip - mean time of one acquire/release exchange.
func (r Report) PerRoundTrip() time.Duration {
	if r.Iterations <= 0 {
		return 0
	}

	return r.Elapsed / time.Duration(r.Iterations)
}

// Result - both sides of one round.
type Result struct {
	Backend string
	Round   int
	Owner   Report
	Peer    Report
}

// String - one line summary.
func (r Result) String() string {
	return fmt.Sprintf("%s round %d: %d iterations, owner %s (%s/rt), peer %s (%s/rt)",
		r.Backend, r.Round, r.Owner.Iterations,
		r.Owner.Elapsed, r.Owner.PerRoundTrip(),
		r.Peer.Elapsed, r.Peer.PerRoundTrip(),
	)
}

// PeerSpec - instructions the owner hands to the peer process on its stdin.
type PeerSpec struct {
	Backend    string  `msgpack:"backend"`
	Name       string  `msgpack:"name"`
	Iterations int     `msgpack:"iterations"`
	Options    Options `msgpack:"options"`
}

func writeMessage(w io.Writer, v any) error {
	if err := msgpack.NewEncoder(w).Encode(v); err != nil {
		return fmt.Errorf("encode %T: %w", v, err)
	}

	return nil
}

func readMessage(r io.Reader, v any) error {
	if err := msgpack.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("decode %T: %w", v, err)
	}

	return nil
}
