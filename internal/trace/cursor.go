package trace

import "bytes"

// Cursor tracks how much of a job's trace has already been emitted.
//
// Known is always a prefix of the server's log, except right after a round in
// which Truncated was set; in that round Known was treated as empty.
type Cursor struct {
	Known     []byte
	Truncated bool
}

// Advance consumes a new full snapshot and returns the bytes not emitted yet.
// If the snapshot does not extend Known, the comparison base is reset to empty
// for this round and Truncated is set.
func (c *Cursor) Advance(snapshot []byte) []byte {
	base := c.Known
	c.Truncated = !bytes.HasPrefix(snapshot, base)
	if c.Truncated {
		base = nil
	}
	delta := snapshot[len(base):]
	c.Known = snapshot
	return delta
}
