package trace

// Windower reduces the first fetched trace to the part worth showing.
type Windower func([]byte) []byte

// Identity returns the trace unchanged.
func Identity(b []byte) []byte {
	return b
}

// Tail returns a Windower keeping the last n line records; n <= 0 keeps everything.
func Tail(n int) Windower {
	if n <= 0 {
		return Identity
	}
	return func(b []byte) []byte {
		return LastLines(b, n)
	}
}

// LastLines returns the last n line records of b with their terminators.
// Records end at "\n", "\r\n" or a lone "\r"; a trailing unterminated record counts.
// If b holds fewer than n records it is returned unmodified.
func LastLines(b []byte, n int) []byte {
	if n <= 0 {
		return b
	}
	starts := lineStarts(b)
	if len(starts) <= n {
		return b
	}
	return b[starts[len(starts)-n]:]
}

// lineStarts returns the offset of every line record in b.
func lineStarts(b []byte) []int {
	if len(b) == 0 {
		return nil
	}
	starts := []int{0}
	for i := 0; i < len(b); i++ {
		switch b[i] {
		case '\r':
			if i+1 < len(b) && b[i+1] == '\n' {
				i++
			}
		case '\n':
		default:
			continue
		}
		if i+1 < len(b) {
			starts = append(starts, i+1)
		}
	}
	return starts
}
