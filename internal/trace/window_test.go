package trace_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/waabox/gitlab-trace/internal/trace"
)

func TestTail_ZeroIsIdentity(t *testing.T) {
	in := []byte("one\ntwo\nthree\n")
	assert.Equal(t, in, trace.Tail(0)(in))
	assert.Equal(t, in, trace.Tail(-3)(in))
	assert.Equal(t, in, trace.Identity(in))
}

func TestTail_KeepsLastRecordsWithTerminators(t *testing.T) {
	in := []byte("1\n2\n3\n4\n5\n")
	assert.Equal(t, "4\n5\n", string(trace.Tail(2)(in)))
}

func TestLastLines_FewerRecordsThanRequested(t *testing.T) {
	in := []byte("1\n2\n")
	assert.Equal(t, "1\n2\n", string(trace.LastLines(in, 5)))
	assert.Equal(t, "1\n2\n", string(trace.LastLines(in, 2)))
}

func TestLastLines_MixedTerminators(t *testing.T) {
	in := []byte("a\r\nb\rc")
	assert.Equal(t, "b\rc", string(trace.LastLines(in, 2)))
	assert.Equal(t, "c", string(trace.LastLines(in, 1)))
}

func TestLastLines_Empty(t *testing.T) {
	assert.Empty(t, trace.LastLines(nil, 3))
}
