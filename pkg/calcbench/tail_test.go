package calcbench

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOutputTail(t *testing.T) {
	tail := newOutputTail(3)
	assert.Empty(t, tail.lines())

	tail.add("a")
	tail.add("b")
	assert.Equal(t, []string{"a", "b"}, tail.lines())

	tail.add("c")
	tail.add("d")
	tail.add("e")
	assert.Equal(t, []string{"c", "d", "e"}, tail.lines(), "Tail did not drop the oldest lines")
}
