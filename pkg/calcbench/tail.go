package calcbench

import (
	"github.com/emirpasic/gods/queues/circularbuffer"
)

// buildTailLines is the number of build output lines kept for diagnostics
const buildTailLines = 5

// outputTail keeps the last lines of a process's output, dropping the oldest once full.
// It is not safe for concurrent use.
type outputTail struct {
	buf *circularbuffer.Queue
}

func newOutputTail(capacity int) *outputTail {
	return &outputTail{buf: circularbuffer.New(capacity)}
}

func (t *outputTail) add(line string) {
	t.buf.Enqueue(line)
}

// lines returns the kept lines, oldest first
func (t *outputTail) lines() []string {
	values := t.buf.Values()
	lines := make([]string, 0, len(values))
	for _, v := range values {
		lines = append(lines, v.(string))
	}
	return lines
}
