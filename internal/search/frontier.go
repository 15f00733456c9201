package search

import "github.com/Aman-CERP/pathmap/internal/graph"

// frontier is a bounded FIFO of nodes backed by a ring buffer.
// It is owned by the engine loop and not safe for concurrent use.
type frontier struct {
	buf  []*graph.Node
	head int
	size int
}

func newFrontier(capacity int) *frontier {
	return &frontier{buf: make([]*graph.Node, capacity)}
}

func (f *frontier) Len() int  { return f.size }
func (f *frontier) Cap() int  { return len(f.buf) }
func (f *frontier) Free() int { return len(f.buf) - f.size }

// PushAll appends every node or none of them.
func (f *frontier) PushAll(nodes []*graph.Node) bool {
	if len(nodes) > f.Free() {
		return false
	}
	for _, n := range nodes {
		f.buf[(f.head+f.size)%len(f.buf)] = n
		f.size++
	}
	return true
}

// Peek returns the head without removing it.
func (f *frontier) Peek() *graph.Node {
	if f.size == 0 {
		return nil
	}
	return f.buf[f.head]
}

// Pop removes and returns the head.
func (f *frontier) Pop() *graph.Node {
	if f.size == 0 {
		return nil
	}
	n := f.buf[f.head]
	f.buf[f.head] = nil
	f.head = (f.head + 1) % len(f.buf)
	f.size--
	return n
}

// Rotate moves the head to the tail.
func (f *frontier) Rotate() {
	if f.size < 2 {
		return
	}
	n := f.Pop()
	f.PushAll([]*graph.Node{n})
}

// Any reports whether some queued node satisfies fn.
func (f *frontier) Any(fn func(*graph.Node) bool) bool {
	for i := 0; i < f.size; i++ {
		if fn(f.buf[(f.head+i)%len(f.buf)]) {
			return true
		}
	}
	return false
}
