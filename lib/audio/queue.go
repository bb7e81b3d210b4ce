package audio

import (
	"errors"
	"sync"
)

var ErrQueueClosed = errors.New("audio queue is closed")

// Queue is an unbounded queue of sample blocks between one producer and one consumer.
// Push never blocks, so an audio callback can hand over data
// without waiting for the tick loop and vice versa.
type Queue struct {
	mutex  sync.Mutex
	blocks [][]Sample
	ready  chan struct{}
	closed bool
}

func NewQueue() *Queue {
	return &Queue{
		blocks: make([][]Sample, 0, 8),
		ready:  make(chan struct{}, 1),
	}
}

// Push appends a block of samples.
// The block is owned by the queue afterwards.
func (q *Queue) Push(block []Sample) error {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	q.blocks = append(q.blocks, block)
	select {
	case q.ready <- struct{}{}:
	default:
	}
	return nil
}

// TryPop removes the oldest block without waiting.
func (q *Queue) TryPop() (block []Sample, ok bool) {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	if len(q.blocks) == 0 {
		return
	}
	block, ok = q.blocks[0], true
	q.blocks[0] = nil
	q.blocks = q.blocks[1:]
	return
}

// Drain removes every waiting block and passes each one to fn in order.
func (q *Queue) Drain(fn func(block []Sample)) (n int) {
	q.mutex.Lock()
	blocks := q.blocks
	q.blocks = make([][]Sample, 0, cap(blocks))
	q.mutex.Unlock()
	for _, block := range blocks {
		fn(block)
	}
	return len(blocks)
}

// Len returns the number of waiting blocks.
func (q *Queue) Len() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return len(q.blocks)
}

// Ready is signalled after a Push.
// The consumer should drain the queue after every signal,
// since multiple pushes may share one signal.
func (q *Queue) Ready() <-chan struct{} {
	return q.ready
}

// Close rejects further pushes and discards waiting blocks.
func (q *Queue) Close() {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.blocks = nil
	close(q.ready)
}

// Closed reports whether Close has been called.
func (q *Queue) Closed() bool {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return q.closed
}
