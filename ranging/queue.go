package ranging

import (
	"sync/atomic"

	"github.com/ystepanoff/dwranging/protocol"
)

// queueItem is one received frame awaiting protocol processing.
type queueItem struct {
	frame     [protocol.FrameBufLen]byte
	length    int
	source    uint16
	kind      protocol.MessageKind
	rxTime    protocol.Timestamp
	arrivalMS int64
	processed bool
}

// intakeQueue is a lock-free single-producer/single-consumer ring between
// the radio receive callback and the engine's service context. The producer
// only writes tail, the consumer only writes head; both indices grow without
// bound and are reduced modulo the capacity on access.
type intakeQueue struct {
	items [protocol.IntakeQueueSize]queueItem
	head  atomic.Uint32
	tail  atomic.Uint32
}

// enqueue copies a frame into the ring. Returns false, leaving the ring
// untouched, when it is full.
func (q *intakeQueue) enqueue(frame []byte, source uint16, kind protocol.MessageKind, rxTime protocol.Timestamp, nowMS int64) bool {
	tail := q.tail.Load()
	if tail-q.head.Load() >= uint32(len(q.items)) {
		return false
	}
	item := &q.items[tail%uint32(len(q.items))]
	item.length = copy(item.frame[:], frame)
	item.source = source
	item.kind = kind
	item.rxTime = rxTime
	item.arrivalMS = nowMS
	item.processed = false
	q.tail.Store(tail + 1)
	return true
}

// dequeue pops the oldest frame. The item is copied out before the slot is
// released back to the producer.
func (q *intakeQueue) dequeue() (queueItem, bool) {
	var item queueItem
	head := q.head.Load()
	if head == q.tail.Load() {
		return item, false
	}
	item = q.items[head%uint32(len(q.items))]
	item.processed = true
	q.head.Store(head + 1)
	return item, true
}

func (q *intakeQueue) len() int {
	return int(q.tail.Load() - q.head.Load())
}

// clear drops everything queued. Consumer-context only.
func (q *intakeQueue) clear() {
	q.head.Store(q.tail.Load())
}

// spscRing is a small fixed-capacity single-producer/single-consumer ring
// used for the TX bookkeeping between the transmit path and the driver's
// sent callback. Same index discipline as intakeQueue.
type spscRing[T any] struct {
	items [8]T
	head  atomic.Uint32
	tail  atomic.Uint32
}

// push adds v, silently dropping it when the ring is full, which for TX
// descriptors only happens if the radio stops delivering completions at all.
func (r *spscRing[T]) push(v T) {
	tail := r.tail.Load()
	if tail-r.head.Load() >= uint32(len(r.items)) {
		return
	}
	r.items[tail%uint32(len(r.items))] = v
	r.tail.Store(tail + 1)
}

func (r *spscRing[T]) pop() (T, bool) {
	var zero T
	head := r.head.Load()
	if head == r.tail.Load() {
		return zero, false
	}
	v := r.items[head%uint32(len(r.items))]
	r.head.Store(head + 1)
	return v, true
}
