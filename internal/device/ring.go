// ABOUTME: Blocking ring buffer bridging device callbacks and block transfers
// ABOUTME: Fixed-capacity int16 ring with close semantics and overflow accounting
package device

import "sync"

// ring is a fixed-capacity sample buffer shared between a device
// callback and the pipeline worker. The capture side pushes without
// blocking (overwriting the oldest samples on overflow), the playback
// side pulls without blocking (zero-filling on underrun), and the
// worker-facing calls block.
type ring struct {
	mu       sync.Mutex
	notFull  *sync.Cond
	notEmpty *sync.Cond

	buf      []int16
	readPos  int
	writePos int
	count    int
	closed   bool
	dropped  int64 // samples overwritten before being read
}

func newRing(capacity int) *ring {
	r := &ring{buf: make([]int16, capacity)}
	r.notFull = sync.NewCond(&r.mu)
	r.notEmpty = sync.NewCond(&r.mu)
	return r
}

// push appends src without blocking, overwriting the oldest samples if
// the ring is full. Called from the capture data callback, which must
// never stall the real-time thread.
func (r *ring) push(src []int16) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}

	for _, s := range src {
		if r.count == len(r.buf) {
			// Overwrite the oldest sample.
			r.readPos = (r.readPos + 1) % len(r.buf)
			r.count--
			r.dropped++
		}
		r.buf[r.writePos] = s
		r.writePos = (r.writePos + 1) % len(r.buf)
		r.count++
	}
	r.notEmpty.Broadcast()
}

// pull copies up to len(dst) samples without blocking, zero-filling the
// remainder. Called from the playback data callback.
func (r *ring) pull(dst []int16) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for n < len(dst) && r.count > 0 {
		dst[n] = r.buf[r.readPos]
		r.readPos = (r.readPos + 1) % len(r.buf)
		r.count--
		n++
	}
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
	if n > 0 {
		r.notFull.Broadcast()
	}
	return n
}

// readBlock blocks until dst is full or the ring is closed. Returns the
// samples copied; ErrClosed only when nothing could be read.
func (r *ring) readBlock(dst []int16) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for n < len(dst) {
		for r.count == 0 && !r.closed {
			r.notEmpty.Wait()
		}
		if r.count == 0 && r.closed {
			if n == 0 {
				return 0, ErrClosed
			}
			return n, nil
		}
		for n < len(dst) && r.count > 0 {
			dst[n] = r.buf[r.readPos]
			r.readPos = (r.readPos + 1) % len(r.buf)
			r.count--
			n++
		}
		r.notFull.Broadcast()
	}
	return n, nil
}

// writeBlock blocks until all of src is queued or the ring is closed.
// Returns the samples accepted; ErrClosed when the ring closed first.
func (r *ring) writeBlock(src []int16) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for n < len(src) {
		for r.count == len(r.buf) && !r.closed {
			r.notFull.Wait()
		}
		if r.closed {
			return n, ErrClosed
		}
		for n < len(src) && r.count < len(r.buf) {
			r.buf[r.writePos] = src[n]
			r.writePos = (r.writePos + 1) % len(r.buf)
			r.count++
			n++
		}
		r.notEmpty.Broadcast()
	}
	return n, nil
}

// close wakes all blocked readers and writers. Idempotent.
func (r *ring) close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.notEmpty.Broadcast()
	r.notFull.Broadcast()
}

// droppedSamples reports how many samples were overwritten unread.
func (r *ring) droppedSamples() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}
