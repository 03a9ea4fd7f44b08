package source

import "sync"

// mailbox is a single-slot buffer with overwrite semantics: publishing a
// frame while the previous one is unconsumed releases the old frame and
// counts a drop. The consumer blocks until a frame is available or the
// mailbox is closed.
//
// Latency beats completeness here: the driver always sees the freshest
// frame, never a queue of stale ones.
type mailbox struct {
	mu     sync.Mutex
	cond   *sync.Cond
	frame  *Frame
	closed bool
	drops  uint64
}

func newMailbox() *mailbox {
	m := &mailbox{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// put publishes a frame, overwriting (and releasing) any unconsumed one.
// Publishing into a closed mailbox releases the frame immediately.
func (m *mailbox) put(f *Frame) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		f.Release()
		return
	}
	if m.frame != nil {
		m.frame.Release()
		m.drops++
	}
	m.frame = f
	m.cond.Signal()
	m.mu.Unlock()
}

// take blocks until a frame is available or the mailbox is closed.
// Returns nil on close.
func (m *mailbox) take() *Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	for m.frame == nil && !m.closed {
		m.cond.Wait()
	}
	if m.frame == nil {
		return nil
	}
	f := m.frame
	m.frame = nil
	return f
}

// flush releases any pending frame without closing the mailbox.
func (m *mailbox) flush() {
	m.mu.Lock()
	if m.frame != nil {
		m.frame.Release()
		m.frame = nil
	}
	m.mu.Unlock()
}

// close releases any pending frame and wakes the consumer.
func (m *mailbox) close() {
	m.mu.Lock()
	if m.frame != nil {
		m.frame.Release()
		m.frame = nil
	}
	m.closed = true
	m.cond.Broadcast()
	m.mu.Unlock()
}

func (m *mailbox) dropCount() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.drops
}
