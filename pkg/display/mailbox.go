package display

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"gocv.io/x/gocv"
)

// ErrClosed is returned by Take once the mailbox has been closed.
var ErrClosed = errors.New("display: mailbox closed")

// Mailbox is a single-slot hand-off between one producer and one consumer.
// Put replaces any frame the consumer has not taken yet.
type Mailbox struct {
	mu      sync.Mutex
	mat     gocv.Mat
	full    bool
	closed  bool
	ready   chan struct{}
	dropped atomic.Uint64
}

// NewMailbox returns an empty mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{ready: make(chan struct{}, 1)}
}

// Put stores a copy of img, discarding the previous frame if it was never
// taken. It does nothing after Close.
func (b *Mailbox) Put(img gocv.Mat) {
	if img.Empty() {
		return
	}
	clone := img.Clone()

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		clone.Close()
		return
	}
	if b.full {
		b.mat.Close()
		b.dropped.Add(1)
	}
	b.mat = clone
	b.full = true
	b.mu.Unlock()

	select {
	case b.ready <- struct{}{}:
	default:
	}
}

// TryTake returns the pending frame, if any. The caller owns it.
func (b *Mailbox) TryTake() (gocv.Mat, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.full {
		return gocv.Mat{}, false
	}
	m := b.mat
	b.mat = gocv.Mat{}
	b.full = false
	return m, true
}

// Take waits for a frame. The caller owns it.
func (b *Mailbox) Take(ctx context.Context) (gocv.Mat, error) {
	for {
		if m, ok := b.TryTake(); ok {
			return m, nil
		}

		b.mu.Lock()
		closed := b.closed
		b.mu.Unlock()
		if closed {
			return gocv.Mat{}, ErrClosed
		}

		select {
		case <-ctx.Done():
			return gocv.Mat{}, ctx.Err()
		case <-b.ready:
		}
	}
}

// Dropped returns how many frames were replaced before being taken.
func (b *Mailbox) Dropped() uint64 {
	return b.dropped.Load()
}

// Close releases any pending frame and wakes a waiting Take.
func (b *Mailbox) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	if b.full {
		b.mat.Close()
		b.full = false
	}
	b.mu.Unlock()

	select {
	case b.ready <- struct{}{}:
	default:
	}
}
