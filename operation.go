// SPDX-License-Identifier: GPL-3.0-or-later

package dhtproxy

import (
	"sync"
	"sync/atomic"
)

// operation tracks one in-flight request whose worker runs in the
// background; in this package only [*Client.Get] registers one ([*Client.Put]
// runs synchronously and listeners are tracked by the listener registry).
// Its worker goroutine sets finished (and ok) exactly once, then closes done.
type operation struct {
	handle *RequestHandle // may be nil if the request never dialed

	finished atomic.Bool
	ok       atomic.Bool
	done     chan struct{}
}

func newOperation(handle *RequestHandle) *operation {
	return &operation{handle: handle, done: make(chan struct{})}
}

// setFinished records the operation's outcome. Safe to call at most once;
// callers own that invariant (the worker goroutine calls it on its own
// exit path).
func (o *operation) setFinished(ok bool) {
	o.ok.Store(ok)
	o.finished.Store(true)
	close(o.done)
}

// join blocks until the operation's worker goroutine has exited.
func (o *operation) join() {
	<-o.done
}

// cancel closes the operation's request handle, if any, unblocking a
// worker blocked in [*RequestHandle.FetchChunk]. Idempotent.
func (o *operation) cancel() {
	if o.handle != nil {
		o.handle.Cancel()
	}
}

// operationRegistry is a collection of operations protected by a dedicated
// mutex, reaped on every [*Client.Periodic] tick.
type operationRegistry struct {
	mu  sync.Mutex
	set map[*operation]struct{}
}

func newOperationRegistry() *operationRegistry {
	return &operationRegistry{set: make(map[*operation]struct{})}
}

// register adds op to the registry.
func (r *operationRegistry) register(op *operation) {
	r.mu.Lock()
	r.set[op] = struct{}{}
	r.mu.Unlock()
}

// reap cancels (defensive close), joins, and erases every operation whose
// finished flag is set. Never holds the lock across I/O or joins.
func (r *operationRegistry) reap() {
	r.mu.Lock()
	var finished []*operation
	for op := range r.set {
		if op.finished.Load() {
			finished = append(finished, op)
			delete(r.set, op)
		}
	}
	r.mu.Unlock()

	for _, op := range finished {
		op.cancel()
		op.join()
	}
}

// shutdown cancels and joins every registered operation regardless of
// state, then empties the registry.
func (r *operationRegistry) shutdown() {
	r.mu.Lock()
	all := make([]*operation, 0, len(r.set))
	for op := range r.set {
		all = append(all, op)
	}
	r.set = make(map[*operation]struct{})
	r.mu.Unlock()

	for _, op := range all {
		op.cancel()
		op.join()
	}
}
