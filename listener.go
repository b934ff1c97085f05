// SPDX-License-Identifier: GPL-3.0-or-later

package dhtproxy

import (
	"sync"
	"sync/atomic"
)

// ListenerMode distinguishes a long-lived streamed LISTEN from a
// push-backed SUBSCRIBE.
type ListenerMode int

const (
	// ListenerStream holds a long-lived streaming request open and parses
	// values as they arrive.
	ListenerStream ListenerMode = iota

	// ListenerPush subscribes once, stores the server-issued push token,
	// and receives values out-of-band via [*Client.PushNotificationReceived].
	ListenerPush
)

// Listener tracks one outstanding get/listen subscription.
//
// State machine: New -> Active -> Restarting -> Active -> Cancelled (stream
// mode); Subscribing -> Subscribed -> Resubscribing -> Subscribed (push
// mode substates). Cancelled is absorbing.
type Listener struct {
	key      InfoHash
	callback ValueCallback
	filter   ValueFilter
	mode     ListenerMode

	mu        sync.Mutex
	token     uint64
	handle    *RequestHandle // current worker's request, nil once joined
	done      chan struct{}  // closed when the current worker exits
	pushToken uint64
	hasPush   atomic.Bool
	cancelled atomic.Bool
}

// setWorker rebinds the listener to a freshly spawned worker's request
// handle and completion channel, used both by the initial spawn and by
// [*listenerRegistry.restartAll].
func (l *Listener) setWorker(handle *RequestHandle, done chan struct{}) {
	l.mu.Lock()
	l.handle = handle
	l.done = done
	l.mu.Unlock()
}

// setPushToken records the server-issued token from a SUBSCRIBE response.
func (l *Listener) setPushToken(token uint64) {
	l.mu.Lock()
	l.pushToken = token
	l.mu.Unlock()
	l.hasPush.Store(true)
}

// loadPushToken returns the listener's push token, if one has been set.
func (l *Listener) loadPushToken() (uint64, bool) {
	if !l.hasPush.Load() {
		return 0, false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pushToken, true
}

// isCancelled reports whether the listener's local cancel flag is set.
// Stream-mode workers poll this between chunks to exit their fetch loop
// when the matching filter/callback has returned false.
func (l *Listener) isCancelled() bool {
	return l.cancelled.Load()
}

// setCancelled sets the local cancel flag, observed by the listener's own
// worker loop.
func (l *Listener) setCancelled() {
	l.cancelled.Store(true)
}

// cancel closes the listener's current request handle, if any.
func (l *Listener) cancel() {
	l.mu.Lock()
	handle := l.handle
	l.mu.Unlock()
	if handle != nil {
		handle.Cancel()
	}
}

// join blocks until the listener's current worker has exited.
func (l *Listener) join() {
	l.mu.Lock()
	done := l.done
	l.mu.Unlock()
	if done != nil {
		<-done
	}
}

// listenerRegistry is a collection of listeners protected by a dedicated
// mutex plus a monotonically increasing token counter.
type listenerRegistry struct {
	mu        sync.Mutex
	nextToken uint64
	listeners map[uint64]*Listener
}

func newListenerRegistry() *listenerRegistry {
	return &listenerRegistry{listeners: make(map[uint64]*Listener)}
}

// register appends l and returns a fresh token.
func (r *listenerRegistry) register(l *Listener) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextToken++
	l.token = r.nextToken
	r.listeners[l.token] = l
	return l.token
}

// find looks up a listener by its registry token.
func (r *listenerRegistry) find(token uint64) (*Listener, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.listeners[token]
	return l, ok
}

// findByPushToken looks up a listener by its server-issued push token.
func (r *listenerRegistry) findByPushToken(pushToken uint64) (*Listener, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.listeners {
		if tok, ok := l.loadPushToken(); ok && tok == pushToken {
			return l, true
		}
	}
	return nil, false
}

// erase removes the listener for token after joining its worker. Returns
// false if no matching token was found.
func (r *listenerRegistry) erase(token uint64) bool {
	r.mu.Lock()
	l, ok := r.listeners[token]
	if ok {
		delete(r.listeners, token)
	}
	r.mu.Unlock()
	if !ok {
		return false
	}
	l.setCancelled()
	l.cancel()
	l.join()
	return true
}

// restartAll closes every listener's current request and joins its worker
// (cancelled listeners are skipped), then calls spawn to
// rebuild its request (method LISTEN) and start a fresh worker reusing the
// stored callback and filter. Used by the connectivity monitor only.
func (r *listenerRegistry) restartAll(spawn func(l *Listener)) {
	r.mu.Lock()
	all := make([]*Listener, 0, len(r.listeners))
	for _, l := range r.listeners {
		all = append(all, l)
	}
	r.mu.Unlock()

	for _, l := range all {
		if l.isCancelled() {
			continue
		}
		l.cancel()
		l.join()
		spawn(l)
	}
}

// shutdown cancels and joins every listener, then empties the registry.
func (r *listenerRegistry) shutdown() {
	r.mu.Lock()
	all := make([]*Listener, 0, len(r.listeners))
	for _, l := range r.listeners {
		all = append(all, l)
	}
	r.listeners = make(map[uint64]*Listener)
	r.mu.Unlock()

	for _, l := range all {
		l.setCancelled()
		l.cancel()
		l.join()
	}
}
