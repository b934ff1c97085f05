// SPDX-License-Identifier: GPL-3.0-or-later

package dhtproxy

import "sync"

// NodeStatus is the connectivity state of one address family, mutated only
// by the connectivity monitor.
type NodeStatus int

const (
	Disconnected NodeStatus = iota
	Connecting
	Connected
)

// String implements [fmt.Stringer].
func (s NodeStatus) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// ProxyInfo is the last successfully-parsed JSON document from the proxy
// root endpoint. Copy it in/out of [proxyInfoCache]; never hand out an
// interior pointer.
type ProxyInfo struct {
	NodeID      string
	PublicIP    string
	IPv4Good    uint64
	IPv4Dubious uint64
	IPv6Good    uint64
	IPv6Dubious uint64
}

// NodeStats is the per-family subset of [ProxyInfo] returned by
// [*Client.GetNodesStats].
type NodeStats struct {
	Good    uint64
	Dubious uint64
}

// proxyInfoCache guards a [ProxyInfo] behind an exclusive lock. Readers and
// writers only ever copy in/out; the lock is never held across I/O.
type proxyInfoCache struct {
	mu   sync.Mutex
	info ProxyInfo
}

// Get returns a copy of the cached [ProxyInfo].
func (c *proxyInfoCache) Get() ProxyInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.info
}

// Set replaces the cached [ProxyInfo] with a copy of info.
func (c *proxyInfoCache) Set(info ProxyInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.info = info
}
