// SPDX-License-Identifier: GPL-3.0-or-later

package dhtproxy

import (
	"context"
	"sync/atomic"
	"time"
)

// connectivityMonitor owns the two named scheduler entries that keep
// [ProxyInfo] and per-family [NodeStatus] fresh, and triggers listener
// restarts on reconnect.
//
// proxyFetch performs the synchronous GET / round trip; restartAll is
// [*listenerRegistry.restartAll] bound to the facade's spawn function.
// Both are injected so this type has no direct dependency on [*Client].
type connectivityMonitor struct {
	scheduler  *Scheduler
	proxyFetch func(ctx context.Context) (*ProxyInfo, error)
	restartAll func()
	cache      *proxyInfoCache

	statusV4 atomic.Int32
	statusV6 atomic.Int32

	nextProxyConfirmation       SchedulerHandle
	nextConnectivityConfirmation SchedulerHandle
}

const (
	proxyConfirmationInitialDelay       = 5 * time.Second
	proxyConfirmationConnectedInterval  = time.Hour
	proxyConfirmationDisconnectedInterval = 5 * time.Second

	connectivityConfirmationInitialDelay = 5 * time.Second
	connectivityConfirmationInterval     = 3 * time.Second
)

func newConnectivityMonitor(
	scheduler *Scheduler,
	cache *proxyInfoCache,
	proxyFetch func(ctx context.Context) (*ProxyInfo, error),
	restartAll func(),
) *connectivityMonitor {
	m := &connectivityMonitor{
		scheduler:  scheduler,
		proxyFetch: proxyFetch,
		restartAll: restartAll,
		cache:      cache,
	}
	m.statusV4.Store(int32(Disconnected))
	m.statusV6.Store(int32(Disconnected))

	now := scheduler.Now()
	m.nextProxyConfirmation = scheduler.Add(now.Add(proxyConfirmationInitialDelay), m.runProxyConfirmation)
	m.nextConnectivityConfirmation = scheduler.Add(now.Add(connectivityConfirmationInitialDelay), m.runConnectivityConfirmation)
	return m
}

// StatusV4 returns the current IPv4 [NodeStatus].
func (m *connectivityMonitor) StatusV4() NodeStatus {
	return NodeStatus(m.statusV4.Load())
}

// StatusV6 returns the current IPv6 [NodeStatus].
func (m *connectivityMonitor) StatusV6() NodeStatus {
	return NodeStatus(m.statusV6.Load())
}

// isConnected reports whether either family is currently Connected.
func (m *connectivityMonitor) isConnected() bool {
	return m.StatusV4() == Connected || m.StatusV6() == Connected
}

// nudge edits nextConnectivityConfirmation to run on the next tick,
// giving failed get/put/listen operations a fast path to a re-probe
// without waiting out the full 3s interval.
func (m *connectivityMonitor) nudge() {
	m.scheduler.Edit(m.nextConnectivityConfirmation, m.scheduler.Now())
}

// runProxyConfirmation re-probes connectivity, triggers restartAll on a
// Disconnected->Connected transition, and re-aims itself to +1h when
// connected or +5s when both families are Disconnected.
func (m *connectivityMonitor) runProxyConfirmation() {
	wasConnected := m.isConnected()
	m.getConnectivityStatus()
	nowConnected := m.isConnected()

	if !wasConnected && nowConnected {
		m.restartAll()
	}

	interval := proxyConfirmationDisconnectedInterval
	if nowConnected {
		interval = proxyConfirmationConnectedInterval
	}
	m.scheduler.Edit(m.nextProxyConfirmation, m.scheduler.Now().Add(interval))
}

// runConnectivityConfirmation re-probes connectivity and unconditionally
// re-aims itself to +3s.
func (m *connectivityMonitor) runConnectivityConfirmation() {
	m.getConnectivityStatus()
	m.scheduler.Edit(m.nextConnectivityConfirmation, m.scheduler.Now().Add(connectivityConfirmationInterval))
}

// getConnectivityStatus issues a synchronous proxy-info fetch and derives
// per-family status. On failure, both statuses become Disconnected and
// nextProxyConfirmation is edited to now to force an immediate retry.
func (m *connectivityMonitor) getConnectivityStatus() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	info, err := m.proxyFetch(ctx)
	if err != nil {
		m.statusV4.Store(int32(Disconnected))
		m.statusV6.Store(int32(Disconnected))
		m.scheduler.Edit(m.nextProxyConfirmation, m.scheduler.Now())
		return
	}

	v4 := Disconnected
	if info.IPv4Good+info.IPv4Dubious > 0 {
		v4 = Connected
	}
	v6 := Disconnected
	if info.IPv6Good+info.IPv6Dubious > 0 {
		v6 = Connected
	}
	m.statusV4.Store(int32(v4))
	m.statusV6.Store(int32(v6))
	m.cache.Set(*info)
}
