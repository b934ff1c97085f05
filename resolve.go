// SPDX-License-Identifier: GPL-3.0-or-later

package dhtproxy

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/netip"
)

// HostResolver abstracts hostname resolution so tests can stub DNS instead
// of touching the network, mirroring the abstraction [Dialer] provides for
// [*ConnectFunc].
//
// [*net.Resolver] satisfies this interface.
type HostResolver interface {
	LookupHost(ctx context.Context, host string) (addrs []string, err error)
}

var _ HostResolver = (*net.Resolver)(nil)

// resolveAddrPort resolves a "host:port" string to a [netip.AddrPort],
// picking the resolver's first returned address. If host is already a
// literal IP address, the resolver is typically a no-op pass-through.
func resolveAddrPort(ctx context.Context, resolver HostResolver, hostport string) (netip.AddrPort, error) {
	host, port, err := net.SplitHostPort(hostport)
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("dhtproxy: invalid proxy address %q: %w", hostport, err)
	}
	addrs, err := resolver.LookupHost(ctx, host)
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("dhtproxy: cannot resolve %q: %w", host, err)
	}
	if len(addrs) == 0 {
		return netip.AddrPort{}, fmt.Errorf("dhtproxy: no addresses for %q", host)
	}
	addr, err := netip.ParseAddr(addrs[0])
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("dhtproxy: invalid resolved address %q: %w", addrs[0], err)
	}
	portNum, err := net.LookupPort("tcp", port)
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("dhtproxy: invalid port %q: %w", port, err)
	}
	return netip.AddrPortFrom(addr, uint16(portNum)), nil
}

// NewClientWithHostname resolves hostport (a "host:port" string, where host
// may be a DNS name or a literal IP) via cfg.HostResolver and constructs a
// [*Client] against the result, using the hostname as the HTTP Host header
// and TLS server name. This is the entry point for callers that only know
// the proxy by name, mirroring [NewClient] for callers that already hold a
// resolved [netip.AddrPort].
func NewClientWithHostname(ctx context.Context, cfg *Config, hostport string, tlsConfig *tls.Config, deviceKey string, platform Platform, logger SLogger) (*Client, error) {
	addr, err := resolveAddrPort(ctx, cfg.HostResolver, hostport)
	if err != nil {
		return nil, err
	}
	host, _, err := net.SplitHostPort(hostport)
	if err != nil {
		return nil, fmt.Errorf("dhtproxy: invalid proxy address %q: %w", hostport, err)
	}
	return NewClient(cfg, addr, host, tlsConfig, deviceKey, platform, logger), nil
}
