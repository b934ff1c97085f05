// SPDX-License-Identifier: GPL-3.0-or-later

package dhtproxy

import "strings"

// parsePublicIP parses the three formats opendht's proxy uses for the
// "public_ip" field: "[<v6>]:<port>", "[<v6>:<v4>]:<port>", or
// "<v4>:<port>". Returns the IPv4 address, IPv6 address (either may be
// empty), and port substrings.
//
// The original C++ source truncates the address by one character before
// the separating colon in both the dual-stack and the plain-IPv4 branches
// (`ips.substr(0, ipv4And6Separator - 1)` / `public_ip.substr(0, endIp -
// 1)`) — flagged as an open question in spec §9. Resolved here in favor of
// the literal testable scenario (spec §8 S6), which expects the untruncated
// address (`"2001:db8::1"`, not `"2001:db8::"`): this implementation fixes
// the bug rather than reproducing it.
func parsePublicIP(raw string) (ipv4Address, ipv6Address, port string) {
	if len(raw) < 2 {
		return "", "", ""
	}

	if raw[0] == '[' {
		endIP := strings.IndexByte(raw, ']')
		if endIP < 0 || len(raw) <= endIP+2 {
			return "", "", ""
		}
		port = raw[endIP+2:]
		ips := raw[1:endIP]
		if strings.Contains(ips, ".") {
			sep := strings.LastIndexByte(ips, ':')
			ipv4Address = ips[sep+1:]
			ipv6Address = ips[:sep]
		} else {
			ipv6Address = ips
		}
		return
	}

	sep := strings.LastIndexByte(raw, ':')
	if sep < 0 {
		return "", "", ""
	}
	port = raw[sep+1:]
	ipv4Address = raw[:sep]
	return
}
