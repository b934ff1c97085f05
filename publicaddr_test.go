// SPDX-License-Identifier: GPL-3.0-or-later

package dhtproxy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePublicIPPlainIPv4(t *testing.T) {
	ipv4, ipv6, port := parsePublicIP("192.168.1.42:4222")
	assert.Equal(t, "192.168.1.42", ipv4)
	assert.Equal(t, "", ipv6)
	assert.Equal(t, "4222", port)
}

func TestParsePublicIPv6Only(t *testing.T) {
	ipv4, ipv6, port := parsePublicIP("[2001:db8::1]:4222")
	assert.Equal(t, "", ipv4)
	assert.Equal(t, "2001:db8::1", ipv6)
	assert.Equal(t, "4222", port)
}

// TestParsePublicIPDualStack matches spec §8 scenario S6.
func TestParsePublicIPDualStack(t *testing.T) {
	ipv4, ipv6, port := parsePublicIP("[2001:db8::1:192.0.2.5]:4222")
	assert.Equal(t, "192.0.2.5", ipv4)
	assert.Equal(t, "2001:db8::1", ipv6)
	assert.Equal(t, "4222", port)
}

func TestParsePublicIPMalformed(t *testing.T) {
	ipv4, ipv6, port := parsePublicIP("")
	assert.Empty(t, ipv4)
	assert.Empty(t, ipv6)
	assert.Empty(t, port)
}
