// SPDX-License-Identifier: GPL-3.0-or-later

package dhtproxy

import (
	"encoding/hex"
	"fmt"
)

// InfoHashSize is the length, in bytes, of an [InfoHash].
const InfoHashSize = 20

// InfoHash identifies a DHT key. It is serialised as a lowercase hex string
// in proxy URL paths (e.g. GET /<key_hex>).
type InfoHash [InfoHashSize]byte

// String returns the lowercase hex representation used in proxy URL paths.
func (h InfoHash) String() string {
	return hex.EncodeToString(h[:])
}

// ParseInfoHash decodes a hex string into an [InfoHash].
//
// The string must decode to exactly [InfoHashSize] bytes.
func ParseInfoHash(s string) (InfoHash, error) {
	var h InfoHash
	raw, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("dhtproxy: invalid info hash %q: %w", s, err)
	}
	if len(raw) != InfoHashSize {
		return h, fmt.Errorf("dhtproxy: invalid info hash %q: want %d bytes, got %d", s, InfoHashSize, len(raw))
	}
	copy(h[:], raw)
	return h, nil
}
