// SPDX-License-Identifier: GPL-3.0-or-later

package dhtproxy

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DecodeValue parses a single newline-delimited fragment streamed from the
// proxy into a [Value]. Parse failures are returned as plain errors: callers
// treat them as soft, per-fragment failures and keep draining the stream.
func DecodeValue(raw []byte) (*Value, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, fmt.Errorf("dhtproxy: empty value fragment")
	}
	var v Value
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("dhtproxy: malformed value: %w", err)
	}
	return &v, nil
}

// EncodeValue serialises a [Value] for a PUT request body, appending the
// trailing newline the proxy protocol expects and setting "permanent":true
// when requested.
func EncodeValue(v *Value, permanent bool) ([]byte, error) {
	v.Permanent = permanent
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("dhtproxy: cannot encode value: %w", err)
	}
	return append(body, '\n'), nil
}

// tokenDoc is the server response to a SUBSCRIBE request.
type tokenDoc struct {
	Token uint64 `json:"token"`
}

// DecodeToken parses the single-line `{"token": U}` document returned by a
// SUBSCRIBE request. Returns an error if the fragment does not carry a
// "token" field.
func DecodeToken(raw []byte) (uint64, error) {
	raw = bytes.TrimSpace(raw)
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return 0, fmt.Errorf("dhtproxy: malformed token document: %w", err)
	}
	if _, ok := probe["token"]; !ok {
		return 0, fmt.Errorf("dhtproxy: token document missing %q field", "token")
	}
	var doc tokenDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return 0, fmt.Errorf("dhtproxy: malformed token value: %w", err)
	}
	return doc.Token, nil
}

// familyStats carries the "good"/"dubious" node counters for one address
// family, as embedded in the proxy-info document.
type familyStats struct {
	Good    uint64 `json:"good"`
	Dubious uint64 `json:"dubious"`
}

// proxyInfoDoc mirrors the proxy root endpoint's JSON document.
type proxyInfoDoc struct {
	NodeID   string      `json:"node_id"`
	PublicIP string      `json:"public_ip"`
	IPv4     familyStats `json:"ipv4"`
	IPv6     familyStats `json:"ipv6"`
}

// DecodeProxyInfo parses the proxy root endpoint's JSON document.
func DecodeProxyInfo(raw []byte) (*ProxyInfo, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, fmt.Errorf("dhtproxy: empty proxy info document")
	}
	var doc proxyInfoDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("dhtproxy: malformed proxy info: %w", err)
	}
	return &ProxyInfo{
		NodeID:      doc.NodeID,
		PublicIP:    doc.PublicIP,
		IPv4Good:    doc.IPv4.Good,
		IPv4Dubious: doc.IPv4.Dubious,
		IPv6Good:    doc.IPv6.Good,
		IPv6Dubious: doc.IPv6.Dubious,
	}, nil
}

// pushNotificationDoc mirrors the JSON payload a host push transport
// (APNs/FCM or similar) hands to [*Client.PushNotificationReceivedJSON].
type pushNotificationDoc struct {
	Token uint64 `json:"token"`
}

// DecodePushNotification parses the JSON document delivered by the host
// push transport, per spec §4.I's `pushNotificationReceived(json)` entry
// point: `{"token": U}` for an ordinary wake-up, `{"token": U, "timeout": 1}`
// when the server dropped the subscription and it must be re-established.
// The "timeout" field's presence, not its value, drives [PushNotification.HasTimeout].
func DecodePushNotification(raw []byte) (PushNotification, error) {
	raw = bytes.TrimSpace(raw)
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return PushNotification{}, fmt.Errorf("dhtproxy: malformed push notification: %w", err)
	}
	if _, ok := probe["token"]; !ok {
		return PushNotification{}, fmt.Errorf("dhtproxy: push notification missing %q field", "token")
	}
	var doc pushNotificationDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return PushNotification{}, fmt.Errorf("dhtproxy: malformed push notification: %w", err)
	}
	_, hasTimeout := probe["timeout"]
	return PushNotification{Token: doc.Token, HasTimeout: hasTimeout}, nil
}

// pushPreamble is the single-line body sent with a SUBSCRIBE request.
type pushPreamble struct {
	Key        string `json:"key"`
	CallbackID uint64 `json:"callback_id"`
	IsAndroid  bool   `json:"isAndroid"`
}

// Platform selects how [EncodePushPreamble] fills the "isAndroid" field.
// The original client set this at compile time (#ifdef __ANDROID__ /
// __APPLE__); here it is an explicit configuration input (see spec Open
// Question in §9), so callers on neither platform can still pick a value.
type Platform int

const (
	PlatformOther Platform = iota
	PlatformAndroid
	PlatformApple
)

// EncodePushPreamble serialises the SUBSCRIBE preamble body. Embedded
// newlines in the JSON encoding (there are none by construction, but the
// contract is preserved for robustness against future fields) are replaced
// by spaces so the body remains a single `\n`-delimited line, then a
// trailing newline is appended.
func EncodePushPreamble(deviceKey string, callbackID uint64, platform Platform) ([]byte, error) {
	doc := pushPreamble{
		Key:        deviceKey,
		CallbackID: callbackID,
		IsAndroid:  platform == PlatformAndroid,
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("dhtproxy: cannot encode push preamble: %w", err)
	}
	body = bytes.ReplaceAll(body, []byte("\n"), []byte(" "))
	return append(body, '\n'), nil
}
