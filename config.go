// SPDX-License-Identifier: GPL-3.0-or-later

package dhtproxy

import (
	"net"
	"time"

	"github.com/dwarri/dhtproxy/errclass"
)

// Config holds common configuration for dhtproxy operations.
//
// Pass this to constructor functions to pre-wire dependencies.
// All fields have sensible defaults set by [NewConfig].
type Config struct {
	// Dialer is used by [*ConnectFunc].
	//
	// Set by [NewConfig] to [*net.Dialer].
	Dialer Dialer

	// ErrClassifier classifies errors for structured logging.
	//
	// Set by [NewConfig] to [ErrClassifierFunc] wrapping [errclass.New].
	ErrClassifier ErrClassifier

	// HostResolver resolves the proxy hostname and, on [*Client.GetPublicAddress],
	// the parsed public address.
	//
	// Set by [NewConfig] to [net.DefaultResolver].
	HostResolver HostResolver

	// TimeNow returns the current time.
	//
	// Set by [NewConfig] to [time.Now].
	TimeNow func() time.Time
}

// NewConfig creates a [*Config] with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Dialer:        &net.Dialer{},
		ErrClassifier: ErrClassifierFunc(errclass.New),
		HostResolver:  net.DefaultResolver,
		TimeNow:       time.Now,
	}
}
