// SPDX-License-Identifier: GPL-3.0-or-later

// Package errclass classifies Go errors into short, OS-independent labels
// ("ETIMEDOUT", "ECONNRESET", ...) suitable for structured log analysis.
//
// Classification never drives control flow in dhtproxy: the facade's error
// handling (Transport/Protocol/Parse/Cancelled/Configuration, see spec §7)
// is based on typed sentinels and status codes, not on these labels. This
// package exists purely to make logs greppable across platforms.
package errclass

import (
	"context"
	"errors"
	"net"
	"os"
	"syscall"
)

// New classifies err into a short label. It returns "" if err is nil and
// "EUNKNOWN" if err is not recognized.
//
// Use as: cfg.ErrClassifier = dhtproxy.ErrClassifierFunc(errclass.New)
func New(err error) string {
	if err == nil {
		return ""
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return "ETIMEDOUT"
	}
	if errors.Is(err, context.Canceled) {
		return "ECANCELED"
	}
	if errors.Is(err, net.ErrClosed) {
		return "ECONNABORTED"
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "ETIMEDOUT"
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		return classifyErrno(errno)
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return "ETIMEDOUT"
		}
		if dnsErr.IsNotFound {
			return "EAI_NONAME"
		}
		return "EAI_FAIL"
	}

	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return classifyErrno(pathErr.Err)
	}

	return "EUNKNOWN"
}

// classifyErrno maps an error that may wrap a platform errno to a label
// using the OS-specific constants in unix.go/windows.go. Falls back to
// "EUNKNOWN" for anything not in that table.
func classifyErrno(err error) string {
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return "EUNKNOWN"
	}
	switch errno {
	case errEADDRNOTAVAIL:
		return "EADDRNOTAVAIL"
	case errEADDRINUSE:
		return "EADDRINUSE"
	case errECONNABORTED:
		return "ECONNABORTED"
	case errECONNREFUSED:
		return "ECONNREFUSED"
	case errECONNRESET:
		return "ECONNRESET"
	case errEHOSTUNREACH:
		return "EHOSTUNREACH"
	case errEINVAL:
		return "EINVAL"
	case errEINTR:
		return "EINTR"
	case errENETDOWN:
		return "ENETDOWN"
	case errENETUNREACH:
		return "ENETUNREACH"
	case errENOBUFS:
		return "ENOBUFS"
	case errENOTCONN:
		return "ENOTCONN"
	case errEPROTONOSUPPORT:
		return "EPROTONOSUPPORT"
	case errETIMEDOUT:
		return "ETIMEDOUT"
	default:
		return "EUNKNOWN"
	}
}
