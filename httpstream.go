// SPDX-License-Identifier: GPL-3.0-or-later

package dhtproxy

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"sync"
)

// StreamRequest describes a single HTTP request issued against the proxy.
type StreamRequest struct {
	// Method is the HTTP method ("GET", "POST", "LISTEN", "SUBSCRIBE", "UNSUBSCRIBE").
	Method string

	// Path is the request path (e.g. "/" or "/<key_hex>").
	Path string

	// Header carries additional request headers. May be nil.
	Header http.Header

	// Body is the request body, if any.
	Body []byte

	// OneShot marks this as a bounded request (GET proxy-info, GET value,
	// POST put, SUBSCRIBE/UNSUBSCRIBE): [CancelWatchFunc] binds the context's
	// deadline to the underlying connection, so the connection closes as
	// soon as the context is done. Long-lived LISTEN streams leave
	// OneShot false, since the context covers only connection setup: an
	// idle stream must not be severed by a per-call timeout, only by an
	// explicit [*RequestHandle.Cancel].
	OneShot bool
}

// StreamClient dials the configured proxy endpoint and performs one HTTP
// request per call over a fresh connection, mirroring the teacher's dial
// pipeline: endpoint -> connect -> observe -> (cancel-watch) -> (TLS) ->
// HTTPConn, built with [Compose2]..[Compose5].
//
// There is no connection pooling: every [*StreamClient.Do] call opens and,
// on return of the [*RequestHandle], eventually closes its own connection,
// matching the proxy-per-request shape of the original DHT proxy client.
type StreamClient struct {
	// Addr is the resolved proxy endpoint.
	Addr netip.AddrPort

	// ServerName is the Host header and, when TLSConfig is set, the TLS
	// server name to present.
	ServerName string

	// TLSConfig enables HTTPS when non-nil.
	TLSConfig *tls.Config

	// pipelineOneShot is used for bounded requests: cancel-watch ties the
	// connection's lifetime to the caller's context.
	pipelineOneShot Func[Unit, *HTTPConn]

	// pipelineStream skips cancel-watch, so a per-call context deadline
	// never severs a long-lived LISTEN connection.
	pipelineStream Func[Unit, *HTTPConn]
}

// NewStreamClient returns a new [*StreamClient] bound to addr/serverName.
//
// Pass a non-nil tlsConfig to speak HTTPS; pass nil for plain HTTP.
func NewStreamClient(cfg *Config, addr netip.AddrPort, serverName string, tlsConfig *tls.Config, logger SLogger) *StreamClient {
	endpoint := NewEndpointFunc(addr)
	connect := NewConnectFunc(cfg, "tcp", logger)
	observe := NewObserveConnFunc(cfg, logger)
	cancelWatch := NewCancelWatchFunc()

	sc := &StreamClient{
		Addr:       addr,
		ServerName: serverName,
		TLSConfig:  tlsConfig,
	}

	if tlsConfig == nil {
		httpConn := NewHTTPConnFuncPlain(cfg, logger)
		sc.pipelineStream = Compose2(endpoint, Compose3(connect, observe, httpConn))
		sc.pipelineOneShot = Compose2(endpoint, Compose4(connect, observe, cancelWatch, httpConn))
		return sc
	}

	if tlsConfig.ServerName == "" {
		tlsConfig = tlsConfig.Clone()
		tlsConfig.ServerName = serverName
	}
	tlsHandshake := NewTLSHandshakeFunc(cfg, tlsConfig, logger)
	httpConn := NewHTTPConnFuncTLS(cfg, logger)
	sc.pipelineStream = Compose2(endpoint, Compose4(connect, observe, tlsHandshake, httpConn))
	sc.pipelineOneShot = Compose2(endpoint, Compose5(connect, observe, cancelWatch, tlsHandshake, httpConn))
	return sc
}

// dial builds a fresh [*HTTPConn] for a single request, selecting the
// cancel-watched or long-lived pipeline built in [NewStreamClient].
func (sc *StreamClient) dial(ctx context.Context, oneShot bool) (*HTTPConn, error) {
	if oneShot {
		return sc.pipelineOneShot.Call(ctx, Unit{})
	}
	return sc.pipelineStream.Call(ctx, Unit{})
}

// Do issues req and returns a [*RequestHandle] wrapping the response.
//
// The caller must call [*RequestHandle.Cancel] when done, whether or not
// the body was fully consumed.
func (sc *StreamClient) Do(ctx context.Context, req StreamRequest) (*RequestHandle, error) {
	httpConn, err := sc.dial(ctx, req.OneShot)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("http://%s%s", sc.ServerName, req.Path)
	if sc.TLSConfig != nil {
		url = fmt.Sprintf("https://%s%s", sc.ServerName, req.Path)
	}

	var bodyReader *bytes.Reader
	if req.Body != nil {
		bodyReader = bytes.NewReader(req.Body)
	}

	var httpReq *http.Request
	if bodyReader != nil {
		httpReq, err = http.NewRequestWithContext(ctx, req.Method, url, bodyReader)
	} else {
		httpReq, err = http.NewRequestWithContext(ctx, req.Method, url, http.NoBody)
	}
	if err != nil {
		httpConn.Close()
		return nil, fmt.Errorf("dhtproxy: cannot build request: %w", err)
	}
	if req.Header != nil {
		httpReq.Header = req.Header
	}
	httpReq.Host = sc.ServerName

	resp, err := httpConn.RoundTrip(httpReq)
	if err != nil {
		httpConn.Close()
		return nil, err
	}

	return &RequestHandle{
		resp:     resp,
		httpConn: httpConn,
		reader:   bufio.NewReader(resp.Body),
	}, nil
}

// RequestHandle represents an in-flight (or completed one-shot) HTTP
// request. The zero value is not usable; construct via [*StreamClient.Do].
type RequestHandle struct {
	resp     *http.Response
	httpConn *HTTPConn
	reader   *bufio.Reader

	mu        sync.Mutex
	closed    bool
	cancelled bool
}

// StatusCode returns the response's HTTP status code.
func (h *RequestHandle) StatusCode() int {
	return h.resp.StatusCode
}

// IsOpen reports whether further chunks may still arrive from this handle.
// It becomes false once a [*RequestHandle.FetchChunk] observes the stream
// end (or a transport failure) or once [*RequestHandle.Cancel] is called.
func (h *RequestHandle) IsOpen() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.closed
}

// FetchChunk blocks until the next "\n"-terminated fragment is available
// or the stream closes. It returns the fragment including the trailing
// newline, or an error (a plain transport failure, never a panic) once the
// stream ends or is cancelled.
//
// A final fragment lacking a trailing newline is still returned, with the
// error surfacing on the next call.
func (h *RequestHandle) FetchChunk() ([]byte, error) {
	line, err := h.reader.ReadBytes('\n')
	if err != nil {
		h.mu.Lock()
		h.closed = true
		h.mu.Unlock()
		if len(line) > 0 {
			return line, nil
		}
		return nil, err
	}
	return line, nil
}

// Cancel closes the underlying socket, unblocking any pending
// [*RequestHandle.FetchChunk] with a transport error. Cancel is idempotent
// and never panics: cancellation is an expected, ordinary code path.
func (h *RequestHandle) Cancel() error {
	h.mu.Lock()
	if h.cancelled {
		h.mu.Unlock()
		return nil
	}
	h.cancelled = true
	h.closed = true
	h.mu.Unlock()

	h.resp.Body.Close()
	return h.httpConn.Close()
}
