// SPDX-License-Identifier: GPL-3.0-or-later

package dhtproxy

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"sync/atomic"
	"time"
)

const (
	defaultGetTimeout       = 30 * time.Second
	defaultPutTimeout       = 30 * time.Second
	defaultSubscribeTimeout = 30 * time.Second
)

// Client is the DHT proxy client facade: the single entry point an
// application uses to get/put/listen against a remote proxy, observe
// connectivity, and drive the scheduler.
//
// A *Client is safe for concurrent use by multiple goroutines, except that
// [*Client.Periodic] must be called serially (by a single owning
// goroutine or under external serialization) since it drives the
// single-threaded scheduler and callback drain.
type Client struct {
	cfg      *Config
	stream   *StreamClient
	resolver HostResolver
	host     string
	logger   SLogger

	deviceKey string
	platform  Platform

	scheduler  *Scheduler
	drain      *Drain
	operations *operationRegistry
	listeners  *listenerRegistry
	info       *proxyInfoCache
	monitor    *connectivityMonitor

	callbackIDCounter atomic.Uint64
}

// NewClient constructs a [*Client] bound to a single proxy endpoint.
//
// addr is the resolved proxy address; host is used both as the HTTP Host
// header and as the TLS server name when tlsConfig is non-nil. deviceKey
// enables push mode for subsequent [*Client.Listen] calls when non-empty;
// platform describes the host device for the push subscription preamble.
//
// An empty host makes the client silently inert and it never dials:
// [*Client.Get] and [*Client.Put] report doneCb(false) through the drain,
// [*Client.Listen] registers the listener and returns its token without
// starting a worker, and proxy-info fetches fail with [ErrConfiguration].
func NewClient(cfg *Config, addr netip.AddrPort, host string, tlsConfig *tls.Config, deviceKey string, platform Platform, logger SLogger) *Client {
	if logger == nil {
		logger = DefaultSLogger()
	}
	c := &Client{
		cfg:        cfg,
		resolver:   cfg.HostResolver,
		host:       host,
		logger:     logger,
		deviceKey:  deviceKey,
		platform:   platform,
		scheduler:  NewScheduler(cfg.TimeNow),
		drain:      &Drain{},
		operations: newOperationRegistry(),
		listeners:  newListenerRegistry(),
		info:       &proxyInfoCache{},
	}
	if host != "" {
		c.stream = NewStreamClient(cfg, addr, host, tlsConfig, logger)
	}
	c.monitor = newConnectivityMonitor(c.scheduler, c.info, c.fetchProxyInfo, c.restartAllListeners)
	return c
}

// IsRunning reports whether the client has a usable proxy configuration.
func (c *Client) IsRunning() bool {
	return c.stream != nil
}

// GetStatus returns the current [NodeStatus] for the requested family
// ("ip4" or "ip6"; any other value reports Disconnected).
func (c *Client) GetStatus(family string) NodeStatus {
	switch family {
	case "ip4":
		return c.monitor.StatusV4()
	case "ip6":
		return c.monitor.StatusV6()
	default:
		return Disconnected
	}
}

// GetNodesStats returns the cached good/dubious node counts for family.
func (c *Client) GetNodesStats(family string) NodeStats {
	info := c.info.Get()
	switch family {
	case "ip4":
		return NodeStats{Good: info.IPv4Good, Dubious: info.IPv4Dubious}
	case "ip6":
		return NodeStats{Good: info.IPv6Good, Dubious: info.IPv6Dubious}
	default:
		return NodeStats{}
	}
}

// GetPublicAddress parses public_ip from the cached [ProxyInfo] and
// resolves the requested family's address+port via [Config.HostResolver].
func (c *Client) GetPublicAddress(ctx context.Context, family string) ([]netip.AddrPort, error) {
	info := c.info.Get()
	ipv4, ipv6, port := parsePublicIP(info.PublicIP)

	var host string
	switch family {
	case "ip4":
		host = ipv4
	case "ip6":
		host = ipv6
	default:
		return nil, fmt.Errorf("dhtproxy: unknown family %q", family)
	}
	if host == "" {
		return nil, fmt.Errorf("dhtproxy: no public %s address known", family)
	}

	addrs, err := c.resolver.LookupHost(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("dhtproxy: cannot resolve public address %q: %w", host, err)
	}
	portNum, err := net.LookupPort("udp", port)
	if err != nil {
		return nil, fmt.Errorf("dhtproxy: invalid public port %q: %w", port, err)
	}
	out := make([]netip.AddrPort, 0, len(addrs))
	for _, a := range addrs {
		parsed, err := netip.ParseAddr(a)
		if err == nil {
			out = append(out, netip.AddrPortFrom(parsed, uint16(portNum)))
		}
	}
	return out, nil
}

// Periodic synchronises the scheduler clock, drains the callback queue,
// reaps finished operations, and returns the scheduler's next wake time.
func (c *Client) Periodic() time.Time {
	c.scheduler.SyncTime()
	c.drain.Run()
	c.operations.reap()
	return c.scheduler.Run()
}

// Shutdown cancels all operations and listeners (joining every worker),
// then invokes cb synchronously on the caller.
func (c *Client) Shutdown(cb func()) {
	c.operations.shutdown()
	c.listeners.shutdown()
	if cb != nil {
		cb()
	}
}

// fetchProxyInfo issues the synchronous GET / round trip used by the
// connectivity monitor and by a caller wanting a fresh snapshot.
func (c *Client) fetchProxyInfo(ctx context.Context) (*ProxyInfo, error) {
	if c.stream == nil {
		return nil, ErrConfiguration
	}
	handle, err := c.stream.Do(ctx, StreamRequest{Method: http.MethodGet, Path: "/", OneShot: true})
	if err != nil {
		return nil, err
	}
	defer handle.Cancel()

	if handle.StatusCode() != http.StatusOK {
		return nil, &ProtocolError{StatusCode: handle.StatusCode()}
	}
	chunk, err := handle.FetchChunk()
	if err != nil && len(chunk) == 0 {
		return nil, err
	}
	info, err := DecodeProxyInfo(chunk)
	if err != nil {
		return nil, &ParseError{Err: err}
	}
	return info, nil
}

// Get opens a streaming GET against /<key_hex>. For each successfully
// parsed value accepted by filter, a drain callback invokes valueCb with a
// single-element slice; if that callback returns false, the stream stops.
// When the stream ends, a drain callback invokes doneCb(ok).
func (c *Client) Get(key InfoHash, valueCb ValueCallback, doneCb DoneCallback, filter ValueFilter) {
	c.oneShotGet(key, valueCb, doneCb, filter)
}

// oneShotGet is the shared implementation behind [*Client.Get] and the
// push bridge's timeout-less notification path (a server wake-up with no
// "timeout" field asks for exactly this: a fresh one-shot pull).
func (c *Client) oneShotGet(key InfoHash, valueCb ValueCallback, doneCb DoneCallback, filter ValueFilter) {
	span, t0 := NewSpanID(), c.cfg.TimeNow()
	c.logger.Info("getStart", slog.String("span", span), slog.String("key", key.String()), slog.Time("t", t0))

	if c.stream == nil {
		c.logger.Info("getDone", slog.String("span", span), slog.Any("err", ErrConfiguration))
		c.drain.Enqueue(func() { doneCb(false) })
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultGetTimeout)
	handle, err := c.stream.Do(ctx, StreamRequest{
		Method:  http.MethodGet,
		Path:    "/" + key.String(),
		OneShot: true,
	})
	if err != nil {
		cancel()
		c.logger.Info("getDone", slog.String("span", span), slog.Any("err", err),
			slog.String("errClass", c.cfg.ErrClassifier.Classify(err)))
		c.monitor.nudge()
		c.drain.Enqueue(func() { doneCb(false) })
		return
	}

	op := newOperation(handle)
	c.operations.register(op)

	go func() {
		defer cancel()
		ok := c.streamValues(handle, valueCb, filter, nil, nil)
		op.setFinished(ok)
		c.logger.Info("getDone", slog.String("span", span), slog.Bool("ok", ok),
			slog.Duration("elapsed", c.cfg.TimeNow().Sub(t0)))
		if !ok {
			c.monitor.nudge()
		}
		c.drain.Enqueue(func() { doneCb(ok) })
	}()
}

// Put issues a POST to /<key_hex> with the value JSON (plus
// "permanent":true when requested). expiration is currently unused by the
// proxy wire format and accepted only for API symmetry with the original
// client. doneCb fires with ok=false on any non-200 status.
func (c *Client) Put(key InfoHash, value *Value, doneCb DoneCallback, expiration time.Duration, permanent bool) {
	span := NewSpanID()
	c.logger.Info("putStart", slog.String("span", span), slog.String("key", key.String()))

	if c.stream == nil {
		c.logger.Info("putDone", slog.String("span", span), slog.Any("err", ErrConfiguration))
		c.drain.Enqueue(func() { doneCb(false) })
		return
	}

	body, err := EncodeValue(value, permanent)
	if err != nil {
		c.logger.Info("putDone", slog.String("span", span), slog.Any("err", &ParseError{Err: err}))
		c.drain.Enqueue(func() { doneCb(false) })
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultPutTimeout)
	defer cancel()
	handle, err := c.stream.Do(ctx, StreamRequest{
		Method:  http.MethodPost,
		Path:    "/" + key.String(),
		Body:    body,
		OneShot: true,
	})
	if err != nil {
		c.logger.Info("putDone", slog.String("span", span), slog.Any("err", err),
			slog.String("errClass", c.cfg.ErrClassifier.Classify(err)))
		c.monitor.nudge()
		c.drain.Enqueue(func() { doneCb(false) })
		return
	}
	defer handle.Cancel()

	ok := handle.StatusCode() == http.StatusOK
	if ok {
		if _, rerr := handle.FetchChunk(); rerr != nil && rerr != io.EOF {
			ok = false
		}
	}
	c.logger.Info("putDone", slog.String("span", span), slog.Bool("ok", ok))
	if !ok {
		c.monitor.nudge()
	}
	c.drain.Enqueue(func() { doneCb(ok) })
}

// Listen registers a subscription for key and returns its token. Method is
// LISTEN in stream mode, SUBSCRIBE in push mode (active whenever the
// client was constructed with a non-empty device key). filter is composed
// with where before use.
func (c *Client) Listen(key InfoHash, cb ValueCallback, filter ValueFilter, where ValueFilter) uint64 {
	composed := chainFilters(filter, where)

	mode := ListenerStream
	if c.deviceKey != "" {
		mode = ListenerPush
	}

	l := &Listener{key: key, callback: cb, filter: composed, mode: mode}
	token := c.listeners.register(l)
	c.logger.Info("listenStart", slog.Uint64("token", token), slog.String("key", key.String()),
		slog.Bool("push", mode == ListenerPush))

	if c.stream == nil {
		return token
	}

	if mode == ListenerPush {
		c.spawnPushWorker(l)
	} else {
		c.spawnStreamWorker(l)
	}
	return token
}

// CancelListen cancels the listener for token. In push mode, the pending
// worker is joined first (to ensure the push-token is known), then a
// fire-and-forget UNSUBSCRIBE is issued. In stream mode, the request is
// closed, unblocking its worker. Returns true iff a matching token existed.
func (c *Client) CancelListen(key InfoHash, token uint64) bool {
	l, ok := c.listeners.find(token)
	if !ok {
		return false
	}

	if l.mode == ListenerPush {
		l.join()
		if c.stream != nil {
			c.sendUnsubscribe(key)
		}
	}
	erased := c.listeners.erase(token)
	c.logger.Info("listenCancel", slog.Uint64("token", token), slog.Bool("erased", erased))
	return erased
}

// sendUnsubscribe issues a best-effort, fire-and-forget UNSUBSCRIBE.
func (c *Client) sendUnsubscribe(key InfoHash) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultSubscribeTimeout)
	defer cancel()
	handle, err := c.stream.Do(ctx, StreamRequest{Method: "UNSUBSCRIBE", Path: "/" + key.String(), OneShot: true})
	if err != nil {
		return
	}
	handle.Cancel()
}

// restartAllListeners is the connectivity monitor's restartAll hook: every
// listener is respawned as a stream LISTEN worker, per the listener
// registry's documented restart_all behavior.
func (c *Client) restartAllListeners() {
	if c.stream == nil {
		return
	}
	c.listeners.restartAll(c.spawnStreamWorker)
}

// spawnStreamWorker joins no prior worker (the caller is responsible for
// that, see [*listenerRegistry.restartAll]); it opens a long-lived LISTEN
// request and loops delivering values until the stream closes or the
// listener is cancelled.
func (c *Client) spawnStreamWorker(l *Listener) {
	handle, err := c.stream.Do(context.Background(), StreamRequest{
		Method:  "LISTEN",
		Path:    "/" + l.key.String(),
		OneShot: false,
	})
	done := make(chan struct{})
	if err != nil {
		l.setWorker(nil, done)
		close(done)
		c.monitor.nudge()
		return
	}
	l.setWorker(handle, done)

	go func() {
		defer close(done)
		ok := c.streamValues(handle, l.callback, l.filter, l.isCancelled, l.setCancelled)
		if !ok {
			c.monitor.nudge()
		}
	}()
}

// spawnPushWorker issues a SUBSCRIBE and stores the resulting push-token.
func (c *Client) spawnPushWorker(l *Listener) {
	preamble, err := EncodePushPreamble(c.deviceKey, c.callbackIDCounter.Add(1), c.platform)
	done := make(chan struct{})
	if err != nil {
		l.setWorker(nil, done)
		close(done)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultSubscribeTimeout)
	handle, derr := c.stream.Do(ctx, StreamRequest{
		Method:  "SUBSCRIBE",
		Path:    "/" + l.key.String(),
		Body:    preamble,
		OneShot: true,
	})
	if derr != nil {
		cancel()
		l.setWorker(nil, done)
		close(done)
		c.monitor.nudge()
		return
	}
	l.setWorker(handle, done)

	go func() {
		defer cancel()
		defer close(done)
		defer handle.Cancel()
		chunk, ferr := handle.FetchChunk()
		if ferr != nil && len(chunk) == 0 {
			c.monitor.nudge()
			return
		}
		token, perr := DecodeToken(chunk)
		if perr != nil {
			c.monitor.nudge()
			return
		}
		l.setPushToken(token)
	}()
}

// streamValues loops FetchChunk until the stream closes or isCancelled
// (when non-nil) reports true, decoding and filtering each fragment and
// routing accepted values through the drain to valueCb. A valueCb
// returning false stops the stream (and, for listeners, calls
// setCancelled). Returns whether every parse and the transport succeeded,
// ignoring failures caused by local cancellation.
func (c *Client) streamValues(handle *RequestHandle, valueCb ValueCallback, filter ValueFilter, isCancelled func() bool, setCancelled func()) bool {
	ok := true
	for {
		if isCancelled != nil && isCancelled() {
			break
		}
		chunk, err := handle.FetchChunk()
		if err != nil {
			if isSoftFailure(err) {
				ok = false
			}
			break
		}
		value, perr := DecodeValue(chunk)
		if perr != nil {
			ok = false
			continue
		}
		if filter != nil && !filter(value) {
			continue
		}

		proceed := make(chan bool, 1)
		c.drain.Enqueue(func() {
			proceed <- valueCb([]*Value{value})
		})
		if !<-proceed {
			if setCancelled != nil {
				setCancelled()
			}
			break
		}
	}
	handle.Cancel()
	return ok
}
