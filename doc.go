// SPDX-License-Identifier: GPL-3.0-or-later

// Package dhtproxy lets an application participate in a distributed hash
// table by speaking HTTP to a single proxy node instead of joining the DHT
// overlay itself.
//
// # Core Abstraction
//
// Connection and request establishment reuse a small composable primitive:
//
//	type Func[A, B any] interface {
//		Call(ctx context.Context, input A) (B, error)
//	}
//
// Each Func represents an atomic network operation with exactly one success
// mode and one failure mode. [Compose2] through [Compose8] chain Funcs into
// pipelines where the compiler verifies that outputs match inputs across
// stages. [*Client] builds its request pipeline (endpoint, dial, observe,
// optionally cancel-watch, optionally TLS-handshake, wrap as HTTP) this way, then layers the
// DHT proxy's streaming and subscription semantics on top.
//
// # Available Primitives
//
// Connection establishment:
//   - [ConnectFunc]: dials TCP endpoints
//   - [TLSHandshakeFunc]: performs TLS handshake over an existing connection
//   - [ObserveConnFunc]: observes connections for logging I/O operations
//   - [CancelWatchFunc]: closes connection on context cancellation, used for
//     the bounded one-shot requests ([*Client.Get], [*Client.Put],
//     SUBSCRIBE/UNSUBSCRIBE, proxy-info fetches); long-lived LISTEN requests
//     instead close their connection explicitly via [*RequestHandle.Cancel]
//
// HTTP:
//   - [HTTPConn]: wraps a connection with an HTTP transport, performs round
//     trips with structured logging and transparent body observation
//   - [RequestHandle]: a single HTTP request/response pair exposing
//     incremental, newline-delimited reads ([*RequestHandle.FetchChunk]) for
//     streamed proxy responses
//
// DHT proxy client surface:
//   - [*Client]: the public facade — [*Client.Get], [*Client.Put],
//     [*Client.Listen], [*Client.CancelListen], [*Client.GetStatus],
//     [*Client.GetPublicAddress], [*Client.GetNodesStats], [*Client.Shutdown],
//     [*Client.Periodic], [*Client.PushNotificationReceived],
//     [*Client.PushNotificationReceivedJSON]
//   - [Scheduler]: single-timer cooperative scheduler driving periodic work
//   - [Drain]: serialized queue of user-visible callbacks
//   - [Listener] / listener registry: long-lived subscriptions, stream or push
//   - the connectivity monitor: periodic proxy-info probing and listener recovery
//
// Composition utilities:
//   - [Compose2] through [Compose8]: chain Funcs into pipelines
//   - [FuncAdapter]: wrap a function as a Func for ad-hoc custom behavior
//   - [Apply]: bind a fixed input to a Func
//   - [ConstFunc]: lift a pure value into a Func
//   - [NewEndpointFunc]: convenience wrapper for ConstFunc with endpoints
//
// # Connection Lifecycle
//
// Dial operations ([ConnectFunc], [TLSHandshakeFunc]) create connections and
// transfer ownership to the next stage on success. On error, they close the
// connection.
//
// Wrapper types ([HTTPConn], [*RequestHandle]) OWN their underlying
// connection. The caller must call Close()/Cancel() when done, which closes
// the underlying connection. This is how the library implements cancellation:
// closing the socket unblocks a pending [*RequestHandle.FetchChunk] with a
// transport error, which the worker loop treats as an expected, non-raising
// exit.
//
// # Observability
//
// All primitives support structured logging via [SLogger] (compatible with
// [log/slog]). By default, logging is disabled. Set the Logger field to a
// custom [*slog.Logger] to enable logging. Error classification is
// configurable via [ErrClassifier] and the [dhtproxy/errclass] package;
// [NewConfig] installs errclass.New, and [DefaultErrClassifier] is the no-op
// alternative. Classification never drives control
// flow — it only annotates log records.
//
// Primitives emit two kinds of structured log events:
//
//   - Span events (*Start/*Done pairs): record operation lifecycle including
//     timing and success/failure.
//
//   - Stream observations (httpBodyStreamStart/httpBodyStreamDone): capture
//     when a streamed response body is first read and finally closed.
//
// All events share a common set of fields: localAddr, remoteAddr, protocol,
// and t (timestamp). Completion events (*Done) additionally include t0 (start
// time), err, and errClass. I/O-level events (read, write, deadline changes)
// are emitted at [slog.LevelDebug]; all other events use [slog.LevelInfo].
//
// Use [NewSpanID] to generate a unique, time-ordered identifier (UUIDv7) for
// each operation or listener, then attach it to the logger with
// [*slog.Logger.With]. All log entries from that operation share the same
// spanID, enabling correlation across pipeline stages.
//
// # Timeout and Context Philosophy
//
// One-shot operations (get, put, SUBSCRIBE/UNSUBSCRIBE, proxy-info fetch) are
// context-bounded: the caller controls timeouts externally via
// [context.WithTimeout] and [CancelWatchFunc] closes the connection when the
// context is done. Stream-mode listeners (LISTEN) are NOT context-bounded —
// they run with no client-side connection timeout and are cancelled only by
// an explicit call to [*Client.CancelListen] or [*Client.Shutdown] (or a
// connectivity-driven restart), matching the proxy protocol's
// LISTEN semantics where a server-side idle closure would otherwise
// tear down a subscription the caller never asked to end.
//
// # Design Boundaries
//
// This package implements the DHT proxy client only. The following are
// explicitly out of scope and are treated as external collaborators: the
// interactive command-line driver (see cmd/dhtproxyctl for a thin example
// consumer), on-disk persistence, identity/certificate generation, the
// alternative native DHT participant, the proxy server, and the underlying
// push-notification transport (only [*Client.PushNotificationReceivedJSON],
// the bridge back into this client, is in scope).
package dhtproxy
