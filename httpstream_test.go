// SPDX-License-Identifier: GPL-3.0-or-later

package dhtproxy

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// startPlainProxy spins up a bare HTTP server handling requests with fn,
// returning its address. The server is closed when the test ends.
func startPlainProxy(t *testing.T, fn http.HandlerFunc) netip.AddrPort {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := &http.Server{Handler: fn}
	go srv.Serve(ln)
	t.Cleanup(func() { srv.Close() })
	addr, err := netip.ParseAddrPort(ln.Addr().String())
	require.NoError(t, err)
	return addr
}

func TestStreamClientOneShotGet(t *testing.T) {
	addr := startPlainProxy(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/", r.URL.Path)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"node_id":"abc","public_ip":"1.2.3.4:4222"}` + "\n"))
	})

	cfg := NewConfig()
	sc := NewStreamClient(cfg, addr, "proxy.test", nil, DefaultSLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	handle, err := sc.Do(ctx, StreamRequest{Method: "GET", Path: "/", OneShot: true})
	require.NoError(t, err)
	defer handle.Cancel()

	require.Equal(t, http.StatusOK, handle.StatusCode())

	chunk, err := handle.FetchChunk()
	require.NoError(t, err)
	require.Contains(t, string(chunk), `"node_id":"abc"`)
}

func TestStreamClientPostPut(t *testing.T) {
	var gotBody string
	addr := startPlainProxy(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"id":"v1"}` + "\n"))
	})

	cfg := NewConfig()
	sc := NewStreamClient(cfg, addr, "proxy.test", nil, DefaultSLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	payload := []byte(`{"id":"v1","data":"aGVsbG8="}`)
	handle, err := sc.Do(ctx, StreamRequest{
		Method:  "POST",
		Path:    "/deadbeef",
		Body:    payload,
		OneShot: true,
	})
	require.NoError(t, err)
	defer handle.Cancel()

	require.Equal(t, http.StatusOK, handle.StatusCode())
	require.Equal(t, string(payload), gotBody)
}

func TestStreamClientStreamingMultipleChunks(t *testing.T) {
	addr := startPlainProxy(t, func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"id":"v1"}` + "\n"))
		flusher.Flush()
		w.Write([]byte(`{"id":"v2"}` + "\n"))
		flusher.Flush()
	})

	cfg := NewConfig()
	sc := NewStreamClient(cfg, addr, "proxy.test", nil, DefaultSLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	handle, err := sc.Do(ctx, StreamRequest{Method: "GET", Path: "/deadbeef", OneShot: false})
	require.NoError(t, err)
	defer handle.Cancel()

	first, err := handle.FetchChunk()
	require.NoError(t, err)
	require.Contains(t, string(first), "v1")

	second, err := handle.FetchChunk()
	require.NoError(t, err)
	require.Contains(t, string(second), "v2")

	require.True(t, handle.IsOpen())

	_, err = handle.FetchChunk()
	require.Error(t, err)
	require.False(t, handle.IsOpen())
}

func TestRequestHandleCancelIsIdempotentAndUnblocksFetch(t *testing.T) {
	unblocked := make(chan struct{})
	addr := startPlainProxy(t, func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"id":"v1"}` + "\n"))
		flusher.Flush()
		<-unblocked // hold the connection open until the test closes it
	})
	defer close(unblocked)

	cfg := NewConfig()
	sc := NewStreamClient(cfg, addr, "proxy.test", nil, DefaultSLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	handle, err := sc.Do(ctx, StreamRequest{Method: "LISTEN", Path: "/deadbeef", OneShot: false})
	require.NoError(t, err)

	first, err := handle.FetchChunk()
	require.NoError(t, err)
	require.Contains(t, string(first), "v1")

	errc := make(chan error, 1)
	go func() {
		_, err := handle.FetchChunk()
		errc <- err
	}()

	require.NoError(t, handle.Cancel())
	require.NoError(t, handle.Cancel()) // idempotent, no panic

	select {
	case err := <-errc:
		require.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("FetchChunk did not unblock after Cancel")
	}
	require.False(t, handle.IsOpen())
}
