// SPDX-License-Identifier: GPL-3.0-or-later

package dhtproxy_test

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/dwarri/dhtproxy"
)

// This example shows how to fetch values for a key from a DHT proxy using
// [*dhtproxy.Client.Get], driving the facade's callback drain with
// [*dhtproxy.Client.Periodic] the way a caller's own event loop would.
func Example_get() {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		panic(err)
	}
	defer ln.Close()

	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, `{"id":"1","data":"aGVsbG8="}`+"\n")
	})}
	go srv.Serve(ln)
	defer srv.Close()

	addr := netip.MustParseAddrPort(ln.Addr().String())
	client := dhtproxy.NewClient(dhtproxy.NewConfig(), addr, "proxy.example", nil, "", dhtproxy.PlatformOther, nil)
	defer client.Shutdown(nil)

	key, err := dhtproxy.ParseInfoHash(strings.Repeat("ab", 20))
	if err != nil {
		panic(err)
	}

	done := make(chan bool, 1)
	client.Get(key, func(values []*dhtproxy.Value) bool {
		for _, v := range values {
			fmt.Printf("%s: %s\n", v.ID, v.Data)
		}
		return true
	}, func(ok bool) {
		done <- ok
	}, nil)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		client.Periodic()
		select {
		case <-done:
			fmt.Println("done")
			return
		default:
			time.Sleep(time.Millisecond)
		}
	}

	// Output:
	// 1: hello
	// done
}
