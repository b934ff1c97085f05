// SPDX-License-Identifier: GPL-3.0-or-later

// Command dhtproxyctl is a thin CLI consumer of the dhtproxy library: it
// carries no DHT logic of its own, only enough argument parsing and JSON
// printing to exercise get/put/listen/status against a configured proxy.
package main

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/netip"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dwarri/dhtproxy"
)

var (
	flagProxyAddr string
	flagProxyHost string
	flagTLS       bool
)

func main() {
	root := &cobra.Command{
		Use:   "dhtproxyctl",
		Short: "Inspect a DHT proxy via the dhtproxy client library",
	}
	root.PersistentFlags().StringVar(&flagProxyAddr, "addr", "127.0.0.1:8080", "proxy address (ip:port or hostname:port)")
	root.PersistentFlags().StringVar(&flagProxyHost, "host", "localhost", "proxy HTTP host / TLS server name")
	root.PersistentFlags().BoolVar(&flagTLS, "tls", false, "connect over TLS")

	root.AddCommand(newGetCmd(), newPutCmd(), newListenCmd(), newStatusCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newClientFromFlags builds a client from --addr, accepting either a
// literal "ip:port" (no DNS lookup) or a "hostname:port" that is resolved
// via the configured [dhtproxy.Config.HostResolver].
func newClientFromFlags(ctx context.Context) (*dhtproxy.Client, error) {
	var tlsConfig *tls.Config
	if flagTLS {
		tlsConfig = &tls.Config{ServerName: flagProxyHost}
	}
	cfg := dhtproxy.NewConfig()

	if addr, err := netip.ParseAddrPort(flagProxyAddr); err == nil {
		return dhtproxy.NewClient(cfg, addr, flagProxyHost, tlsConfig, "", dhtproxy.PlatformOther, nil), nil
	}
	client, err := dhtproxy.NewClientWithHostname(ctx, cfg, flagProxyAddr, tlsConfig, "", dhtproxy.PlatformOther, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid --addr: %w", err)
	}
	return client, nil
}

// runUntilDone drives Periodic in a tight loop until done fires or the
// context expires, printing each emitted line as it arrives.
func runUntilDone(ctx context.Context, client *dhtproxy.Client, done <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-done:
			return nil
		default:
			client.Periodic()
			time.Sleep(5 * time.Millisecond)
		}
	}
}

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key_hex>",
		Short: "Fetch values stored under a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClientFromFlags(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Shutdown(nil)

			key, err := dhtproxy.ParseInfoHash(args[0])
			if err != nil {
				return err
			}

			done := make(chan struct{})
			client.Get(key, func(values []*dhtproxy.Value) bool {
				for _, v := range values {
					printJSON(v)
				}
				return true
			}, func(ok bool) {
				if !ok {
					fmt.Fprintln(os.Stderr, "get: operation did not complete successfully")
				}
				close(done)
			}, nil)

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			return runUntilDone(ctx, client, done)
		},
	}
}

func newPutCmd() *cobra.Command {
	var permanent bool
	var id string
	cmd := &cobra.Command{
		Use:   "put <key_hex> <data>",
		Short: "Store a value under a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClientFromFlags(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Shutdown(nil)

			key, err := dhtproxy.ParseInfoHash(args[0])
			if err != nil {
				return err
			}
			value := &dhtproxy.Value{ID: id, Data: []byte(args[1])}

			done := make(chan struct{})
			client.Put(key, value, func(ok bool) {
				if !ok {
					fmt.Fprintln(os.Stderr, "put: operation did not complete successfully")
				}
				close(done)
			}, 0, permanent)

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			return runUntilDone(ctx, client, done)
		},
	}
	cmd.Flags().BoolVar(&permanent, "permanent", false, "mark the value as never expiring")
	cmd.Flags().StringVar(&id, "id", "", "value id")
	return cmd
}

func newListenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "listen <key_hex>",
		Short: "Stream values as they arrive until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClientFromFlags(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Shutdown(nil)

			key, err := dhtproxy.ParseInfoHash(args[0])
			if err != nil {
				return err
			}

			token := client.Listen(key, func(values []*dhtproxy.Value) bool {
				for _, v := range values {
					printJSON(v)
				}
				return true
			}, nil, nil)
			defer client.CancelListen(key, token)

			for {
				client.Periodic()
				time.Sleep(10 * time.Millisecond)
			}
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print connectivity status and node stats",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClientFromFlags(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Shutdown(nil)

			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()

			for ctx.Err() == nil {
				client.Periodic()
				if client.GetStatus("ip4") != dhtproxy.Disconnected || client.GetStatus("ip6") != dhtproxy.Disconnected {
					break
				}
				time.Sleep(20 * time.Millisecond)
			}

			printJSON(map[string]any{
				"ip4_status": client.GetStatus("ip4").String(),
				"ip6_status": client.GetStatus("ip6").String(),
				"ip4_stats":  client.GetNodesStats("ip4"),
				"ip6_stats":  client.GetNodesStats("ip6"),
			})

			if addrs, err := client.GetPublicAddress(ctx, "ip4"); err == nil {
				printJSON(map[string]any{"public_ip4": addrs})
			}
			return nil
		},
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.Encode(v)
}
