// Package dblock serializes postgres integration tests across test binaries.
package dblock

import (
	"net"
	"os"
	"time"
)

const defaultLockAddr = "127.0.0.1:45432"

// Acquire blocks until this process holds the lock and returns its release func.
// The lock is a listening socket, so it is dropped if the process dies.
func Acquire() func() {
	addr := os.Getenv("WALLET_TEST_DB_LOCK_ADDR")
	if addr == "" {
		addr = defaultLockAddr
	}
	for {
		ln, err := net.Listen("tcp", addr)
		if err == nil {
			return func() { _ = ln.Close() }
		}
		time.Sleep(50 * time.Millisecond)
	}
}
