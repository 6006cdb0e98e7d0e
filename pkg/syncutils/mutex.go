//go:build !deadlock

// Package syncutils provides the mutex types used across the service.
// Building with -tags deadlock swaps them for go-deadlock implementations
// that report lock-order inversions and long waits.
package syncutils

import "sync"

type Mutex struct {
	sync.Mutex
}

type RWMutex struct {
	sync.RWMutex
}
