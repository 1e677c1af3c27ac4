package ble

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

type opKind int

const (
	opConnect opKind = iota
	opServices
	opCharacteristics
	opWrite
)

func (k opKind) String() string {
	switch k {
	case opConnect:
		return "connect"
	case opServices:
		return "discover services"
	case opCharacteristics:
		return "discover characteristics"
	case opWrite:
		return "write"
	default:
		return fmt.Sprintf("op(%d)", int(k))
	}
}

// pendingKey identifies one in-flight request. target is the peripheral ID,
// extended with the service or characteristic UUID where relevant.
type pendingKey struct {
	op     opKind
	target string
}

func connectKey(id string) pendingKey { return pendingKey{opConnect, id} }
func servicesKey(id string) pendingKey { return pendingKey{opServices, id} }
func characteristicsKey(id, serviceUUID string) pendingKey {
	return pendingKey{opCharacteristics, id + "/" + serviceUUID}
}
func writeKey(id, charUUID string) pendingKey { return pendingKey{opWrite, id + "/" + charUUID} }

type outcome struct {
	value any
	err   error
}

// waiter receives exactly one outcome. The buffer lets the resolver send
// without blocking even if the caller has already given up.
type waiter struct {
	ch chan outcome
}

// pendingOps is the registry of outstanding platform requests. It holds at
// most one waiter per key; every waiter is resolved at most once.
type pendingOps struct {
	mu      sync.Mutex
	entries map[pendingKey]*waiter
}

func newPendingOps() *pendingOps {
	return &pendingOps{entries: make(map[pendingKey]*waiter)}
}

// register installs a new waiter for key. A waiter already registered for
// the same key is resolved with ErrSuperseded.
func (p *pendingOps) register(key pendingKey) *waiter {
	w := &waiter{ch: make(chan outcome, 1)}
	p.mu.Lock()
	old := p.entries[key]
	p.entries[key] = w
	p.mu.Unlock()

	if old != nil {
		slog.Debug("[BLE] superseding pending request", "op", key.op, "target", key.target)
		old.ch <- outcome{err: ErrSuperseded}
	}
	return w
}

// resolve removes the waiter for key and hands it the outcome. It reports
// false when nothing was pending, e.g. for a late callback after a timeout.
func (p *pendingOps) resolve(key pendingKey, value any, err error) bool {
	p.mu.Lock()
	w, ok := p.entries[key]
	delete(p.entries, key)
	p.mu.Unlock()

	if !ok {
		slog.Debug("[BLE] callback with no pending request", "op", key.op, "target", key.target)
		return false
	}
	w.ch <- outcome{value: value, err: err}
	return true
}

// remove drops key only if it still maps to w, so an abandoned request
// never evicts the request that superseded it.
func (p *pendingOps) remove(key pendingKey, w *waiter) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.entries[key] == w {
		delete(p.entries, key)
	}
}

func (p *pendingOps) has(key pendingKey) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.entries[key]
	return ok
}

func (p *pendingOps) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// await blocks until w is resolved or ctx ends. On ctx expiry the entry is
// removed so a late callback finds nothing to resolve.
func await[T any](ctx context.Context, p *pendingOps, key pendingKey, w *waiter) (T, error) {
	var zero T
	select {
	case out := <-w.ch:
		if out.err != nil {
			return zero, out.err
		}
		v, _ := out.value.(T)
		return v, nil
	case <-ctx.Done():
		p.remove(key, w)
		return zero, fmt.Errorf("ble: %s %s: %w", key.op, key.target, ctx.Err())
	}
}
