// Package lock implements the conversation concurrency gate: per-key FIFO
// ordering under a global concurrency ceiling, with non-blocking
// admission.
package lock

import (
	"sync"

	"github.com/archon-run/archon/internal/logging"
)

// Handler is the async unit of work submitted for a conversation key. It
// runs on its own goroutine; an error it returns (or a panic it raises) is
// logged and never propagated to the caller of Acquire or to other
// handlers (L4).
type Handler func() error

type queuedHandler struct {
	handler Handler
}

// Lock is the central scheduler described in §4.D / §9 of the spec: one
// coarse mutex guarding an active-set and a per-key queue map, rather than
// one lock per key, to avoid deadlocks between admission and completion.
type Lock struct {
	mu            sync.Mutex
	maxConcurrent int
	active        map[string]struct{}
	queues        map[string][]queuedHandler
}

// New builds a Lock with the given global concurrency ceiling.
func New(maxConcurrent int) *Lock {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Lock{
		maxConcurrent: maxConcurrent,
		active:        make(map[string]struct{}),
		queues:        make(map[string][]queuedHandler),
	}
}

// Acquire never blocks the caller (L3). It either starts the handler
// immediately on a new goroutine, or enqueues it behind the key's current
// holder / the global ceiling.
func (l *Lock) Acquire(key string, h Handler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.acquireLocked(key, h)
}

// acquireLocked implements the admission rule. It must be called with
// l.mu held. The active-map placeholder is inserted before the first
// suspension point (here, before spawning the goroutine) to close the
// admission race described in §4.D.
func (l *Lock) acquireLocked(key string, h Handler) {
	_, keyBusy := l.active[key]
	if keyBusy || len(l.active) >= l.maxConcurrent {
		l.queues[key] = append(l.queues[key], queuedHandler{handler: h})
		return
	}

	l.active[key] = struct{}{}
	go l.run(key, h)
}

func (l *Lock) run(key string, h Handler) {
	defer l.complete(key)
	defer func() {
		if r := recover(); r != nil {
			logging.Error("[ConversationLock] error in %s: %v", key, r)
		}
	}()
	if err := h(); err != nil {
		logging.Error("[ConversationLock] error in %s: %v", key, err)
	}
}

// complete implements the completion rule: remove the key from active,
// then promote at most one local handler and at most one globally
// promoted handler from another key, to avoid runaway reentry.
func (l *Lock) complete(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.active, key)

	if q := l.queues[key]; len(q) > 0 {
		next := q[0]
		l.queues[key] = q[1:]
		if len(l.queues[key]) == 0 {
			delete(l.queues, key)
		}
		l.acquireLocked(key, next.handler)
		return
	}
	delete(l.queues, key)

	for otherKey, q := range l.queues {
		if len(q) == 0 {
			continue
		}
		if _, busy := l.active[otherKey]; busy {
			continue
		}
		next := q[0]
		l.queues[otherKey] = q[1:]
		if len(l.queues[otherKey]) == 0 {
			delete(l.queues, otherKey)
		}
		l.acquireLocked(otherKey, next.handler)
		return
	}
}

// Stats is the observability snapshot returned by Lock.Stats.
type Stats struct {
	Active        int
	QueuedTotal   int
	QueuedByKey   map[string]int
	MaxConcurrent int
	ActiveKeys    []string
}

// Stats returns a point-in-time snapshot of the lock's internal state.
func (l *Lock) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := Stats{
		Active:        len(l.active),
		MaxConcurrent: l.maxConcurrent,
		QueuedByKey:   make(map[string]int, len(l.queues)),
	}
	for k := range l.active {
		s.ActiveKeys = append(s.ActiveKeys, k)
	}
	for k, q := range l.queues {
		s.QueuedByKey[k] = len(q)
		s.QueuedTotal += len(q)
	}
	return s
}
