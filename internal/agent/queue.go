package agent

import (
	"context"
	"sync"
	"time"

	"pump-agent/internal/domain"
	"pump-agent/internal/observability"
)

// Queue drop reasons.
const (
	DropDuplicate = "duplicate"
	DropFull      = "full"
	DropAge       = "age"
	DropCap       = "cap"
)

// DefaultQueueSize bounds the intake queue.
const DefaultQueueSize = 256

// TokenQueue is the bounded intake of fresh tokens. A mint is accepted once
// per session: its first-seen time doubles as the dedup record and survives
// listener reconnects. Mints being traded are tracked as in flight.
type TokenQueue struct {
	ch  chan *domain.TokenInfo
	now func() time.Time

	mu        sync.Mutex
	firstSeen map[string]time.Time
	inFlight  map[string]struct{}
}

// NewTokenQueue creates a queue holding at most size tokens.
func NewTokenQueue(size int) *TokenQueue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &TokenQueue{
		ch:        make(chan *domain.TokenInfo, size),
		now:       time.Now,
		firstSeen: make(map[string]time.Time),
		inFlight:  make(map[string]struct{}),
	}
}

// Push queues tok unless its mint was already seen or the queue is full.
// It never blocks.
func (q *TokenQueue) Push(tok *domain.TokenInfo) bool {
	if !q.see(tok.Mint) {
		observability.RecordQueueDrop(DropDuplicate)
		return false
	}
	select {
	case q.ch <- tok:
		return true
	default:
		observability.RecordQueueDrop(DropFull)
		return false
	}
}

// Claim marks tok in flight without queueing it. It reports false for a
// mint seen before.
func (q *TokenQueue) Claim(tok *domain.TokenInfo) bool {
	if !q.see(tok.Mint) {
		return false
	}
	q.mu.Lock()
	q.inFlight[tok.Mint] = struct{}{}
	q.mu.Unlock()
	return true
}

func (q *TokenQueue) see(mint string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.firstSeen[mint]; ok {
		return false
	}
	q.firstSeen[mint] = q.now()
	return true
}

// Next blocks for the next token and returns it with its age since first
// seen. It returns ctx.Err() when ctx ends.
func (q *TokenQueue) Next(ctx context.Context) (*domain.TokenInfo, time.Duration, error) {
	select {
	case <-ctx.Done():
		return nil, 0, ctx.Err()
	case tok := <-q.ch:
		return tok, q.Age(tok.Mint), nil
	}
}

// Age is the time since mint was first seen, or zero if it never was.
func (q *TokenQueue) Age(mint string) time.Duration {
	q.mu.Lock()
	defer q.mu.Unlock()
	seen, ok := q.firstSeen[mint]
	if !ok {
		return 0
	}
	return q.now().Sub(seen)
}

// Start marks mint in flight. It reports false if it already is.
func (q *TokenQueue) Start(mint string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.inFlight[mint]; ok {
		return false
	}
	q.inFlight[mint] = struct{}{}
	return true
}

// Done clears the in-flight mark of mint.
func (q *TokenQueue) Done(mint string) {
	q.mu.Lock()
	delete(q.inFlight, mint)
	q.mu.Unlock()
}

// InFlight reports whether mint is being traded.
func (q *TokenQueue) InFlight(mint string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.inFlight[mint]
	return ok
}

// Prune drops first-seen records of mints no longer in flight and returns
// how many were dropped.
func (q *TokenQueue) Prune() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for mint := range q.firstSeen {
		if _, ok := q.inFlight[mint]; !ok {
			delete(q.firstSeen, mint)
			n++
		}
	}
	return n
}

// Len is the number of queued tokens.
func (q *TokenQueue) Len() int {
	return len(q.ch)
}

// AgeInRange reports whether age lies in [lo, hi].
func AgeInRange(age, lo, hi time.Duration) bool {
	return age >= lo && age <= hi
}
