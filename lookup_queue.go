package main

import (
	"strconv"
	"sync"
)

// LQueue serializes concurrent identical top-level queries: while a
// resolution for a key is in flight, later callers for the same key
// wait for it to finish and then run their own resolution.
type LQueue struct {
	mu sync.RWMutex

	delay map[string]*sync.Cond
}

// NewLookupQueue returns an empty queue.
func NewLookupQueue() *LQueue {
	return &LQueue{
		delay: make(map[string]*sync.Cond),
	}
}

// Get returns the in-flight condition variable for key, or nil if no
// resolution for key is currently in flight.
func (q *LQueue) Get(key string) *sync.Cond {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if cond, ok := q.delay[key]; ok {
		return cond
	}
	return nil
}

// Set marks key as in flight.
func (q *LQueue) Set(key string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.delay[key] = sync.NewCond(&sync.Mutex{})
}

// Remove wakes all waiters on key and clears it.
func (q *LQueue) Remove(key string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if cond, ok := q.delay[key]; ok {
		cond.L.Lock()
		cond.Broadcast()
		cond.L.Unlock()
	}
	delete(q.delay, key)
}

// QuestionKey builds the coalescing key for a (qname, qtype) pair.
func QuestionKey(qname Name, qtype uint16) string {
	return qname.String() + "#" + strconv.Itoa(int(qtype))
}
