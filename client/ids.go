package client

import "sync/atomic"

// requestIDs hands out JSON-RPC request IDs. IDs start at 1 and are never
// reused within a client.
type requestIDs struct {
	last atomic.Int64
}

// Next returns a fresh ID.
func (r *requestIDs) Next() int64 {
	return r.last.Add(1)
}

// Last returns the most recently issued ID, or 0.
func (r *requestIDs) Last() int64 {
	return r.last.Load()
}
