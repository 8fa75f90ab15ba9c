package beacon

import (
	"sync"
	"time"
)

// Incident is one recorded fault.
type Incident struct {
	At  time.Time
	Err error
}

// faultRing is a thread-safe ring buffer of recent incidents.
type faultRing struct {
	mu        sync.RWMutex
	incidents []Incident
	size      int
	head      int
	count     int
}

// newFaultRing creates a ring with the given capacity.
// If size is 0, the ring is disabled.
func newFaultRing(size int) *faultRing {
	if size <= 0 {
		return nil
	}
	return &faultRing{
		incidents: make([]Incident, size),
		size:      size,
	}
}

// push records an incident, overwriting the oldest when full.
func (r *faultRing) push(at time.Time, err error) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.incidents[r.head] = Incident{At: at, Err: err}
	r.head = (r.head + 1) % r.size
	if r.count < r.size {
		r.count++
	}
}

// clear removes all incidents.
func (r *faultRing) clear() {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	clear(r.incidents)
	r.head = 0
	r.count = 0
}

// all returns the recorded incidents, oldest first.
func (r *faultRing) all() []Incident {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.count == 0 {
		return nil
	}

	result := make([]Incident, r.count)
	start := (r.head - r.count + r.size) % r.size
	for i := 0; i < r.count; i++ {
		result[i] = r.incidents[(start+i)%r.size]
	}
	return result
}
