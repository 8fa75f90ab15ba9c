package beacon

import (
	"sync"
	"sync/atomic"
)

// WorkerState is the lifecycle state of the update worker.
type WorkerState int32

const (
	// WorkerIdle means no update cycle is in progress.
	WorkerIdle WorkerState = iota

	// WorkerRunning means an update cycle is in progress.
	WorkerRunning
)

// String returns the state name.
func (s WorkerState) String() string {
	switch s {
	case WorkerIdle:
		return "idle"
	case WorkerRunning:
		return "running"
	default:
		return "unknown"
	}
}

// updateWorker runs at most one update cycle at a time.
//
// The only way into Running is a compare-and-swap from Idle, so deciding to
// start and marking the worker Running are one atomic step. The worker is
// back to Idle before its run is counted.
type updateWorker struct {
	state atomic.Int32
	wg    sync.WaitGroup
	runs  atomic.Uint64
}

// State returns the current worker state.
func (w *updateWorker) State() WorkerState {
	return WorkerState(w.state.Load())
}

// tryStart starts cycle in a new goroutine if the worker is idle and
// reports whether it did. Cycle must not panic; the coordinator wraps it.
func (w *updateWorker) tryStart(cycle func()) bool {
	if !w.state.CompareAndSwap(int32(WorkerIdle), int32(WorkerRunning)) {
		return false
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer w.runs.Add(1)
		defer w.state.Store(int32(WorkerIdle))
		cycle()
	}()
	return true
}

// wait blocks until the in-flight cycle, if any, has finished.
func (w *updateWorker) wait() {
	w.wg.Wait()
}
