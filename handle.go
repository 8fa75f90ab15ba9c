package beacon

import (
	"context"

	"github.com/sourcegraph/conc/panics"
)

// Handle wraps the active experiment and tracks whether it has been built
// since its last mutation.
//
// Handle is not safe for concurrent use. The Coordinator calls it only while
// holding its lock.
type Handle struct {
	exp     Experiment
	updater Updater
	mode    SchedulingMode
	modeSet bool
	built   bool
	builds  uint64
}

// NewHandle wraps exp. The update capability is detected once, here.
func NewHandle(exp Experiment) *Handle {
	h := &Handle{exp: exp}
	if u, ok := exp.(Updater); ok {
		h.updater = u
	}
	return h
}

// Experiment returns the wrapped experiment.
func (h *Handle) Experiment() Experiment {
	return h.exp
}

// Static reports whether the experiment lacks the update capability.
func (h *Handle) Static() bool {
	return h.updater == nil
}

// Built reports whether the experiment has been built since its last mutation.
func (h *Handle) Built() bool {
	return h.built
}

// Builds returns the number of successful builds.
func (h *Handle) Builds() uint64 {
	return h.builds
}

// Mode returns the scheduling mode, or "" if none was set.
func (h *Handle) Mode() SchedulingMode {
	return h.mode
}

// SetSchedulingMode attaches mode to the experiment. It may be called once,
// before the first Rebuild.
func (h *Handle) SetSchedulingMode(mode SchedulingMode) error {
	if h.modeSet {
		return ErrModeAlreadySet
	}
	if h.builds > 0 {
		return ErrModeAfterBuild
	}
	h.exp.SetSchedulingMode(mode)
	h.mode = mode
	h.modeSet = true
	return nil
}

// Rebuild runs the experiment's build step. Errors and panics come back as
// a *Fault and leave the experiment marked unbuilt.
func (h *Handle) Rebuild(ctx context.Context) error {
	if !h.modeSet {
		return &Fault{Op: OpBuild, Err: ErrModeNotSet}
	}
	h.built = false

	var err error
	if r := catch(func() { err = h.exp.Build(ctx) }); r != nil {
		return &Fault{Op: OpBuild, Err: r, Panicked: true}
	}
	if err != nil {
		return &Fault{Op: OpBuild, Err: err}
	}

	h.built = true
	h.builds++
	return nil
}

// ApplyFeedback runs the experiment's update step and reports whether it
// changed. Static experiments never change. A change, an error or a panic
// marks the experiment unbuilt, since it may be partially mutated.
func (h *Handle) ApplyFeedback(ctx context.Context, data []byte) (bool, error) {
	if h.updater == nil {
		return false, nil
	}

	var (
		changed bool
		err     error
	)
	if r := catch(func() { changed, err = h.updater.Update(ctx, data) }); r != nil {
		h.built = false
		return false, &Fault{Op: OpUpdate, Err: r, Panicked: true}
	}
	if err != nil {
		h.built = false
		return false, &Fault{Op: OpUpdate, Err: err}
	}
	if changed {
		h.built = false
	}
	return changed, nil
}

// catch runs fn and returns any recovered panic as an error. A panic value
// that is itself an error stays in the chain.
func catch(fn func()) error {
	var pc panics.Catcher
	pc.Try(fn)
	return pc.Recovered().AsError()
}
