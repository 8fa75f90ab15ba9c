package beacon

import (
	"context"
	"fmt"
	"strings"
)

// SchedulingMode classifies the time slot an experiment runs in.
// It is attached to the experiment once, before its first build.
type SchedulingMode string

// Scheduling modes.
const (
	ModeCommon        SchedulingMode = "common"
	ModeSpecial       SchedulingMode = "special"
	ModeDiscretionary SchedulingMode = "discretionary"
)

// ParseSchedulingMode converts s into a SchedulingMode.
func ParseSchedulingMode(s string) (SchedulingMode, error) {
	switch m := SchedulingMode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeCommon, ModeSpecial, ModeDiscretionary:
		return m, nil
	default:
		return "", fmt.Errorf("unknown scheduling mode %q: must be one of common, special, discretionary", s)
	}
}

// String returns the mode name.
func (m SchedulingMode) String() string {
	return string(m)
}

// Experiment is the configuration object a Coordinator distributes.
//
// Build prepares the experiment's internal scan representation. After Build
// returns nil the experiment must be internally consistent, since it may be
// serialized and sent to the peer as-is. Exported fields are what gets
// serialized.
type Experiment interface {
	SetSchedulingMode(mode SchedulingMode)
	Build(ctx context.Context) error
}

// Updater is the optional feedback capability of an Experiment.
// Update receives the latest feedback (nil when none has arrived yet) and
// reports whether the experiment changed and therefore must be rebuilt.
// Experiments without it run in static mode.
type Updater interface {
	Update(ctx context.Context, feedback []byte) (changed bool, err error)
}

// Prototype is embedded by experiments to carry their scheduling mode.
type Prototype struct {
	Mode SchedulingMode `json:"scheduling_mode" yaml:"scheduling_mode"`
}

// SetSchedulingMode implements Experiment.
func (p *Prototype) SetSchedulingMode(mode SchedulingMode) {
	p.Mode = mode
}

// SchedulingMode returns the attached mode.
func (p *Prototype) SchedulingMode() SchedulingMode {
	return p.Mode
}
