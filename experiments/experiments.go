// Package experiments holds the experiment modules shipped with the beacon
// command. Each module registers exactly one beacon.Experiment.
package experiments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zoobzio/beacon"
)

// Module names.
const (
	ModuleNormalScan   = "normalscan"
	ModuleAdaptiveScan = "adaptivescan"
)

// Register adds every module in this package to r.
func Register(r *beacon.Registry) {
	r.Register(ModuleNormalScan, "NormalScan", func() any { return NewNormalScan() })
	r.Register(ModuleNormalScan, "beamOrder", func() any { return beamOrder(nil) })
	r.Register(ModuleAdaptiveScan, "AdaptiveScan", func() any { return NewAdaptiveScan() })
}

// Scan is one pass over a sequence of beams.
type Scan struct {
	Beams        []int   `json:"beams" yaml:"beams"`
	FrequencyKHz int     `json:"frequency_khz" yaml:"frequency_khz"`
	DwellSeconds float64 `json:"dwell_seconds" yaml:"dwell_seconds"`
}

// beamOrder is a helper type living in the normalscan module. It does not
// implement beacon.Experiment and is ignored by the registry.
type beamOrder []int

func sequential(n int) beamOrder {
	order := make(beamOrder, n)
	for i := range order {
		order[i] = i
	}
	return order
}

// NormalScan sweeps every beam at a fixed frequency. It has no Update
// method, so it runs in static mode.
type NormalScan struct {
	beacon.Prototype `yaml:",inline"`

	BeamCount    int     `json:"beam_count" yaml:"beam_count"`
	FrequencyKHz int     `json:"frequency_khz" yaml:"frequency_khz"`
	DwellSeconds float64 `json:"dwell_seconds" yaml:"dwell_seconds"`
	Scans        []Scan  `json:"scans" yaml:"scans"`
}

// NewNormalScan returns the default normal scan.
func NewNormalScan() *NormalScan {
	return &NormalScan{BeamCount: 16, FrequencyKHz: 10500, DwellSeconds: 3.5}
}

// Build lays out one scan over all beams.
func (n *NormalScan) Build(_ context.Context) error {
	if n.BeamCount <= 0 {
		return fmt.Errorf("beam count must be positive, got %d", n.BeamCount)
	}
	n.Scans = []Scan{{
		Beams:        sequential(n.BeamCount),
		FrequencyKHz: n.FrequencyKHz,
		DwellSeconds: n.DwellSeconds,
	}}
	return nil
}

// AdaptiveScan retunes its frequency from feedback of the form
// {"frequency_khz": 12000}.
type AdaptiveScan struct {
	beacon.Prototype `yaml:",inline"`

	BeamCount    int     `json:"beam_count" yaml:"beam_count"`
	FrequencyKHz int     `json:"frequency_khz" yaml:"frequency_khz"`
	DwellSeconds float64 `json:"dwell_seconds" yaml:"dwell_seconds"`
	Scans        []Scan  `json:"scans" yaml:"scans"`
}

// NewAdaptiveScan returns the default adaptive scan.
func NewAdaptiveScan() *AdaptiveScan {
	return &AdaptiveScan{BeamCount: 16, FrequencyKHz: 10500, DwellSeconds: 3.5}
}

// Build lays out a forward and a reverse sweep at the current frequency.
func (a *AdaptiveScan) Build(_ context.Context) error {
	if a.FrequencyKHz <= 0 {
		return errors.New("frequency must be positive")
	}
	forward := sequential(a.BeamCount)
	reverse := make([]int, len(forward))
	for i, b := range forward {
		reverse[len(forward)-1-i] = b
	}
	a.Scans = []Scan{
		{Beams: forward, FrequencyKHz: a.FrequencyKHz, DwellSeconds: a.DwellSeconds},
		{Beams: reverse, FrequencyKHz: a.FrequencyKHz, DwellSeconds: a.DwellSeconds},
	}
	return nil
}

// Update applies a frequency recommendation. Nil feedback changes nothing.
func (a *AdaptiveScan) Update(_ context.Context, feedback []byte) (bool, error) {
	if len(feedback) == 0 {
		return false, nil
	}
	var rec struct {
		FrequencyKHz int `json:"frequency_khz"`
	}
	if err := json.Unmarshal(feedback, &rec); err != nil {
		return false, fmt.Errorf("decode feedback: %w", err)
	}
	if rec.FrequencyKHz <= 0 || rec.FrequencyKHz == a.FrequencyKHz {
		return false, nil
	}
	a.FrequencyKHz = rec.FrequencyKHz
	return true, nil
}

var (
	_ beacon.Experiment = (*NormalScan)(nil)
	_ beacon.Experiment = (*AdaptiveScan)(nil)
	_ beacon.Updater    = (*AdaptiveScan)(nil)
)
