package testing

import (
	"context"
	"testing"
	"time"

	"github.com/zoobzio/beacon"
)

func TestTestExperiment_Build(t *testing.T) {
	tests := []struct {
		name    string
		beams   int
		wantErr bool
	}{
		{name: "three beams", beams: 3},
		{name: "no beams", beams: 0, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exp := &TestExperiment{Beams: tt.beams}
			err := exp.Build(context.Background())
			if (err != nil) != tt.wantErr {
				t.Errorf("Build() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && len(exp.Scans) != tt.beams {
				t.Errorf("expected %d scans, got %d", tt.beams, len(exp.Scans))
			}
		})
	}
}

func TestTestExperiment_Update(t *testing.T) {
	exp := &TestExperiment{Beams: 2}
	ctx := context.Background()

	if changed, err := exp.Update(ctx, []byte("2")); changed || err != nil {
		t.Errorf("expected no change, got changed=%v err=%v", changed, err)
	}
	if changed, err := exp.Update(ctx, []byte("12")); !changed || err != nil {
		t.Errorf("expected change, got changed=%v err=%v", changed, err)
	}
	if exp.Beams != 12 {
		t.Errorf("expected 12 beams, got %d", exp.Beams)
	}
	if _, err := exp.Update(ctx, []byte("x")); err == nil {
		t.Error("expected error for non-numeric feedback")
	}
}

func TestWaitFor(t *testing.T) {
	t.Run("condition met immediately", func(t *testing.T) {
		if !WaitFor(t, 100*time.Millisecond, func() bool { return true }) {
			t.Error("expected WaitFor to return true")
		}
	})

	t.Run("condition never met", func(t *testing.T) {
		if WaitFor(t, 30*time.Millisecond, func() bool { return false }) {
			t.Error("expected WaitFor to return false")
		}
	})
}

type wireTest struct {
	Beams int   `json:"beams"`
	Scans []int `json:"scans"`
}

func TestNewTestCoordinator(t *testing.T) {
	exp := &TestExperiment{Beams: 3}
	c, peer := NewTestCoordinator(t, exp, nil)

	got := Request[wireTest](t, peer, beacon.CodeExpNeeded)
	if got == nil || len(got.Scans) != 3 {
		t.Fatalf("expected 3 scans, got %+v", got)
	}
	RequireState(t, c, beacon.StateHealthy)

	if got := Request[wireTest](t, peer, beacon.CodeNoError); got != nil {
		t.Errorf("expected unchanged, got %+v", got)
	}
	if exp.Builds() != 1 {
		t.Errorf("expected 1 build, got %d", exp.Builds())
	}
}

func TestWaitForState(t *testing.T) {
	exp := &TestExperiment{Beams: 0}
	c, peer := NewTestCoordinator(t, exp, nil)

	Request[wireTest](t, peer, beacon.CodeExpNeeded)
	if !WaitForState(t, c, beacon.StateEmpty, time.Second) {
		t.Errorf("expected empty state, got %s", c.State())
	}
}
