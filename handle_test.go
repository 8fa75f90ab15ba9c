package beacon

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestHandle_StaticDetection(t *testing.T) {
	if !NewHandle(&staticExperiment{}).Static() {
		t.Error("expected experiment without Update to be static")
	}
	if NewHandle(newFeedbackExperiment(1)).Static() {
		t.Error("expected experiment with Update to accept feedback")
	}
}

func TestHandle_RebuildRequiresMode(t *testing.T) {
	h := NewHandle(&staticExperiment{Value: 1})

	err := h.Rebuild(context.Background())
	if !errors.Is(err, ErrModeNotSet) {
		t.Fatalf("expected ErrModeNotSet, got %v", err)
	}
	if h.Built() {
		t.Error("expected unbuilt experiment")
	}
}

func TestHandle_SetSchedulingModeOnce(t *testing.T) {
	exp := &staticExperiment{Value: 1}
	h := NewHandle(exp)

	if err := h.SetSchedulingMode(ModeSpecial); err != nil {
		t.Fatalf("SetSchedulingMode() error = %v", err)
	}
	if exp.SchedulingMode() != ModeSpecial {
		t.Errorf("expected mode attached to experiment, got %q", exp.SchedulingMode())
	}
	if err := h.SetSchedulingMode(ModeCommon); !errors.Is(err, ErrModeAlreadySet) {
		t.Errorf("expected ErrModeAlreadySet, got %v", err)
	}
	if h.Mode() != ModeSpecial {
		t.Errorf("expected mode unchanged, got %q", h.Mode())
	}
}

func TestHandle_Rebuild(t *testing.T) {
	exp := &staticExperiment{Value: 2}
	h := NewHandle(exp)
	if err := h.SetSchedulingMode(ModeCommon); err != nil {
		t.Fatal(err)
	}

	if err := h.Rebuild(context.Background()); err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}
	if !h.Built() || h.Builds() != 1 {
		t.Errorf("expected built with 1 build, got built=%v builds=%d", h.Built(), h.Builds())
	}
	if exp.Scans != 20 {
		t.Errorf("expected scans prepared, got %d", exp.Scans)
	}
}

func TestHandle_RebuildFault(t *testing.T) {
	exp := newFeedbackExperiment(1)
	h := NewHandle(exp)
	_ = h.SetSchedulingMode(ModeCommon)
	if err := h.Rebuild(context.Background()); err != nil {
		t.Fatal(err)
	}

	exp.failBuild.Store(true)
	err := h.Rebuild(context.Background())
	var fault *Fault
	if !errors.As(err, &fault) {
		t.Fatalf("expected *Fault, got %v", err)
	}
	if fault.Op != OpBuild || fault.Panicked {
		t.Errorf("unexpected fault %+v", fault)
	}
	if h.Built() {
		t.Error("expected failed rebuild to leave experiment unbuilt")
	}
	if h.Builds() != 1 {
		t.Errorf("expected failed build not counted, got %d", h.Builds())
	}
}

func TestHandle_RebuildPanic(t *testing.T) {
	exp := newFeedbackExperiment(1)
	exp.panicBuild.Store(true)
	h := NewHandle(exp)
	_ = h.SetSchedulingMode(ModeCommon)

	err := h.Rebuild(context.Background())
	var fault *Fault
	if !errors.As(err, &fault) || !fault.Panicked {
		t.Fatalf("expected panicked fault, got %v", err)
	}
}

var errBeamOverflow = errors.New("beam overflow")

type panicErrorExperiment struct {
	Prototype
}

func (*panicErrorExperiment) Build(context.Context) error {
	panic(fmt.Errorf("tuning: %w", errBeamOverflow))
}

func TestHandle_RebuildPanicKeepsErrorChain(t *testing.T) {
	h := NewHandle(&panicErrorExperiment{})
	_ = h.SetSchedulingMode(ModeCommon)

	err := h.Rebuild(context.Background())
	var fault *Fault
	if !errors.As(err, &fault) || !fault.Panicked {
		t.Fatalf("expected panicked fault, got %v", err)
	}
	if !errors.Is(err, errBeamOverflow) {
		t.Errorf("expected panic value in the error chain, got %v", err)
	}
	if h.Built() {
		t.Error("expected handle unbuilt after a panicking build")
	}
}

func TestHandle_ModeAfterBuild(t *testing.T) {
	h := &Handle{exp: &staticExperiment{}, builds: 1}
	if err := h.SetSchedulingMode(ModeCommon); !errors.Is(err, ErrModeAfterBuild) {
		t.Errorf("expected ErrModeAfterBuild, got %v", err)
	}
}

func TestHandle_ApplyFeedback(t *testing.T) {
	exp := newFeedbackExperiment(1)
	h := NewHandle(exp)
	_ = h.SetSchedulingMode(ModeCommon)
	_ = h.Rebuild(context.Background())

	changed, err := h.ApplyFeedback(context.Background(), []byte("1"))
	if err != nil || changed {
		t.Fatalf("expected no change, got changed=%v err=%v", changed, err)
	}
	if !h.Built() {
		t.Error("unchanged feedback should keep the build")
	}

	changed, err = h.ApplyFeedback(context.Background(), []byte("5"))
	if err != nil || !changed {
		t.Fatalf("expected change, got changed=%v err=%v", changed, err)
	}
	if h.Built() {
		t.Error("changed experiment must be rebuilt")
	}

	_ = h.Rebuild(context.Background())
	_, err = h.ApplyFeedback(context.Background(), []byte("not a number"))
	var fault *Fault
	if !errors.As(err, &fault) || fault.Op != OpUpdate {
		t.Fatalf("expected update fault, got %v", err)
	}
	if h.Built() {
		t.Error("failed update must mark experiment unbuilt")
	}
}

func TestHandle_ApplyFeedbackStatic(t *testing.T) {
	h := NewHandle(&staticExperiment{})
	changed, err := h.ApplyFeedback(context.Background(), []byte("9"))
	if changed || err != nil {
		t.Errorf("expected static experiment to ignore feedback, got changed=%v err=%v", changed, err)
	}
}
