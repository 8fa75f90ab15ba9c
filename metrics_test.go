package beacon

import (
	"testing"
	"time"
)

func TestNoOpMetricsProvider_DoesNotPanic(_ *testing.T) {
	var m NoOpMetricsProvider

	// These should not panic
	m.OnStateChange(StateLoading, StateHealthy)
	m.OnRequest(CodeExpNeeded)
	m.OnReply(SnapshotFull, 128)
	m.OnBuildSuccess(100 * time.Millisecond)
	m.OnFault(OpBuild)
	m.OnWorkerRun(true, 50*time.Millisecond)
}

var _ MetricsProvider = NoOpMetricsProvider{}
