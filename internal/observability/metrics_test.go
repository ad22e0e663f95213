package observability

import (
	"testing"
	"time"

	"github.com/danmuck/authctl/internal/protocol"
	"github.com/danmuck/authctl/internal/protocol/machine"
	"github.com/danmuck/authctl/internal/testutil/testlog"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	testlog.Start(t)
	RegisterMetrics()
	RegisterMetrics()

	RecordHTTPRequest("authctl", "GET", "/health", 200, 12*time.Millisecond)
	RecordProtocolRun(machine.StateEnd, 40*time.Millisecond)
	RecordEnroll("success", 5*time.Millisecond)
}

func TestMachineObserverCounts(t *testing.T) {
	testlog.Start(t)
	obs := MachineObserver{}

	before := testutil.ToFloat64(protocolAborts.WithLabelValues("CHALLENGE", "certificate"))
	obs.Aborted(machine.StateChallenge, protocol.ErrCertificate)
	after := testutil.ToFloat64(protocolAborts.WithLabelValues("CHALLENGE", "certificate"))
	if after != before+1 {
		t.Fatalf("abort counter: before=%v after=%v", before, after)
	}

	before = testutil.ToFloat64(protocolTransitions.WithLabelValues("START", "CHALLENGE"))
	obs.Transition(machine.StateStart, machine.StateChallenge)
	after = testutil.ToFloat64(protocolTransitions.WithLabelValues("START", "CHALLENGE"))
	if after != before+1 {
		t.Fatalf("transition counter: before=%v after=%v", before, after)
	}
}
