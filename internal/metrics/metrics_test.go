package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Record(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Command("roll", "telegram")
	m.Command("roll", "telegram")
	m.Generation(2*time.Second, true)
	m.Generation(time.Second, false)
	m.TurnCommitted()
	m.Roll(nil)
	m.Roll(errors.New("down"))
	m.Throttle()

	if got := testutil.ToFloat64(m.Commands.WithLabelValues("roll", "telegram")); got != 2 {
		t.Fatalf("commands = %v", got)
	}
	if got := testutil.ToFloat64(m.FallbackNarrations); got != 1 {
		t.Fatalf("fallbacks = %v", got)
	}
	if got := testutil.ToFloat64(m.TurnsCommitted); got != 1 {
		t.Fatalf("turns = %v", got)
	}
	if got := testutil.ToFloat64(m.RollsRecorded.WithLabelValues("error")); got != 1 {
		t.Fatalf("failed rolls = %v", got)
	}
	if got := testutil.CollectAndCount(m.GenerationSeconds); got != 1 {
		t.Fatalf("histogram series = %v", got)
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.Command("dm", "http")
	m.Generation(time.Second, true)
	m.TurnCommitted()
	m.Roll(nil)
	m.Throttle()
}
