package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewPollMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPollMetrics(reg)

	m.VotesRecorded.WithLabelValues("CHOICE").Add(2)
	m.VotesRejected.WithLabelValues("CHOICE", "duplicate").Inc()
	m.PollsCreated.WithLabelValues("TEXT").Inc()

	expected := `
# HELP qpoll_votes_recorded_total Total number of vote rows recorded
# TYPE qpoll_votes_recorded_total counter
qpoll_votes_recorded_total{poll_type="CHOICE"} 2
`
	err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "qpoll_votes_recorded_total")
	if err != nil {
		t.Error(err)
	}

	if n := testutil.CollectAndCount(m.VotesRejected); n != 1 {
		t.Errorf("Expected 1 rejection series, got %d", n)
	}
	if v := testutil.ToFloat64(m.PollsCreated.WithLabelValues("TEXT")); v != 1 {
		t.Errorf("Expected 1 created text poll, got %v", v)
	}
}
