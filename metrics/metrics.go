package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PollMetrics counts what happens to submitted votes, labelled by poll type.
// Rejections are also labelled by reason: duplicate, invalid_payload or blocked.
type PollMetrics struct {
	VotesRecorded *prometheus.CounterVec
	VotesRejected *prometheus.CounterVec
	PollsCreated  *prometheus.CounterVec
}

func NewPollMetrics(reg prometheus.Registerer) *PollMetrics {
	factory := promauto.With(reg)
	return &PollMetrics{
		VotesRecorded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "qpoll",
				Subsystem: "votes",
				Name:      "recorded_total",
				Help:      "Total number of vote rows recorded",
			},
			[]string{"poll_type"},
		),
		VotesRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "qpoll",
				Subsystem: "votes",
				Name:      "rejected_total",
				Help:      "Total number of vote submissions rejected",
			},
			[]string{"poll_type", "reason"},
		),
		PollsCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "qpoll",
				Subsystem: "polls",
				Name:      "created_total",
				Help:      "Total number of polls created",
			},
			[]string{"poll_type"},
		),
	}
}
