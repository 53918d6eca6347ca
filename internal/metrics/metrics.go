package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsPublished counts classroom events by type.
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "classquest_events_published_total",
		Help: "Classroom channel events published, by event type.",
	}, []string{"type"})

	// Answers counts answer submissions by outcome (accepted, duplicate, rejected).
	Answers = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "classquest_answers_total",
		Help: "Answer submissions, by outcome.",
	}, []string{"outcome"})

	// Spins counts completed roulette spins.
	Spins = promauto.NewCounter(prometheus.CounterOpts{
		Name: "classquest_roulette_spins_total",
		Help: "Roulette spins started.",
	})

	// Verdicts counts reward verdicts by result (applied, rolled_back).
	Verdicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "classquest_verdicts_total",
		Help: "Professor verdicts, by persistence result.",
	}, []string{"result"})
)
