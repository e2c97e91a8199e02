package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var eventProcessDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "markovrelay_event_duration_sec",
	Help:    "Duration of event processing",
	Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
}, []string{"type"})

var eventProcessCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "markovrelay_event_processed",
	Help: "Number of events processed",
}, []string{"type"})

var eventErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "markovrelay_event_errors",
	Help: "Number of events which failed processing",
}, []string{"type"})

var eventPanicCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "markovrelay_event_panics",
	Help: "Number of event handlers that panicked",
}, []string{"type"})

var sentencesIngested = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "markovrelay_sentences_ingested",
	Help: "Number of sentences written to the corpus",
}, []string{"source"})

var sentencesRetracted = promauto.NewCounter(prometheus.CounterOpts{
	Name: "markovrelay_sentences_retracted",
	Help: "Number of sentences deleted by retraction",
})

var repliesSent = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "markovrelay_replies_sent",
	Help: "Number of generated replies sent",
}, []string{"kind"})

var commandCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "markovrelay_commands",
	Help: "Number of commands handled",
}, []string{"status"})

var moderationOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "markovrelay_moderation_outcomes",
	Help: "Reaction moderation results",
}, []string{"action", "outcome"})
