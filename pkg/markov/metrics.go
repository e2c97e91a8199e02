package markov

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var generationSample = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "markovrelay_generation_sample_size",
	Help:    "number of sentences a reply was generated from",
	Buckets: prometheus.ExponentialBuckets(1, 4, 6),
})

var generationWords = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "markovrelay_generation_words",
	Help:    "length in words of generated replies",
	Buckets: prometheus.LinearBuckets(0, 5, 10),
})
