package main

import (
	"strconv"

	"github.com/miekg/dns"
	"github.com/prometheus/client_golang/prometheus"
)

// Qmetrics counts handled queries labeled by question type and
// response code, grounded on the teacher's later Qmetrics counter.
var Qmetrics = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "tres",
	Subsystem: "resolver",
	Name:      "queries_total",
	Help:      "Counter of queries handled by type and response code.",
}, []string{"qtype", "rcode"})

// ResolveSeconds observes end-to-end resolution latency.
var ResolveSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
	Namespace: "tres",
	Subsystem: "resolver",
	Name:      "resolve_seconds",
	Help:      "End-to-end resolution latency in seconds.",
	Buckets:   prometheus.DefBuckets,
})

func init() {
	prometheus.MustRegister(Qmetrics, ResolveSeconds)
}

// ObserveQuery records one handled query's type and resulting RCODE.
func ObserveQuery(qtype uint16, rcode int) {
	Qmetrics.With(prometheus.Labels{
		"qtype": dns.TypeToString[qtype],
		"rcode": strconv.Itoa(rcode),
	}).Inc()
}
