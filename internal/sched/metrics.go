package sched

import "github.com/prometheus/client_golang/prometheus"

var remindersSentTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "sentinel_reminders_sent_total",
		Help: "Total number of payment reminders delivered.",
	},
)

func init() {
	prometheus.MustRegister(remindersSentTotal)
}
