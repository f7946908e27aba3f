package event

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcomes recorded by mailDispatched.
const (
	outcomeQueued = "queued"
	outcomeSent   = "sent"
	outcomeFailed = "failed"
)

// mailDispatched counts mail requests by dispatch mode, kind and outcome.
var mailDispatched = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "contactbook_mail_dispatch_total",
		Help: "Total number of mail requests by dispatch mode, kind and outcome",
	},
	[]string{"mode", "kind", "outcome"},
)
