package usecase

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	statementsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_statements_created_total",
			Help: "Statements persisted, by type",
		},
		[]string{"type"},
	)

	statementsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_statements_rejected_total",
			Help: "Create-statement requests that did not persist, by error kind",
		},
		[]string{"reason"},
	)

	eventPublishErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_event_publish_errors_total",
			Help: "StatementCreated events that failed to publish",
		},
	)
)
