package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	EventsAppendedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "banksaga_events_appended_total",
			Help: "Domain events appended to the event store, by kind",
		},
		[]string{"kind"},
	)

	EventsReplaySkippedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "banksaga_events_replay_skipped_total",
			Help: "Events skipped during aggregate replay (undecodable or foreign kind)",
		},
	)

	DedupHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "banksaga_dedup_hits_total",
			Help: "Duplicate event deliveries suppressed by the dedup guard, by event kind",
		},
		[]string{"kind"},
	)

	SagaCommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "banksaga_saga_commands_total",
			Help: "Commands emitted by the saga pipeline, by command name",
		},
		[]string{"command"},
	)

	BrokerMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "banksaga_broker_messages_total",
			Help: "Broker messages settled by the orchestrator, by queue and outcome (ack|nack)",
		},
		[]string{"queue", "outcome"},
	)

	WorkerTasksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "banksaga_worker_tasks_total",
			Help: "Tasks executed by worker processes, by command and status (ok|failed)",
		},
		[]string{"command", "status"},
	)
)

func MustRegister(r prometheus.Registerer) {
	r.MustRegister(
		EventsAppendedTotal,
		EventsReplaySkippedTotal,
		DedupHitsTotal,
		SagaCommandsTotal,
		BrokerMessagesTotal,
		WorkerTasksTotal,
	)
}
