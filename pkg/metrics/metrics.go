package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Orchestrator metrics
	OperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "herd_operations_total",
			Help: "Total number of orchestrator operations by operation and result",
		},
		[]string{"operation", "result"},
	)

	OperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "herd_operation_duration_seconds",
			Help:    "Orchestrator operation duration in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		},
		[]string{"operation"},
	)

	NodeTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "herd_node_transitions_total",
			Help: "Total number of node lifecycle transitions by role and transition",
		},
		[]string{"role", "transition"},
	)

	// Topology as last observed by an operation
	NodesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "herd_nodes",
			Help: "Number of nodes by role and machine state",
		},
		[]string{"role", "state"},
	)

	// Executor metrics
	CommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "herd_commands_total",
			Help: "Total number of executed commands by target and result",
		},
		[]string{"target", "result"},
	)

	// Stop sequence polling
	PollAttemptsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "herd_poll_attempts_total",
			Help: "Total number of node status polls while waiting for a node to go down",
		},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(OperationsTotal)
	prometheus.MustRegister(OperationDuration)
	prometheus.MustRegister(NodeTransitionsTotal)
	prometheus.MustRegister(NodesTotal)
	prometheus.MustRegister(CommandsTotal)
	prometheus.MustRegister(PollAttemptsTotal)
}

// WriteTextfile writes every registered metric to path in the text
// exposition format, for node_exporter's textfile collector.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}

// Result maps an operation error to the result label
func Result(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
