/*
Package metrics provides Prometheus metrics for herd.

All metrics are package-level collectors registered with the default registry
at init. herd runs as a short-lived CLI, so nothing is scraped over HTTP;
instead the CLI writes the registry to a file in the text exposition format
when --metrics-textfile is set, for node_exporter's textfile collector.

# Metrics

	herd_operations_total{operation,result}        counter
	herd_operation_duration_seconds{operation}     histogram
	herd_node_transitions_total{role,transition}   counter
	herd_nodes{role,state}                         gauge
	herd_commands_total{target,result}             counter
	herd_poll_attempts_total                       counter

# Timing

	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.OperationDuration, "stop")
*/
package metrics
