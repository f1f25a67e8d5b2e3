// Package activity fans authentication and administration events out to
// the configured sinks: the audit log, the MQTT event bus, InfluxDB and
// Prometheus.
//
// Record only queues the event. A single worker delivers it to each sink
// after the request has moved on; a full queue drops the event. A failing
// sink is logged and skipped, and never changes the outcome the caller
// reports to its client.
//
//	rec := activity.NewRecorder(activity.RecorderConfig{Logger: logger},
//	    activity.NewAuditSink(auditRepo),
//	    activity.NewMQTTSink(mqttClient),
//	    metrics,
//	)
//	defer rec.Close(shutdownCtx)
//	rec.Record(ctx, activity.LoginEvent("alice", r.RemoteAddr, err))
package activity
