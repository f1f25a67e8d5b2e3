package activity

import (
	"context"

	"github.com/nerrad567/gatekeeper/internal/audit"
	"github.com/nerrad567/gatekeeper/internal/infrastructure/influxdb"
	"github.com/nerrad567/gatekeeper/internal/infrastructure/mqtt"
)

// AuditWriter is the subset of audit.Repository the audit sink needs.
type AuditWriter interface {
	Create(ctx context.Context, log *audit.AuditLog) error
}

// AuditSink writes every event to the audit log.
type AuditSink struct {
	repo AuditWriter
}

// NewAuditSink returns nil when repo is nil.
func NewAuditSink(repo AuditWriter) Sink {
	if repo == nil {
		return nil
	}
	return &AuditSink{repo: repo}
}

// Name identifies the sink in logs.
func (s *AuditSink) Name() string { return "audit" }

// Record writes e as one audit_logs row.
func (s *AuditSink) Record(ctx context.Context, e Event) error {
	return s.repo.Create(ctx, &audit.AuditLog{
		Action:     e.Action,
		Outcome:    e.Outcome,
		Username:   e.Username,
		RemoteAddr: e.RemoteAddr,
		Details:    e.Details,
		CreatedAt:  e.At,
	})
}

// EventPublisher is the subset of the MQTT client the bus sink needs.
type EventPublisher interface {
	PublishEvent(topic string, v any) error
	Topics() mqtt.Topics
}

// MQTTSink publishes login events to the auth topic and everything else
// to the admin topic.
type MQTTSink struct {
	pub EventPublisher
}

// NewMQTTSink returns nil when pub is nil.
func NewMQTTSink(pub EventPublisher) Sink {
	if pub == nil {
		return nil
	}
	return &MQTTSink{pub: pub}
}

// Name identifies the sink in logs.
func (s *MQTTSink) Name() string { return "mqtt" }

// Record publishes e to the auth or admin events topic.
func (s *MQTTSink) Record(_ context.Context, e Event) error {
	topics := s.pub.Topics()
	topic := topics.AdminEvents()
	if e.IsLogin() {
		topic = topics.AuthEvents()
	}
	return s.pub.PublishEvent(topic, e)
}

// PointWriter is the subset of the InfluxDB client the telemetry sink needs.
type PointWriter interface {
	WriteAuthAttempt(a influxdb.AuthAttempt)
}

// InfluxSink writes login events as auth_attempts points.
type InfluxSink struct {
	w PointWriter
}

// NewInfluxSink returns nil when w is nil.
func NewInfluxSink(w PointWriter) Sink {
	if w == nil {
		return nil
	}
	return &InfluxSink{w: w}
}

// Name identifies the sink in logs.
func (s *InfluxSink) Name() string { return "influxdb" }

// Record writes login events as auth_attempts points and ignores the rest.
func (s *InfluxSink) Record(_ context.Context, e Event) error {
	if !e.IsLogin() {
		return nil
	}
	s.w.WriteAuthAttempt(influxdb.AuthAttempt{
		Outcome:    e.Outcome,
		Username:   e.Username,
		RemoteAddr: e.RemoteAddr,
		At:         e.At,
	})
	return nil
}
