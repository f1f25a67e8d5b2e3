package mqtt

import "strings"

// DefaultTopicPrefix is used when no prefix is configured.
const DefaultTopicPrefix = "gatekeeper"

// Topics builds Gatekeeper MQTT topic names under one prefix.
//
//	topics := mqtt.NewTopics("gatekeeper")
//	topics.AuthEvents() // "gatekeeper/auth/events"
type Topics struct {
	prefix string
}

// NewTopics returns a builder for prefix. Trailing slashes are trimmed and
// an empty prefix falls back to DefaultTopicPrefix.
func NewTopics(prefix string) Topics {
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{prefix: prefix}
}

// Prefix returns the topic root.
func (t Topics) Prefix() string {
	return t.prefix
}

// AuthEvents carries one message per authentication attempt.
func (t Topics) AuthEvents() string {
	return t.prefix + "/auth/events"
}

// AdminEvents carries rank and account administration changes.
func (t Topics) AdminEvents() string {
	return t.prefix + "/admin/events"
}

// SystemStatus carries the retained online/offline status.
func (t Topics) SystemStatus() string {
	return t.prefix + "/system/status"
}
