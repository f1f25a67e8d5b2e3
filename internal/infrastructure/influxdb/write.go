package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementAuthAttempts is the measurement every authentication attempt is written to.
const MeasurementAuthAttempts = "auth_attempts"

// AuthAttempt is one authentication outcome destined for InfluxDB.
type AuthAttempt struct {
	// Outcome is stored as a tag; it has a small fixed set of values.
	Outcome string

	// Username and RemoteAddr are fields to keep series cardinality bounded.
	Username   string
	RemoteAddr string

	// At defaults to time.Now when zero.
	At time.Time
}

// NewAuthAttemptPoint builds the auth_attempts point for a.
func NewAuthAttemptPoint(a AuthAttempt) *write.Point {
	at := a.At
	if at.IsZero() {
		at = time.Now()
	}

	fields := map[string]interface{}{
		"count":    int64(1),
		"username": a.Username,
	}
	if a.RemoteAddr != "" {
		fields["remote_addr"] = a.RemoteAddr
	}

	return write.NewPoint(
		MeasurementAuthAttempts,
		map[string]string{"outcome": a.Outcome},
		fields,
		at,
	)
}

// WriteAuthAttempt queues one auth_attempts point. The write is batched
// and dropped silently when the client is disconnected.
func (c *Client) WriteAuthAttempt(a AuthAttempt) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(NewAuthAttemptPoint(a))
}

