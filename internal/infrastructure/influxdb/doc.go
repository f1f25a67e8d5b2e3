// Package influxdb writes authentication telemetry to InfluxDB v2.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, a batched non-blocking write API and health checks. Each
// authentication attempt becomes one point in the auth_attempts
// measurement, tagged by outcome.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteAuthAttempt(influxdb.AuthAttempt{
//	    Username: "alice",
//	    Outcome:  "success",
//	})
//
// # Error Handling
//
// Writes are batched and never block the caller. Batch failures are
// delivered to the callback registered with SetOnError. Connection and
// health check errors are returned directly.
package influxdb
