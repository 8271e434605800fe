// Package influxdb provides InfluxDB v2 connectivity for Hearth.
//
// It wraps the official influxdb-client-go v2 library with patterns
// for connection management, batched point writing and health
// monitoring. The influxdb export integration builds on this client;
// the package itself knows nothing about entities.
//
// # Usage
//
//	client, err := influxdb.Connect(influxdb.Options{
//	    URL:    "http://localhost:8086",
//	    Token:  "your-token",
//	    Org:    "hearth",
//	    Bucket: "hearth",
//	})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WritePoint("entity_state",
//	    map[string]string{"platform": "sensor"},
//	    map[string]any{"value": 21.5})
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking; batch errors are delivered
// through the SetOnError callback. Connection and health check errors
// are returned directly.
package influxdb
