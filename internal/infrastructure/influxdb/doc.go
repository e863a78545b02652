// Package influxdb writes the bridge's time-series history to InfluxDB v2.
//
// The bridge records one cover_state point per published cover change and
// one bridge_restart point whenever the supervisor asks for a restart. Both
// go through the non-blocking batched write API of influxdb-client-go, so a
// slow or unreachable server never stalls the gateway loop; failures surface
// through the SetOnError callback instead.
//
// Usage:
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	history := vlx.NewPointHistory(client)
package influxdb
