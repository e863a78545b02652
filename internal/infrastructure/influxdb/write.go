package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// restartMeasurement records supervisor-initiated restarts.
const restartMeasurement = "bridge_restart"

// WritePoint queues a point stamped now. Dropped after Close.
//
//	client.WritePoint("cover_state",
//	    map[string]string{"entity_id": "vlx-kitchen"},
//	    map[string]any{"position": 40, "state": "closing"})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	c.WritePointAt(measurement, tags, fields, time.Now())
}

// WritePointAt queues a point with an explicit timestamp.
func (c *Client) WritePointAt(measurement string, tags map[string]string, fields map[string]any, ts time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, ts))
}

// WriteRestart records a restart trigger with its reason.
func (c *Client) WriteRestart(reason string) {
	c.WritePoint(restartMeasurement,
		map[string]string{"reason": reason},
		map[string]any{"count": 1},
	)
}
