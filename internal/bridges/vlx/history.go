package vlx

// coverStateMeasurement is the InfluxDB measurement for cover history.
const coverStateMeasurement = "cover_state"

// PointWriter writes one time-series point. *influxdb.Client satisfies it.
type PointWriter interface {
	WritePoint(measurement string, tags map[string]string, fields map[string]any)
}

// PointHistory records cover states as time-series points.
type PointHistory struct {
	w PointWriter
}

// NewPointHistory creates a history writer on w.
func NewPointHistory(w PointWriter) *PointHistory {
	return &PointHistory{w: w}
}

// WriteCoverState writes one cover_state point.
func (h *PointHistory) WriteCoverState(entityID string, class DeviceClass, state CoverState) {
	label := string(class)
	if class == DeviceClassGeneric {
		label = "generic"
	}
	h.w.WritePoint(coverStateMeasurement,
		map[string]string{
			"entity_id":    entityID,
			"device_class": label,
		},
		map[string]any{
			"position": state.Position,
			"state":    state.BusState(),
			"limited":  state.Limited,
		},
	)
}
