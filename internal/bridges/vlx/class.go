package vlx

import (
	"encoding/json"

	"github.com/nerrad567/vlx-bridge/internal/gateway"
)

// DeviceClass is the Home Assistant cover device class.
type DeviceClass string

const (
	DeviceClassWindow  DeviceClass = "window"
	DeviceClassBlind   DeviceClass = "blind"
	DeviceClassAwning  DeviceClass = "awning"
	DeviceClassShutter DeviceClass = "shutter"
	DeviceClassGarage  DeviceClass = "garage"
	DeviceClassGate    DeviceClass = "gate"
	DeviceClassShade   DeviceClass = "shade"

	// DeviceClassGeneric is used for unrecognised node types. It encodes
	// as JSON null, which Home Assistant shows as a plain cover.
	DeviceClassGeneric DeviceClass = ""
)

// MarshalJSON encodes DeviceClassGeneric as null.
func (c DeviceClass) MarshalJSON() ([]byte, error) {
	if c == DeviceClassGeneric {
		return []byte("null"), nil
	}
	return json.Marshal(string(c))
}

// ResolveDeviceClass maps a gateway node type to its device class.
// Unknown types resolve to DeviceClassGeneric and log a warning.
func ResolveDeviceClass(t gateway.DeviceType, logger Logger) DeviceClass {
	switch t {
	case gateway.TypeWindow:
		return DeviceClassWindow
	case gateway.TypeBlind:
		return DeviceClassBlind
	case gateway.TypeAwning:
		return DeviceClassAwning
	case gateway.TypeRollerShutter:
		return DeviceClassShutter
	case gateway.TypeGarageDoor:
		return DeviceClassGarage
	case gateway.TypeGate:
		return DeviceClassGate
	case gateway.TypeBlade:
		return DeviceClassShade
	default:
		if logger != nil {
			logger.Warn("unrecognised node type, using generic device class", "type", t.String())
		}
		return DeviceClassGeneric
	}
}
