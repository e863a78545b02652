package vlx

import (
	"encoding/json"
	"fmt"
)

// deviceInfo is the Home Assistant device block shared by a node's cover
// and keep-open switch.
type deviceInfo struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
}

type coverDiscovery struct {
	Name                string      `json:"name"`
	UniqueID            string      `json:"unique_id"`
	ObjectID            string      `json:"object_id"`
	StateTopic          string      `json:"state_topic"`
	PositionTopic       string      `json:"position_topic"`
	CommandTopic        string      `json:"command_topic"`
	SetPositionTopic    string      `json:"set_position_topic"`
	AvailabilityTopic   string      `json:"availability_topic"`
	PayloadAvailable    string      `json:"payload_available"`
	PayloadNotAvailable string      `json:"payload_not_available"`
	PayloadOpen         string      `json:"payload_open"`
	PayloadClose        string      `json:"payload_close"`
	PayloadStop         string      `json:"payload_stop"`
	PositionOpen        int         `json:"position_open"`
	PositionClosed      int         `json:"position_closed"`
	StateOpen           string      `json:"state_open"`
	StateClosed         string      `json:"state_closed"`
	StateOpening        string      `json:"state_opening"`
	StateClosing        string      `json:"state_closing"`
	DeviceClass         DeviceClass `json:"device_class"`
	Device              deviceInfo  `json:"device"`
}

type switchDiscovery struct {
	Name                string     `json:"name"`
	UniqueID            string     `json:"unique_id"`
	ObjectID            string     `json:"object_id"`
	Icon                string     `json:"icon"`
	StateTopic          string     `json:"state_topic"`
	CommandTopic        string     `json:"command_topic"`
	AvailabilityTopic   string     `json:"availability_topic"`
	PayloadAvailable    string     `json:"payload_available"`
	PayloadNotAvailable string     `json:"payload_not_available"`
	PayloadOn           string     `json:"payload_on"`
	PayloadOff          string     `json:"payload_off"`
	StateOn             string     `json:"state_on"`
	StateOff            string     `json:"state_off"`
	Device              deviceInfo `json:"device"`
}

func newDeviceInfo(b NodeBinding, prefix string) deviceInfo {
	return deviceInfo{
		Identifiers:  []string{prefix + b.ID},
		Name:         prefix + b.Node.Name(),
		Manufacturer: deviceMaker,
		Model:        b.Node.Type().String(),
	}
}

// coverDiscoveryPayload builds the retained discovery config of a cover.
func coverDiscoveryPayload(b NodeBinding, prefix string, t Topics) ([]byte, error) {
	uid := prefix + b.ID
	payload, err := json.Marshal(coverDiscovery{
		Name:                b.Node.Name(),
		UniqueID:            uid,
		ObjectID:            uid,
		StateTopic:          t.State,
		PositionTopic:       t.Position,
		CommandTopic:        t.Command,
		SetPositionTopic:    t.Command,
		AvailabilityTopic:   t.Availability,
		PayloadAvailable:    payloadOnline,
		PayloadNotAvailable: payloadOffline,
		PayloadOpen:         PayloadOpen,
		PayloadClose:        PayloadClose,
		PayloadStop:         PayloadStop,
		PositionOpen:        PositionOpen,
		PositionClosed:      PositionClosed,
		StateOpen:           StateOpen,
		StateClosed:         StateClosed,
		StateOpening:        StateOpening,
		StateClosing:        StateClosing,
		DeviceClass:         b.Class,
		Device:              newDeviceInfo(b, prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal cover discovery for %s: %w", b.ID, err)
	}
	return payload, nil
}

// switchDiscoveryPayload builds the retained discovery config of a
// keep-open switch.
func switchDiscoveryPayload(b NodeBinding, prefix string, t Topics) ([]byte, error) {
	uid := prefix + b.ID + keepOpenSuffix
	payload, err := json.Marshal(switchDiscovery{
		Name:                keepOpenName,
		UniqueID:            uid,
		ObjectID:            uid,
		Icon:                keepOpenIconName,
		StateTopic:          t.State,
		CommandTopic:        t.Command,
		AvailabilityTopic:   t.Availability,
		PayloadAvailable:    payloadOnline,
		PayloadNotAvailable: payloadOffline,
		PayloadOn:           PayloadOn,
		PayloadOff:          PayloadOff,
		StateOn:             switchStateOn,
		StateOff:            switchStateOff,
		Device:              newDeviceInfo(b, prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal switch discovery for %s: %w", b.ID, err)
	}
	return payload, nil
}
