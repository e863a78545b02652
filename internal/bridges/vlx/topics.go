package vlx

// Topic suffixes.
const (
	keepOpenSuffix   = "-keepopen"
	configSuffix     = "/config"
	stateSuffix      = "/state"
	positionSuffix   = "/position"
	commandSuffix    = "/set"
	availableSuffix  = "/available"
	coverComponent   = "cover"
	switchComponent  = "switch"
	payloadOnline    = "online"
	payloadOffline   = "offline"
	switchStateOn    = "on"
	switchStateOff   = "off"
	deviceMaker      = "VELUX"
	keepOpenName     = "Keep open"
	keepOpenIconName = "mdi:lock-outline"
)

// Topics is the set of MQTT topics owned by one entity. Position is empty
// for the keep-open switch.
type Topics struct {
	Discovery    string
	State        string
	Position     string
	Command      string
	Availability string
}

// CoverTopics returns the topics of the cover entity for id.
//
//	{discovery}/cover/{prefix}{id}/config
//	{prefix}{id}/state
//	{prefix}{id}/position
//	{prefix}{id}/set
//	{prefix}{id}/available
func CoverTopics(discoveryPrefix, prefix, id string) Topics {
	base := prefix + id
	return Topics{
		Discovery:    discoveryPrefix + "/" + coverComponent + "/" + base + configSuffix,
		State:        base + stateSuffix,
		Position:     base + positionSuffix,
		Command:      base + commandSuffix,
		Availability: base + availableSuffix,
	}
}

// KeepOpenTopics returns the topics of the keep-open switch for id.
//
//	{discovery}/switch/{prefix}{id}-keepopen/config
//	{prefix}{id}-keepopen/state
//	{prefix}{id}-keepopen/set
//	{prefix}{id}-keepopen/available
func KeepOpenTopics(discoveryPrefix, prefix, id string) Topics {
	base := prefix + id + keepOpenSuffix
	return Topics{
		Discovery:    discoveryPrefix + "/" + switchComponent + "/" + base + configSuffix,
		State:        base + stateSuffix,
		Command:      base + commandSuffix,
		Availability: base + availableSuffix,
	}
}
