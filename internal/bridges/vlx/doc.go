// Package vlx exposes gateway nodes as Home Assistant MQTT entities.
//
// Each node becomes a cover and a keep-open switch:
//
//	homeassistant/cover/{prefix}{id}/config            discovery (retained)
//	homeassistant/switch/{prefix}{id}-keepopen/config  discovery (retained)
//	{prefix}{id}/state                                 open|closed|opening|closing
//	{prefix}{id}/position                              0..100
//	{prefix}{id}/set                                   OPEN|CLOSE|STOP|0..100
//	{prefix}{id}/available                             online|offline
//	{prefix}{id}-keepopen/state                        on|off
//	{prefix}{id}-keepopen/set                          ON|OFF
//	{prefix}{id}-keepopen/available                    online|offline
//
// Positions follow the gateway convention: 0 is fully open and 100 fully
// closed. Awnings can be reported inverted (homeassistant.invert_awning),
// in which case the bus sees 100 - position and opening/closing swapped.
//
// While keep-open is on, every target sent to the gateway is limited to
// homeassistant.keep_open_limit. The limit applies to raw device
// positions, after any inversion.
//
// # Concurrency
//
// Command handlers run on MQTT callback goroutines. They validate the
// payload and then call Scheduler.Invoke, so the driver and each Mapper
// are only touched from the loop goroutine. Node updates are raised on the
// loop as well. Publishing is serialised per entity by its publisher.
package vlx
