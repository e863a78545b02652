// Package gateway defines the interfaces the bridge consumes from a
// motorised-opening gateway driver.
//
// The wire protocol lives in the driver implementation. This repository
// ships one driver, gateway/sim, an in-process simulation configured from
// gateway.sim in the config file.
package gateway
