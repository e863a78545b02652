// Package sim implements a simulated gateway driver.
//
// Nodes are declared in gateway.sim.nodes. A SetPosition moves the node by
// step_percent every step_interval_ms until it reaches the target, raising
// a node update after each step. Connect failures and operation errors can
// be injected for tests.
package sim
