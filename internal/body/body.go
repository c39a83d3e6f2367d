// Package body defines the collaborator interfaces the decision core
// drives: sensing, actuation, feedback and optional battery telemetry.
// Hardware backends live outside this repository; a noise-driven
// simulated body is provided for bench runs and tests.
package body

import "github.com/fieldmind/homeostat/internal/sense"

// Sensing supplies one raw proximity reading set per full cycle.
// Out-of-range values are acceptable; the sensor window clamps them.
type Sensing interface {
	ReadProximity() [sense.Channels]int
}

// Actuation receives wheel-velocity commands, each component in [-1,1].
// Failures are surfaced to the control loop as non-fatal warnings.
type Actuation interface {
	SetVelocity(left, right float64) error
	Stop() error
}

// Feedback receives damage and termination notifications. Both calls
// are fire-and-forget from the core's perspective; a slow
// implementation only delays its own goroutine.
type Feedback interface {
	SignalDamageEvent()
	SignalTermination()
}

// BatteryStatus is a read-only telemetry sample.
type BatteryStatus struct {
	ChargePercent int     `json:"charge_percent"`
	Voltage       float64 `json:"voltage_mv"`
	CurrentMA     float64 `json:"current_ma"`
	Charging      bool    `json:"charging"`
}

// Battery is the optional telemetry collaborator. The decision core
// never requires it; a nil Battery simply disables the readout.
type Battery interface {
	Status() (BatteryStatus, error)
}
