// Package logic contains pure business logic for the coffee maker controller.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
package logic

// State represents the logical state of a binary output or flag.
type State string

const (
	StateOn  State = "ON"
	StateOff State = "OFF"
)

// StateOf converts a boolean level to its logical state.
func StateOf(on bool) State {
	if on {
		return StateOn
	}
	return StateOff
}

// Remote command payloads.
const (
	PayloadHeatingOn   = "ligar"
	PayloadHeatingOff  = "desligar"
	PayloadScheduleOn  = "ativo"
	PayloadScheduleOff = "inativo"
)

// Reading is a single temperature/humidity sample in whole units
// (degrees Celsius and percent relative humidity).
type Reading struct {
	Temperature int
	Humidity    int
}

// Source identifies what caused a state transition.
type Source string

const (
	SourceRemote Source = "remote"
	SourceButton Source = "button"
)
