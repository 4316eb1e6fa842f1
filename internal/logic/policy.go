package logic

import "fmt"

// MaxStatusLen is the number of visible characters kept in a status text.
const MaxStatusLen = 15

// InitialStatus is shown until the first state-changing event.
const InitialStatus = "Iniciando"

// ClassifyHeating maps a heating-control payload to the requested level.
// Only the exact "ligar" payload turns heating on; anything else is off.
func ClassifyHeating(payload []byte) bool {
	return string(payload) == PayloadHeatingOn
}

// ClassifySchedule maps a scheduling-control payload to the scheduled flag.
// Only the exact "ativo" payload activates scheduling; anything else is inactive.
func ClassifySchedule(payload []byte) bool {
	return string(payload) == PayloadScheduleOn
}

// HeatingPayload returns the payload echoed on the heating-control topic.
func HeatingPayload(on bool) []byte {
	if on {
		return []byte(PayloadHeatingOn)
	}
	return []byte(PayloadHeatingOff)
}

// HeatingStatus is the status text for a remotely commanded heating change.
func HeatingStatus(on bool) string {
	return fmt.Sprintf("Aq:%s", StateOf(on))
}

// ScheduleStatus is the status text for a scheduling change.
func ScheduleStatus(on bool) string {
	return fmt.Sprintf("Age:%s", StateOf(on))
}

// ManualStatus is the status text for a heating toggle from the local button.
func ManualStatus(on bool) string {
	return fmt.Sprintf("Manual:%s", StateOf(on))
}

// TruncateRunes cuts s to at most max runes. The second result reports
// whether anything was removed.
func TruncateRunes(s string, max int) (string, bool) {
	if max < 0 {
		max = 0
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i], true
		}
		n++
	}
	return s, false
}
