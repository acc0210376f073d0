package state

import (
	"github.com/janael-pinheiro/hvac-bridge/pkg/entities"
	"github.com/pkg/errors"
)

// Transition describes how a fault flag changed after an update.
type Transition int

const (
	Unchanged Transition = iota
	Raised
	Cleared
)

func transition(before, after bool) Transition {
	switch {
	case !before && after:
		return Raised
	case before && !after:
		return Cleared
	default:
		return Unchanged
	}
}

// RecordValidReading stores the reading, resets the invalid counter and clears
// the sensor fault.
func (t *Table) RecordValidReading(reading entities.Reading) (Transition, error) {
	t.lock.Lock()
	defer t.lock.Unlock()

	r, ok := t.records[reading.RoomID]
	if !ok {
		return Unchanged, errors.Wrap(ErrUnknownRoom, reading.RoomID)
	}
	before := r.sensorFault
	r.temperature = reading.Value
	r.hasTemperature = true
	r.lastReadingAt = reading.ReceivedAt
	r.invalidReadings = 0
	r.sensorFault = false
	return transition(before, r.sensorFault), nil
}

// RecordInvalidReading counts an unusable reading. The sensor fault is raised
// once the count reaches the configured limit; the temperature is kept.
func (t *Table) RecordInvalidReading(room string) (uint, Transition, error) {
	t.lock.Lock()
	defer t.lock.Unlock()

	r, ok := t.records[room]
	if !ok {
		return 0, Unchanged, errors.Wrap(ErrUnknownRoom, room)
	}
	before := r.sensorFault
	r.invalidReadings++
	if r.invalidReadings >= t.invalidReadingLimit {
		r.sensorFault = true
	}
	return r.invalidReadings, transition(before, r.sensorFault), nil
}

// MarkBackendSuccess clears the backend fault of the room.
func (t *Table) MarkBackendSuccess(room string) (Transition, error) {
	t.lock.Lock()
	defer t.lock.Unlock()

	r, ok := t.records[room]
	if !ok {
		return Unchanged, errors.Wrap(ErrUnknownRoom, room)
	}
	before := r.backendFault
	r.backendFault = false
	return transition(before, r.backendFault), nil
}

// MarkBackendFailure raises the backend fault of the room after its retry
// budget ran out, and stamps the failure time.
func (t *Table) MarkBackendFailure(room string) (Transition, error) {
	t.lock.Lock()
	defer t.lock.Unlock()

	r, ok := t.records[room]
	if !ok {
		return Unchanged, errors.Wrap(ErrUnknownRoom, room)
	}
	before := r.backendFault
	r.backendFault = true
	r.lastBackendFailure = t.now()
	return transition(before, r.backendFault), nil
}
