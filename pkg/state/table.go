// Package state holds the per-room records shared by the listener, the
// control loop and the status exporters.
package state

import (
	"sort"
	"sync"
	"time"

	"github.com/janael-pinheiro/hvac-bridge/pkg/entities"
	"github.com/pkg/errors"
)

// ErrUnknownRoom is returned for ids that were not configured at startup.
var ErrUnknownRoom = errors.New("unknown room")

type record struct {
	temperature        float64
	hasTemperature     bool
	lastReadingAt      time.Time
	invalidReadings    uint
	sensorFault        bool
	backendFault       bool
	lastBackendFailure time.Time
	commanded          entities.ActiveState
}

func (r *record) snapshot() entities.RoomSnapshot {
	s := entities.RoomSnapshot{
		HVACActive:      r.commanded,
		SensorError:     r.sensorFault,
		APIError:        r.backendFault,
		InvalidReadings: r.invalidReadings,
	}
	if r.hasTemperature {
		temperature := r.temperature
		readAt := r.lastReadingAt
		s.Temperature = &temperature
		s.LastReadingAt = &readAt
	}
	if !r.lastBackendFailure.IsZero() {
		failedAt := r.lastBackendFailure
		s.LastAPIFailure = &failedAt
	}
	return s
}

// Table is the set of room records. Rooms are fixed at construction and every
// access goes through the table lock, so no reader sees a half-updated record.
type Table struct {
	lock                sync.RWMutex
	records             map[string]*record
	ids                 []string
	invalidReadingLimit uint
	now                 func() time.Time
}

// NewTable creates one record per room, all with an unknown commanded state.
func NewTable(rooms []string, invalidReadingLimit uint) *Table {
	t := &Table{
		records:             make(map[string]*record, len(rooms)),
		invalidReadingLimit: invalidReadingLimit,
		now:                 time.Now,
	}
	for _, room := range rooms {
		if _, ok := t.records[room]; ok {
			continue
		}
		t.records[room] = &record{commanded: entities.ActiveUnknown}
		t.ids = append(t.ids, room)
	}
	sort.Strings(t.ids)
	return t
}

// IDs returns the room ids in ascending order.
func (t *Table) IDs() []string {
	ids := make([]string, len(t.ids))
	copy(ids, t.ids)
	return ids
}

func (t *Table) Has(room string) bool {
	_, ok := t.records[room]
	return ok
}

// Room returns a copy of one record.
func (t *Table) Room(room string) (entities.RoomSnapshot, error) {
	t.lock.RLock()
	defer t.lock.RUnlock()

	r, ok := t.records[room]
	if !ok {
		return entities.RoomSnapshot{}, errors.Wrap(ErrUnknownRoom, room)
	}
	return r.snapshot(), nil
}

// Snapshot returns a consistent copy of every record.
func (t *Table) Snapshot() entities.Snapshot {
	t.lock.RLock()
	defer t.lock.RUnlock()

	snapshot := make(entities.Snapshot, len(t.records))
	for id, r := range t.records {
		snapshot[id] = r.snapshot()
	}
	return snapshot
}

// SetCommanded stores the activation last applied to the room.
func (t *Table) SetCommanded(room string, active entities.ActiveState) error {
	t.lock.Lock()
	defer t.lock.Unlock()

	r, ok := t.records[room]
	if !ok {
		return errors.Wrap(ErrUnknownRoom, room)
	}
	r.commanded = active
	return nil
}
