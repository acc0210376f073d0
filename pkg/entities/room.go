package entities

import (
	"encoding/json"
	"time"
)

// ActiveState is the HVAC activation the bridge believes it has applied to a room.
type ActiveState int

const (
	ActiveUnknown ActiveState = iota
	ActiveOn
	ActiveOff
)

// ActiveStateFromBool converts a known activation into an ActiveState.
func ActiveStateFromBool(active bool) ActiveState {
	if active {
		return ActiveOn
	}
	return ActiveOff
}

func (s ActiveState) String() string {
	switch s {
	case ActiveOn:
		return "active"
	case ActiveOff:
		return "inactive"
	default:
		return "unknown"
	}
}

// Matches reports whether the state is known and equal to active.
func (s ActiveState) Matches(active bool) bool {
	return s == ActiveStateFromBool(active)
}

func (s ActiveState) MarshalJSON() ([]byte, error) {
	switch s {
	case ActiveOn:
		return []byte("true"), nil
	case ActiveOff:
		return []byte("false"), nil
	default:
		return []byte("null"), nil
	}
}

func (s *ActiveState) UnmarshalJSON(data []byte) error {
	var active *bool
	if err := json.Unmarshal(data, &active); err != nil {
		return err
	}
	if active == nil {
		*s = ActiveUnknown
		return nil
	}
	*s = ActiveStateFromBool(*active)
	return nil
}

// Reading is one temperature sample received for a room.
type Reading struct {
	RoomID     string
	Value      float64
	ReceivedAt time.Time
}

// RoomSnapshot is a point-in-time copy of a room record.
type RoomSnapshot struct {
	Temperature     *float64    `json:"temperature"`
	HVACActive      ActiveState `json:"hvac_active"`
	SensorError     bool        `json:"sensor_error"`
	APIError        bool        `json:"api_error"`
	InvalidReadings uint        `json:"invalid_readings"`
	LastReadingAt   *time.Time  `json:"last_reading_at"`
	LastAPIFailure  *time.Time  `json:"last_api_failure,omitempty"`
}

// Snapshot maps room ids to their exported state.
type Snapshot map[string]RoomSnapshot
