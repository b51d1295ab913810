package events

import "encoding/json"

// Event name constants
const (
	PowerChanged        = "power.changed"
	PowerRange          = "power.range"
	SwitchChanged       = "switch.changed"
	CalibrationProgress = "calibration.progress"
	CalibrationFinished = "calibration.finished"
	MappingMode         = "mapping.mode"
	MonitorReading      = "monitor.reading"
	ScheduleUpcoming    = "schedule.upcoming"
	ScheduleError       = "schedule.error"
)

// Event is a generic SSE event from daemon.
type Event struct {
	Line string          // Laser line the event concerns
	Name string          // SSE event name
	Data json.RawMessage // Raw JSON payload
}

// PowerChangedEvent is the typed payload for power.changed.
type PowerChangedEvent struct {
	Power   float64 `json:"power"`
	Control float64 `json:"control"`
	Ts      int64   `json:"ts"`
}

// PowerRangeEvent is the typed payload for power.range.
type PowerRangeEvent struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
	Ts   int64   `json:"ts"`
}

// SwitchChangedEvent is the typed payload for switch.changed.
type SwitchChangedEvent struct {
	On bool  `json:"on"`
	Ts int64 `json:"ts"`
}

// CalibrationProgressEvent is the typed payload for calibration.progress.
// Index counts measured points, from 1 up to Total.
type CalibrationProgressEvent struct {
	Index   int     `json:"index"`
	Total   int     `json:"total"`
	Control float64 `json:"control"`
	Power   float64 `json:"power"`
	Ts      int64   `json:"ts"`
}

// CalibrationFinishedEvent is the typed payload for calibration.finished.
type CalibrationFinishedEvent struct {
	Outcome  string `json:"outcome"`
	Message  string `json:"message,omitempty"`
	Measured int    `json:"measured"`
	Total    int    `json:"total"`
	Ts       int64  `json:"ts"`
}

// MappingModeEvent is the typed payload for mapping.mode.
type MappingModeEvent struct {
	Mode string `json:"mode"`
	Ts   int64  `json:"ts"`
}

// MonitorReadingEvent is the typed payload for monitor.reading.
type MonitorReadingEvent struct {
	Power float64 `json:"power"`
	Ts    int64   `json:"ts"`
}

// ScheduleUpcomingEvent is the typed payload for schedule.upcoming.
// RunAt is the unix time of the recalibration about to start.
type ScheduleUpcomingEvent struct {
	RunAt int64 `json:"runAt"`
	Ts    int64 `json:"ts"`
}

// ScheduleErrorEvent is the typed payload for schedule.error.
type ScheduleErrorEvent struct {
	Message string `json:"message"`
	Ts      int64  `json:"ts"`
}

// DecodeAs decodes the event payload into the caller-specified generic type T.
// It ignores the event name and simply unmarshals Data into T. If Data is empty,
// it returns the zero value of T with a nil error.
//
// Example:
//
//	payload, err := events.DecodeAs[events.CalibrationProgressEvent](ev)
//	if err != nil { /* handle */ }
//	fmt.Println(payload.Index, payload.Total)
func DecodeAs[T any](e Event) (T, error) {
	var zero T
	if len(e.Data) == 0 {
		return zero, nil
	}
	var v T
	if err := json.Unmarshal(e.Data, &v); err != nil {
		return zero, err
	}
	return v, nil
}
