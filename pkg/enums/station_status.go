package enums

import "fmt"

// StationStatus is the reported liveness of a printer station. It is
// informational soft-state derived from heartbeats and never gates job
// eligibility; only the station's is_active flag does that.
type StationStatus string

const (
	StationStatusOnline  StationStatus = "online"
	StationStatusOffline StationStatus = "offline"
	StationStatusBusy    StationStatus = "busy"
)

var validStationStatuses = []StationStatus{
	StationStatusOnline,
	StationStatusOffline,
	StationStatusBusy,
}

// String returns the literal string for the status.
func (s StationStatus) String() string {
	return string(s)
}

// IsValid reports whether the status is known.
func (s StationStatus) IsValid() bool {
	for _, candidate := range validStationStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseStationStatus converts raw input into a StationStatus.
func ParseStationStatus(value string) (StationStatus, error) {
	for _, candidate := range validStationStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid station status %q", value)
}
