package enums

import "fmt"

// AgendaStatus is the lifecycle state of a scheduled store visit.
type AgendaStatus string

const (
	AgendaStatusPending     AgendaStatus = "pendiente"
	AgendaStatusScheduled   AgendaStatus = "programado"
	AgendaStatusStarted     AgendaStatus = "iniciado"
	AgendaStatusCompleted   AgendaStatus = "completado"
	AgendaStatusNotExecuted AgendaStatus = "no_ejecutado"
)

var validAgendaStatuses = []AgendaStatus{
	AgendaStatusPending,
	AgendaStatusScheduled,
	AgendaStatusStarted,
	AgendaStatusCompleted,
	AgendaStatusNotExecuted,
}

// String returns the literal string for the status.
func (s AgendaStatus) String() string {
	return string(s)
}

// IsValid reports whether the status is known.
func (s AgendaStatus) IsValid() bool {
	for _, candidate := range validAgendaStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsOpen reports whether a visit still counts as assigned work.
func (s AgendaStatus) IsOpen() bool {
	return s == AgendaStatusPending || s == AgendaStatusStarted
}

// ParseAgendaStatus converts raw input into an AgendaStatus.
func ParseAgendaStatus(value string) (AgendaStatus, error) {
	for _, candidate := range validAgendaStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid agenda status %q", value)
}
