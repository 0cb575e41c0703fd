package enums

import "fmt"

// ProjectStatus maps to the project_status_enum enum in Postgres.
type ProjectStatus string

const (
	ProjectStatusCreated    ProjectStatus = "CREATED"
	ProjectStatusScheduled  ProjectStatus = "SCHEDULED"
	ProjectStatusInProgress ProjectStatus = "IN_PROGRESS"
	ProjectStatusInstalled  ProjectStatus = "INSTALLED"
	ProjectStatusClosed     ProjectStatus = "CLOSED"
	ProjectStatusCancelled  ProjectStatus = "CANCELLED"
)

var validProjectStatuses = []ProjectStatus{
	ProjectStatusCreated,
	ProjectStatusScheduled,
	ProjectStatusInProgress,
	ProjectStatusInstalled,
	ProjectStatusClosed,
	ProjectStatusCancelled,
}

// IsValid reports whether the value matches the canonical project status enum.
func (s ProjectStatus) IsValid() bool {
	for _, candidate := range validProjectStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseProjectStatus converts raw input into ProjectStatus.
func ParseProjectStatus(value string) (ProjectStatus, error) {
	for _, candidate := range validProjectStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid project status %q", value)
}
