package enums

import "fmt"

// AuditStatus is the outcome class recorded on an audit entry.
type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusFailure AuditStatus = "failure"
	AuditStatusInfo    AuditStatus = "info"
)

var validAuditStatuses = []AuditStatus{
	AuditStatusSuccess,
	AuditStatusFailure,
	AuditStatusInfo,
}

// String implements fmt.Stringer.
func (s AuditStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known AuditStatus.
func (s AuditStatus) IsValid() bool {
	for _, candidate := range validAuditStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseAuditStatus converts raw input into an AuditStatus.
func ParseAuditStatus(value string) (AuditStatus, error) {
	for _, candidate := range validAuditStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid audit status %q", value)
}
