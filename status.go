package jobtracker

import "strings"

// ApplicationStatus is the stage an application is in. Any status may be
// replaced by any other status.
type ApplicationStatus string

const (
	StatusApplied   ApplicationStatus = "applied"
	StatusScreening ApplicationStatus = "screening"
	StatusInterview ApplicationStatus = "interview"
	StatusOffer     ApplicationStatus = "offer"
	StatusAccepted  ApplicationStatus = "accepted"
	StatusRejected  ApplicationStatus = "rejected"
)

var allStatuses = []ApplicationStatus{
	StatusApplied,
	StatusScreening,
	StatusInterview,
	StatusOffer,
	StatusAccepted,
	StatusRejected,
}

// AllStatuses returns every status in pipeline order
func AllStatuses() []ApplicationStatus {
	out := make([]ApplicationStatus, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// Valid reports whether s is a member of the enumeration
func (s ApplicationStatus) Valid() bool {
	switch s {
	case StatusApplied, StatusScreening, StatusInterview,
		StatusOffer, StatusAccepted, StatusRejected:
		return true
	default:
		return false
	}
}

// IsSuccess reports whether s counts towards the success rate
func (s ApplicationStatus) IsSuccess() bool {
	return s == StatusOffer || s == StatusAccepted
}

func (s ApplicationStatus) String() string {
	return string(s)
}

// ParseStatus normalizes case and surrounding space before checking
// membership.
func ParseStatus(raw string) (ApplicationStatus, error) {
	s := ApplicationStatus(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fail(ErrInvalidStatus, map[string]any{"status": raw})
	}
	return s, nil
}

func statusValues() []any {
	out := make([]any, len(allStatuses))
	for i, s := range allStatuses {
		out[i] = s
	}
	return out
}
