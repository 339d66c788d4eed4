package domain

import "encoding/json"

type ActivityStatus string

const (
	ActivityStatusCreated         ActivityStatus = "ACTIVITY_STATUS_CREATED"
	ActivityStatusPending         ActivityStatus = "ACTIVITY_STATUS_PENDING"
	ActivityStatusCompleted       ActivityStatus = "ACTIVITY_STATUS_COMPLETED"
	ActivityStatusFailed          ActivityStatus = "ACTIVITY_STATUS_FAILED"
	ActivityStatusRejected        ActivityStatus = "ACTIVITY_STATUS_REJECTED"
	ActivityStatusConsensusNeeded ActivityStatus = "ACTIVITY_STATUS_CONSENSUS_NEEDED"
)

// IsPending reports whether the activity may still change status without outside approval.
func (s ActivityStatus) IsPending() bool {
	return s == ActivityStatusCreated || s == ActivityStatusPending
}

func (s ActivityStatus) IsTerminal() bool {
	switch s {
	case ActivityStatusCompleted, ActivityStatusFailed, ActivityStatusRejected:
		return true
	default:
		return false
	}
}

type ActivityFailure struct {
	Code    int    `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

type Activity struct {
	ID             string           `json:"id"`
	Type           string           `json:"type"`
	OrganizationID string           `json:"organizationId"`
	Status         ActivityStatus   `json:"status"`
	Result         json.RawMessage  `json:"result,omitempty"`
	Failure        *ActivityFailure `json:"failure,omitempty"`
}

// ActivityEnvelope is the body of every command request.
type ActivityEnvelope struct {
	Type           string `json:"type"`
	TimestampMs    string `json:"timestampMs"`
	OrganizationID string `json:"organizationId"`
	Parameters     any    `json:"parameters"`
}

const (
	ActivityTypeStampLogin            = "ACTIVITY_TYPE_STAMP_LOGIN"
	ActivityTypeCreateReadOnlySession = "ACTIVITY_TYPE_CREATE_READ_ONLY_SESSION"
)
