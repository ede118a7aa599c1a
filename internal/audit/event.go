package audit

import (
	"strconv"
	"time"
)

// Action is the kind of change recorded
type Action string

const (
	ActionCreate Action = "CREATE"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
)

// Status is the outcome of the audited operation
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailure Status = "FAILURE"
)

const (
	eventTypeMembers = "MEMBER_MANAGEMENT"
	actorTypeService = "SERVICE"
	targetTypeMember = "RESOURCE"
)

// Event is the body posted to the audit service. Metadata never carries
// names or phone numbers.
type Event struct {
	TraceID     string         `json:"traceId,omitempty"`
	Timestamp   string         `json:"timestamp"`
	EventType   string         `json:"eventType"`
	EventAction Action         `json:"eventAction"`
	Status      Status         `json:"status"`
	ActorType   string         `json:"actorType"`
	ActorID     string         `json:"actorId"`
	TargetType  string         `json:"targetType"`
	TargetID    string         `json:"targetId,omitempty"`
	Metadata    map[string]any `json:"additionalMetadata,omitempty"`
}

// NewMemberEvent describes a change to one member. A zero memberID leaves
// the target empty, as for a create that never got an id.
func NewMemberEvent(action Action, status Status, memberID uint) Event {
	ev := Event{
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		EventType:   eventTypeMembers,
		EventAction: action,
		Status:      status,
		ActorType:   actorTypeService,
		TargetType:  targetTypeMember,
	}
	if memberID != 0 {
		ev.TargetID = strconv.FormatUint(uint64(memberID), 10)
	}
	return ev
}
