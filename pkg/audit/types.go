package audit

import (
	"fmt"
	"time"
)

// Result represents the outcome of an audited action
type Result string

const (
	ResultSuccess Result = "success"
	ResultFailure Result = "failure"
	ResultError   Result = "error"
)

// Event is a single append-only audit log entry. Events are never mutated
// after insertion; the Checksum fingerprints the payload so later tampering
// is detectable.
type Event struct {
	ID         string         `json:"id"`
	GrantID    string         `json:"grant_id,omitempty"`
	UserID     string         `json:"user_id,omitempty"`
	PatientID  string         `json:"patient_id,omitempty"`
	Action     string         `json:"action"`
	Resource   string         `json:"resource,omitempty"`
	ResourceID string         `json:"resource_id,omitempty"`
	Result     Result         `json:"result"`
	Error      string         `json:"error,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Checksum   string         `json:"checksum,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Validate checks if the event has all required fields
func (e *Event) Validate() error {
	if e.Action == "" {
		return fmt.Errorf("%w: action is required", ErrEventValidation)
	}
	return nil
}

// Criteria filters audit queries. Zero-valued fields are ignored.
type Criteria struct {
	GrantID   string
	UserID    string
	PatientID string
	Action    string
	From      time.Time
	To        time.Time
	Limit     int
	Offset    int
}

// EventOption applies configuration to an Event during creation.
type EventOption func(*Event)

// WithGrant associates the event with an emergency access grant.
func WithGrant(grantID string) EventOption {
	return func(e *Event) {
		e.GrantID = grantID
	}
}

// WithActor sets the acting user.
func WithActor(userID string) EventOption {
	return func(e *Event) {
		e.UserID = userID
	}
}

// WithPatient sets the patient whose record the action concerns.
func WithPatient(patientID string) EventOption {
	return func(e *Event) {
		e.PatientID = patientID
	}
}

// WithResource sets the resource type and ID
func WithResource(resource, id string) EventOption {
	return func(e *Event) {
		e.Resource = resource
		e.ResourceID = id
	}
}

// WithMetadata adds metadata to the event
func WithMetadata(key string, value any) EventOption {
	return func(e *Event) {
		if e.Metadata == nil {
			e.Metadata = make(map[string]any)
		}
		e.Metadata[key] = value
	}
}

// WithResult overrides the event result
func WithResult(result Result) EventOption {
	return func(e *Event) {
		e.Result = result
	}
}
