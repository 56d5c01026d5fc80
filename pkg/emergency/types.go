package emergency

import (
	"context"
	"time"
)

// Reason is the declared basis for a break-the-glass request.
type Reason string

const (
	ReasonLifeThreatening    Reason = "life_threatening"
	ReasonUnconsciousPatient Reason = "unconscious_patient"
	ReasonPublicHealth       Reason = "public_health"
	ReasonCourtOrder         Reason = "court_order"
	ReasonDisasterResponse   Reason = "disaster_response"
	ReasonOther              Reason = "other"
)

// Valid reports whether the reason is one of the recognized values.
func (r Reason) Valid() bool {
	switch r {
	case ReasonLifeThreatening, ReasonUnconsciousPatient, ReasonPublicHealth,
		ReasonCourtOrder, ReasonDisasterResponse, ReasonOther:
		return true
	}
	return false
}

// Grant is a time-bounded emergency access authorization for one
// (user, patient) pair. A grant bypasses ordinary role checks while active;
// it never bypasses encryption of stored fields. Grants are retained after
// expiry until reviewed and past their retention window.
type Grant struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	PatientID     string    `json:"patient_id"`
	Reason        Reason    `json:"reason"`
	Justification string    `json:"justification"`
	GrantedAt     time.Time `json:"granted_at"`
	ExpiresAt     time.Time `json:"expires_at"`
	AccessToken   string    `json:"access_token"`

	Reviewed       bool      `json:"reviewed"`
	ReviewedBy     string    `json:"reviewed_by,omitempty"`
	ReviewedAt     time.Time `json:"reviewed_at,omitzero"`
	ReviewApproved bool      `json:"review_approved,omitempty"`
	ReviewNotes    string    `json:"review_notes,omitempty"`
}

// Active reports whether the grant authorizes access at the given instant.
func (g Grant) Active(now time.Time) bool {
	return now.Before(g.ExpiresAt)
}

// Expired is the complement of Active.
func (g Grant) Expired(now time.Time) bool {
	return !g.Active(now)
}

// User is the minimal shape consumed from the external user directory.
type User struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

// Patient is the minimal shape consumed from the external patient directory.
type Patient struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// UserDirectory looks up users in the surrounding system.
type UserDirectory interface {
	GetUserByID(ctx context.Context, id string) (User, error)
}

// PatientDirectory looks up patients in the surrounding system.
type PatientDirectory interface {
	GetPatientByID(ctx context.Context, id string) (Patient, error)
}

// NotifyFunc is the out-of-band notification hook invoked after a grant is
// created. Delivery is the collaborator's concern; the service calls it
// synchronously after the grant and its audit entry are durable.
type NotifyFunc func(ctx context.Context, grant Grant)

// ComplianceStats summarizes the review backlog at a point in time.
type ComplianceStats struct {
	TotalGrants       int `json:"total_grants"`
	ActiveGrants      int `json:"active_grants"`
	PendingReviews    int `json:"pending_reviews"`
	ExpiredUnreviewed int `json:"expired_unreviewed"`
	OverdueReviews    int `json:"overdue_reviews"`
	ReviewedGrants    int `json:"reviewed_grants"`
}
