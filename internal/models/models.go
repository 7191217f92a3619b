package models

type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   interface{} `json:"error,omitempty"`
	Warning string      `json:"warning,omitempty"`
}

type Role string

const (
	RoleAdmin Role = "admin"
	RoleCoach Role = "coach"
)

type CoachStatus string

const (
	CoachStatusPending    CoachStatus = "pending"
	CoachStatusActive     CoachStatus = "active"
	CoachStatusInactive   CoachStatus = "inactive"
	CoachStatusSuspended  CoachStatus = "suspended"
	CoachStatusTerminated CoachStatus = "terminated"
	CoachStatusRejected   CoachStatus = "rejected"
)

func (s CoachStatus) Valid() bool {
	switch s {
	case CoachStatusPending, CoachStatusActive, CoachStatusInactive,
		CoachStatusSuspended, CoachStatusTerminated, CoachStatusRejected:
		return true
	}
	return false
}

type CoachCategory string

const (
	CategoryCycling    CoachCategory = "cycling"
	CategoryFunctional CoachCategory = "functional"
	CategoryBoth       CoachCategory = "both"
)

func (c CoachCategory) Valid() bool {
	switch c {
	case CategoryCycling, CategoryFunctional, CategoryBoth:
		return true
	}
	return false
}

type DocumentType string

const (
	DocumentIDFront        DocumentType = "id_front"
	DocumentIDBack         DocumentType = "id_back"
	DocumentProofOfAddress DocumentType = "proof_of_address"
)

// RequiredDocumentTypes must all be present and verified before approval.
// Any other type is stored as an optional extra.
var RequiredDocumentTypes = []DocumentType{
	DocumentIDFront,
	DocumentIDBack,
	DocumentProofOfAddress,
}

type FieldReviewStatus string

const (
	FieldPending  FieldReviewStatus = "pending"
	FieldApproved FieldReviewStatus = "approved"
	FieldRejected FieldReviewStatus = "rejected"

	// FieldWithdrawn marks an entry the coach took back before review.
	FieldWithdrawn FieldReviewStatus = "withdrawn"
)

type ChangeRequestStatus string

const (
	ChangeRequestPending           ChangeRequestStatus = "pending"
	ChangeRequestPartiallyReviewed ChangeRequestStatus = "partially_reviewed"
	ChangeRequestApproved          ChangeRequestStatus = "approved"
	ChangeRequestRejected          ChangeRequestStatus = "rejected"
	ChangeRequestResolved          ChangeRequestStatus = "resolved"
	ChangeRequestWithdrawn         ChangeRequestStatus = "withdrawn"
)

// Open reports whether at least one field of the request still awaits review.
func (s ChangeRequestStatus) Open() bool {
	return s == ChangeRequestPending || s == ChangeRequestPartiallyReviewed
}

// Audit actions
const (
	ActionCoachCreated           = "coach.created"
	ActionCoachUpdated           = "coach.updated"
	ActionCoachSelfUpdated       = "coach.self_updated"
	ActionCoachApproved          = "coach.approved"
	ActionCoachRejected          = "coach.rejected"
	ActionCorrectionsRequested   = "coach.corrections_requested"
	ActionDocumentVerification   = "document.verification"
	ActionContractMadeCurrent    = "contract.made_current"
	ActionChangeRequestOpened    = "change_request.submitted"
	ActionChangeRequestReview    = "change_request.reviewed"
	ActionChangeRequestWithdrawn = "change_request.withdrawn"
)

// FieldChange is one typed entry of an edit diff.
type FieldChange struct {
	Field  string `json:"campo"`
	Before string `json:"anterior"`
	After  string `json:"nuevo"`
}

// Correction is a single item of a correction request sent to a coach.
type Correction struct {
	Campo   string `json:"campo"`
	Mensaje string `json:"mensaje"`
}
