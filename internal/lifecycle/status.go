package lifecycle

import "github.com/fitstudio/staff-console/internal/models"

// workflowTransitions are the moves the approval workflow itself makes.
// Administrators may still correct any status through a confirmed edit.
var workflowTransitions = map[models.CoachStatus][]models.CoachStatus{
	models.CoachStatusPending: {models.CoachStatusActive, models.CoachStatusRejected},
	models.CoachStatusActive:  {models.CoachStatusInactive, models.CoachStatusSuspended, models.CoachStatusTerminated},
}

func CanTransition(from, to models.CoachStatus) bool {
	for _, s := range workflowTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
