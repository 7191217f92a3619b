package lifecycle

import (
	"github.com/fitstudio/staff-console/internal/apperr"
	"github.com/fitstudio/staff-console/internal/models"
)

type ReviewAction string

const (
	ReviewApproveAll ReviewAction = "approve_all"
	ReviewRejectAll  ReviewAction = "reject_all"
	ReviewAdjudicate ReviewAction = "adjudicate"
)

func (a ReviewAction) Valid() bool {
	return a == ReviewApproveAll || a == ReviewRejectAll || a == ReviewAdjudicate
}

// ReviewPlan holds indexes into a request's field list.
type ReviewPlan struct {
	Approve []int
	Reject  []int
}

func (p ReviewPlan) Empty() bool {
	return len(p.Approve) == 0 && len(p.Reject) == 0
}

// PlanReview decides which entries a review resolves. Bulk actions touch only
// pending entries, so repeating one is a no-op. Adjudication names fields
// explicitly and fails on any field that is absent or no longer pending.
func PlanReview(fields []models.ChangeRequestField, action ReviewAction, approved, rejected []string) (ReviewPlan, error) {
	var plan ReviewPlan
	switch action {
	case ReviewApproveAll, ReviewRejectAll:
		for i, f := range fields {
			if f.Status != models.FieldPending {
				continue
			}
			if action == ReviewApproveAll {
				plan.Approve = append(plan.Approve, i)
			} else {
				plan.Reject = append(plan.Reject, i)
			}
		}
		return plan, nil
	case ReviewAdjudicate:
		if len(approved) == 0 && len(rejected) == 0 {
			return plan, apperr.Validation("nothing to adjudicate",
				"approvedFields or rejectedFields must name at least one field")
		}
		seen := map[string]bool{}
		resolve := func(names []string, into *[]int) error {
			for _, name := range names {
				if seen[name] {
					return apperr.BusinessRule(apperr.RuleInvalidState,
						"field listed more than once", map[string]string{"field": name})
				}
				seen[name] = true
				idx, err := pendingIndex(fields, name)
				if err != nil {
					return err
				}
				*into = append(*into, idx)
			}
			return nil
		}
		if err := resolve(approved, &plan.Approve); err != nil {
			return ReviewPlan{}, err
		}
		if err := resolve(rejected, &plan.Reject); err != nil {
			return ReviewPlan{}, err
		}
		return plan, nil
	}
	return plan, apperr.Validation("unknown review action", "accion must be approve_all, reject_all or adjudicate")
}

func pendingIndex(fields []models.ChangeRequestField, name string) (int, error) {
	present := false
	for i, f := range fields {
		if f.Field != name {
			continue
		}
		present = true
		if f.Status == models.FieldPending {
			return i, nil
		}
	}
	if present {
		return -1, apperr.BusinessRule(apperr.RuleInvalidState,
			"field already resolved", map[string]string{"field": name})
	}
	return -1, apperr.BusinessRule(apperr.RuleInvalidState,
		"field not present on change request", map[string]string{"field": name})
}

// DeriveStatus computes the request status from its entries. Withdrawn
// entries count as neither approved nor rejected.
func DeriveStatus(fields []models.ChangeRequestField) models.ChangeRequestStatus {
	var pending, approved, rejected int
	for _, f := range fields {
		switch f.Status {
		case models.FieldPending:
			pending++
		case models.FieldApproved:
			approved++
		case models.FieldRejected:
			rejected++
		}
	}
	switch {
	case pending > 0 && approved+rejected == 0:
		return models.ChangeRequestPending
	case pending > 0:
		return models.ChangeRequestPartiallyReviewed
	case approved+rejected == 0:
		return models.ChangeRequestWithdrawn
	case rejected == 0:
		return models.ChangeRequestApproved
	case approved == 0:
		return models.ChangeRequestRejected
	default:
		return models.ChangeRequestResolved
	}
}

// IsOpen reports whether any entry still awaits review.
func IsOpen(fields []models.ChangeRequestField) bool {
	return DeriveStatus(fields).Open()
}
