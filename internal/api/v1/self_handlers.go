package v1

import (
	"net/http"

	"github.com/fitstudio/staff-console/internal/apperr"
	"github.com/fitstudio/staff-console/internal/service"
	"github.com/fitstudio/staff-console/internal/utils"
	"go.uber.org/zap"
)

// SelfHandler serves a coach's own record.
type SelfHandler struct {
	svc    *service.Service
	logger *zap.Logger
}

func NewSelfHandler(svc *service.Service, logger *zap.Logger) *SelfHandler {
	return &SelfHandler{svc: svc, logger: logger}
}

func (h *SelfHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r)
	coach, err := h.svc.GetOwnCoach(r.Context(), actor)
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, true, "success", coach, nil)
}

// UpdateMe applies what the coach may edit directly and queues protected
// fields for review.
func (h *SelfHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r)
	p, confirmed, err := decodePatch(r)
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	if confirmed {
		writeError(h.logger, w, r, apperr.Validation("invalid coach fields", "confirmed: unknown field"))
		return
	}
	res, err := h.svc.SubmitCoachEdit(r.Context(), actor, p)
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	msg := "profile updated"
	if len(res.Pending) > 0 {
		msg = "changes submitted for review"
	}
	utils.WriteJSONResponse(w, http.StatusOK, true, msg, res, nil)
}
