package v1

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/fitstudio/staff-console/internal/apperr"
	"github.com/fitstudio/staff-console/internal/lifecycle"
	"github.com/fitstudio/staff-console/internal/models"
	"github.com/fitstudio/staff-console/internal/notify"
	"github.com/fitstudio/staff-console/internal/service"
	"github.com/fitstudio/staff-console/internal/utils"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type WorkflowHandler struct {
	svc    *service.Service
	logger *zap.Logger
}

func NewWorkflowHandler(svc *service.Service, logger *zap.Logger) *WorkflowHandler {
	return &WorkflowHandler{svc: svc, logger: logger}
}

func requireCoachID(id string) error {
	if strings.TrimSpace(id) == "" {
		return apperr.Validation("coachId is required", "coachId: required")
	}
	return nil
}

func (h *WorkflowHandler) writeResult(w http.ResponseWriter, res *service.Result) {
	data := map[string]interface{}{"coach": res.Coach, "changed": res.Changed}
	if res.Warning != "" {
		utils.WriteWarningResponse(w, http.StatusOK, res.Message, data, res.Warning)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, true, res.Message, data, nil)
}

// Approve handles {coachId}. A failing checklist comes back as a business
// rule error listing the failing items.
func (h *WorkflowHandler) Approve(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r)
	var req struct {
		CoachID string `json:"coachId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(h.logger, w, r, badBody(err))
		return
	}
	if err := requireCoachID(req.CoachID); err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	res, err := h.svc.Approve(r.Context(), actor, req.CoachID)
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	h.writeResult(w, res)
}

func (h *WorkflowHandler) Reject(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r)
	var req struct {
		CoachID string `json:"coachId"`
		Motivo  string `json:"motivo"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(h.logger, w, r, badBody(err))
		return
	}
	if err := requireCoachID(req.CoachID); err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	res, err := h.svc.Reject(r.Context(), actor, req.CoachID, req.Motivo)
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	h.writeResult(w, res)
}

func (h *WorkflowHandler) RequestCorrections(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r)
	var req struct {
		CoachID      string              `json:"coachId"`
		Correcciones []models.Correction `json:"correcciones"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(h.logger, w, r, badBody(err))
		return
	}
	if err := requireCoachID(req.CoachID); err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	res, err := h.svc.RequestCorrections(r.Context(), actor, req.CoachID, req.Correcciones)
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	h.writeResult(w, res)
}

// ReviewChanges resolves fields of a change request.
func (h *WorkflowHandler) ReviewChanges(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r)
	var req struct {
		RequestID      string   `json:"requestId"`
		Accion         string   `json:"accion"`
		ApprovedFields []string `json:"approvedFields"`
		RejectedFields []string `json:"rejectedFields"`
		Comentarios    string   `json:"comentarios"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(h.logger, w, r, badBody(err))
		return
	}
	if strings.TrimSpace(req.RequestID) == "" {
		writeError(h.logger, w, r, apperr.Validation("requestId is required", "requestId: required"))
		return
	}
	res, err := h.svc.ReviewChangeRequest(r.Context(), actor, service.Review{
		RequestID: req.RequestID,
		Action:    lifecycle.ReviewAction(req.Accion),
		Approved:  req.ApprovedFields,
		Rejected:  req.RejectedFields,
		Comments:  req.Comentarios,
	})
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, true, res.Message, res, nil)
}

// Notify triggers a notification event. Delivery failures are reported as a
// warning on a successful response.
func (h *WorkflowHandler) Notify(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r)
	var req struct {
		Tipo         string              `json:"tipo"`
		CoachID      string              `json:"coachId"`
		Motivo       string              `json:"motivo"`
		Correcciones []models.Correction `json:"correcciones"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(h.logger, w, r, badBody(err))
		return
	}
	if err := requireCoachID(req.CoachID); err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	warning, err := h.svc.Notify(r.Context(), actor, service.NotifyRequest{
		Type:        notify.Type(req.Tipo),
		CoachID:     req.CoachID,
		Motivo:      req.Motivo,
		Corrections: req.Correcciones,
	})
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	if warning != "" {
		utils.WriteWarningResponse(w, http.StatusOK, "notification queued with warnings", nil, warning)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, true, "notification sent", nil, nil)
}

// ListChangeRequests supports ?status=open; anything else lists all.
func (h *WorkflowHandler) ListChangeRequests(w http.ResponseWriter, r *http.Request) {
	openOnly := strings.EqualFold(r.URL.Query().Get("status"), "open")
	list, err := h.svc.ListChangeRequests(r.Context(), openOnly)
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, true, "success", list, nil)
}

func (h *WorkflowHandler) GetChangeRequest(w http.ResponseWriter, r *http.Request) {
	cr, err := h.svc.GetChangeRequest(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, true, "success", cr, nil)
}

func (h *WorkflowHandler) SetVerification(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r)
	var req struct {
		Verified *bool  `json:"verified"`
		Notes    string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(h.logger, w, r, badBody(err))
		return
	}
	if req.Verified == nil {
		writeError(h.logger, w, r, apperr.Validation("verified is required", "verified: required"))
		return
	}
	doc, err := h.svc.SetVerification(r.Context(), actor, chi.URLParam(r, "id"), *req.Verified, req.Notes)
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, true, "document updated", doc, nil)
}

func (h *WorkflowHandler) SetCurrentContract(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r)
	ct, err := h.svc.SetCurrentContract(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, true, "contract is current", ct, nil)
}
