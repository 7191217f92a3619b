package v1

import (
	"encoding/json"
	"net/http"

	"github.com/fitstudio/staff-console/internal/apperr"
	"github.com/fitstudio/staff-console/internal/lifecycle"
	"github.com/fitstudio/staff-console/internal/service"
	"github.com/fitstudio/staff-console/internal/utils"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type CoachHandler struct {
	svc    *service.Service
	logger *zap.Logger
}

func NewCoachHandler(svc *service.Service, logger *zap.Logger) *CoachHandler {
	return &CoachHandler{svc: svc, logger: logger}
}

// decodePatch reads a partial coach object. The confirmed flag, when
// present, is split off and returned separately.
func decodePatch(r *http.Request) (lifecycle.Patch, bool, error) {
	var body map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return lifecycle.Patch{}, false, badBody(err)
	}
	confirmed := false
	if raw, ok := body["confirmed"]; ok {
		if err := json.Unmarshal(raw, &confirmed); err != nil {
			return lifecycle.Patch{}, false, apperr.Validation("invalid coach fields", "confirmed: must be true or false")
		}
		delete(body, "confirmed")
	}
	p, problems := lifecycle.ParsePatch(body)
	if len(problems) > 0 {
		return lifecycle.Patch{}, false, apperr.Validation("invalid coach fields", problems...)
	}
	return p, confirmed, nil
}

// ListCoaches returns coaches with their checklist, optionally by ?status=
func (h *CoachHandler) ListCoaches(w http.ResponseWriter, r *http.Request) {
	status, err := service.ParseStatusFilter(r.URL.Query().Get("status"))
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	coaches, err := h.svc.ListCoaches(r.Context(), status)
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, true, "success", coaches, nil)
}

func (h *CoachHandler) CreateCoach(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r)
	p, _, err := decodePatch(r)
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	coach, err := h.svc.CreateCoach(r.Context(), actor, p)
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusCreated, true, "coach created", coach, nil)
}

func (h *CoachHandler) GetCoach(w http.ResponseWriter, r *http.Request) {
	coach, err := h.svc.GetCoach(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, true, "success", coach, nil)
}

// UpdateCoach applies a partial edit. Critical fields need "confirmed": true.
func (h *CoachHandler) UpdateCoach(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r)
	p, confirmed, err := decodePatch(r)
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	res, err := h.svc.UpdateCoach(r.Context(), actor, chi.URLParam(r, "id"), p, confirmed)
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, true, res.Message, map[string]interface{}{
		"changes": res.Changes,
		"coach":   res.Coach,
	}, nil)
}

func (h *CoachHandler) GetChecklist(w http.ResponseWriter, r *http.Request) {
	cl, err := h.svc.Checklist(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, true, "success", map[string]interface{}{
		"checklist": cl,
		"failing":   cl.Failing(),
		"ready":     cl.Ready(),
	}, nil)
}

func (h *CoachHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.svc.ListDocuments(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, true, "success", docs, nil)
}

func (h *CoachHandler) ListAudit(w http.ResponseWriter, r *http.Request) {
	entries, err := h.svc.ListAudit(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(h.logger, w, r, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, true, "success", entries, nil)
}
