package authorization

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"

	"github.com/kidsafe/access-management/internal"
	"github.com/kidsafe/access-management/internal/auth"
	"github.com/kidsafe/access-management/internal/transport"
	"github.com/kidsafe/access-management/pkg/logger"
)

type Handler struct {
	*transport.BaseHandler
	Service *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{
		BaseHandler: transport.NewBaseHandler(logger.LoggerWrapper()),
		Service:     svc,
	}
}

func (h *Handler) AddGrant(w http.ResponseWriter, r *http.Request) {
	caller, childID, ok := h.requireManage(w, r)
	if !ok {
		return
	}

	var dto AddGrantDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	grant, err := h.Service.AddGrant(r.Context(), childID, dto, caller.ID)
	if err != nil {
		h.WriteDomainError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, grant.ToView())
}

func (h *Handler) RemoveGrant(w http.ResponseWriter, r *http.Request) {
	_, childID, ok := h.requireManage(w, r)
	if !ok {
		return
	}

	grantID, err := strconv.ParseInt(chi.URLParam(r, "grantID"), 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid grant id")
		return
	}

	if err := h.Service.RemoveGrant(r.Context(), childID, grantID); err != nil {
		h.WriteDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) TransferPrimary(w http.ResponseWriter, r *http.Request) {
	caller, childID, ok := h.callerAndChild(w, r)
	if !ok {
		return
	}

	// Only the current primary guardian may hand over guardianship.
	isPrimary, err := h.Service.IsPrimaryParent(childID, caller.ID)
	if err != nil {
		h.WriteDomainError(w, err)
		return
	}
	if !isPrimary {
		h.WriteDomainError(w, internal.ErrInsufficientPermission)
		return
	}

	var dto TransferPrimaryDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := dto.Validate(); err != nil {
		h.WriteDomainError(w, err)
		return
	}

	if err := h.Service.TransferPrimary(r.Context(), childID, dto.UserID); err != nil {
		h.WriteDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListGrants(w http.ResponseWriter, r *http.Request) {
	caller, childID, ok := h.callerAndChild(w, r)
	if !ok {
		return
	}

	canAccess, err := h.Service.CanAccess(childID, caller.ID)
	if err != nil {
		h.WriteDomainError(w, err)
		return
	}
	if !canAccess {
		h.WriteDomainError(w, internal.ErrInsufficientPermission)
		return
	}

	grants, err := h.Service.ListGrants(childID)
	if err != nil {
		h.WriteDomainError(w, err)
		return
	}

	views := make([]GrantView, len(grants))
	for i, g := range grants {
		views[i] = g.ToView()
	}
	h.WriteJSON(w, http.StatusOK, views)
}

func (h *Handler) callerAndChild(w http.ResponseWriter, r *http.Request) (*auth.Principal, int64, bool) {
	caller, ok := auth.UserFromContext(r.Context())
	if !ok || caller == nil {
		h.WriteError(w, http.StatusUnauthorized, "missing authenticated user")
		return nil, 0, false
	}

	childID, err := strconv.ParseInt(chi.URLParam(r, "childID"), 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid child id")
		return nil, 0, false
	}
	return caller, childID, true
}

func (h *Handler) requireManage(w http.ResponseWriter, r *http.Request) (*auth.Principal, int64, bool) {
	caller, childID, ok := h.callerAndChild(w, r)
	if !ok {
		return nil, 0, false
	}

	allowed, err := h.Service.HasPermission(childID, caller.ID, PermissionManage)
	if err != nil {
		h.WriteDomainError(w, err)
		return nil, 0, false
	}
	if !allowed {
		h.WriteDomainError(w, internal.ErrInsufficientPermission)
		return nil, 0, false
	}
	return caller, childID, true
}
