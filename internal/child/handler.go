package child

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"

	"github.com/kidsafe/access-management/internal"
	"github.com/kidsafe/access-management/internal/auth"
	"github.com/kidsafe/access-management/internal/authorization"
	"github.com/kidsafe/access-management/internal/transport"
	"github.com/kidsafe/access-management/pkg/logger"
)

// AccessChecker answers per-child permission questions for route guards.
type AccessChecker interface {
	HasPermission(childID, userID int64, p authorization.Permission) (bool, error)
	CanAccess(childID, userID int64) (bool, error)
	IsPrimaryParent(childID, userID int64) (bool, error)
}

type Handler struct {
	*transport.BaseHandler
	Service *Service
	Access  AccessChecker
}

func NewHandler(svc *Service, access AccessChecker) *Handler {
	return &Handler{
		BaseHandler: transport.NewBaseHandler(logger.LoggerWrapper()),
		Service:     svc,
		Access:      access,
	}
}

func (h *Handler) CreateChild(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.UserFromContext(r.Context())
	if !ok || caller == nil {
		h.WriteError(w, http.StatusUnauthorized, "missing authenticated user")
		return
	}

	var dto CreateChildDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c, err := h.Service.CreateChild(r.Context(), dto, caller.ID)
	if err != nil {
		h.WriteDomainError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, c.ToView())
}

func (h *Handler) ListChildren(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.UserFromContext(r.Context())
	if !ok || caller == nil {
		h.WriteError(w, http.StatusUnauthorized, "missing authenticated user")
		return
	}

	children, err := h.Service.ListChildrenForUser(caller.ID)
	if err != nil {
		h.WriteDomainError(w, err)
		return
	}

	views := make([]ChildView, len(children))
	for i, c := range children {
		views[i] = c.ToView()
	}
	h.WriteJSON(w, http.StatusOK, views)
}

func (h *Handler) GetChild(w http.ResponseWriter, r *http.Request) {
	caller, childID, ok := h.callerAndChild(w, r)
	if !ok {
		return
	}

	canAccess, err := h.Access.CanAccess(childID, caller.ID)
	if err != nil {
		h.WriteDomainError(w, err)
		return
	}
	if !canAccess {
		h.WriteDomainError(w, internal.ErrInsufficientPermission)
		return
	}

	c, err := h.Service.GetChild(childID)
	if err != nil {
		h.WriteDomainError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, c.ToView())
}

func (h *Handler) UpdateChild(w http.ResponseWriter, r *http.Request) {
	_, childID, ok := h.requireManage(w, r)
	if !ok {
		return
	}

	var dto UpdateChildDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c, err := h.Service.UpdateChild(childID, dto)
	if err != nil {
		h.WriteDomainError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, c.ToView())
}

// DeleteChild is primary-only: removing the child removes everyone's access.
func (h *Handler) DeleteChild(w http.ResponseWriter, r *http.Request) {
	caller, childID, ok := h.callerAndChild(w, r)
	if !ok {
		return
	}

	isPrimary, err := h.Access.IsPrimaryParent(childID, caller.ID)
	if err != nil {
		h.WriteDomainError(w, err)
		return
	}
	if !isPrimary {
		h.WriteDomainError(w, internal.ErrInsufficientPermission)
		return
	}

	if err := h.Service.DeleteChild(r.Context(), childID); err != nil {
		h.WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) SetPin(w http.ResponseWriter, r *http.Request) {
	_, childID, ok := h.requireManage(w, r)
	if !ok {
		return
	}

	var dto SetPinDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.Service.SetPin(childID, dto); err != nil {
		h.WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) EnablePin(w http.ResponseWriter, r *http.Request) {
	_, childID, ok := h.requireManage(w, r)
	if !ok {
		return
	}
	if err := h.Service.EnablePin(childID); err != nil {
		h.WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) DisablePin(w http.ResponseWriter, r *http.Request) {
	_, childID, ok := h.requireManage(w, r)
	if !ok {
		return
	}
	if err := h.Service.DisablePin(childID); err != nil {
		h.WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) RemovePin(w http.ResponseWriter, r *http.Request) {
	_, childID, ok := h.requireManage(w, r)
	if !ok {
		return
	}
	if err := h.Service.RemovePin(childID); err != nil {
		h.WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
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

	allowed, err := h.Access.HasPermission(childID, caller.ID, authorization.PermissionManage)
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
