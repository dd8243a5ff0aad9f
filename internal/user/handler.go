package user

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

type ServiceAPI interface {
	Register(dto RegisterDTO) (*User, error)
	GetByID(userID int64) (*User, error)
	AssignRole(userID int64, dto AssignRoleDTO, grantedBy int64) (*User, error)
	RemoveRole(userID int64, role string) (*User, error)
	Deactivate(userID int64) error
	Activate(userID int64) error
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(svc ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: transport.NewBaseHandler(logger.LoggerWrapper()),
		Service:     svc,
	}
}

// Register handles POST /users, the only unauthenticated write.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var dto RegisterDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	u, err := h.Service.Register(dto)
	if err != nil {
		h.WriteDomainError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, u.ToView())
}

// GetCurrentUser handles GET /users/me
func (h *Handler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.UserFromContext(r.Context())
	if !ok || caller == nil {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	u, err := h.Service.GetByID(caller.ID)
	if err != nil {
		h.WriteDomainError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, u.ToView())
}

// AssignRole handles PUT /users/{userID}/roles, admin only.
func (h *Handler) AssignRole(w http.ResponseWriter, r *http.Request) {
	caller, userID, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}

	var dto AssignRoleDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	u, err := h.Service.AssignRole(userID, dto, caller.ID)
	if err != nil {
		h.WriteDomainError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, u.ToView())
}

func (h *Handler) RemoveRole(w http.ResponseWriter, r *http.Request) {
	_, userID, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}

	role := chi.URLParam(r, "role")
	u, err := h.Service.RemoveRole(userID, role)
	if err != nil {
		h.WriteDomainError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, u.ToView())
}

func (h *Handler) DeactivateUser(w http.ResponseWriter, r *http.Request) {
	_, userID, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}

	if err := h.Service.Deactivate(userID); err != nil {
		h.WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ActivateUser(w http.ResponseWriter, r *http.Request) {
	_, userID, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}

	if err := h.Service.Activate(userID); err != nil {
		h.WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) requireAdmin(w http.ResponseWriter, r *http.Request) (*auth.Principal, int64, bool) {
	caller, ok := auth.UserFromContext(r.Context())
	if !ok || caller == nil {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return nil, 0, false
	}
	if !caller.HasRole(RoleAdmin) {
		h.WriteDomainError(w, internal.NewForbiddenError("admin role required", internal.ErrCodeInsufficientPermission))
		return nil, 0, false
	}

	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid user id")
		return nil, 0, false
	}
	return caller, userID, true
}
