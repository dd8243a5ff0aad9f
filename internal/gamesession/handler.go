package gamesession

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

// IssueSession answers the PIN challenge and mints the child-scoped token.
func (h *Handler) IssueSession(w http.ResponseWriter, r *http.Request) {
	caller, childID, ok := h.callerAndChild(w, r)
	if !ok {
		return
	}

	var dto IssueSessionDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := dto.Validate(); err != nil {
		h.WriteDomainError(w, err)
		return
	}

	session, err := h.Service.Issue(r.Context(), childID, caller.ID, dto.Pin)
	if err != nil {
		h.WriteDomainError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, session.ToIssuedView())
}

// ValidateSession is the game client's entry point: no bearer credential,
// just the opaque session token.
func (h *Handler) ValidateSession(w http.ResponseWriter, r *http.Request) {
	var dto ValidateSessionDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := dto.Validate(); err != nil {
		h.WriteDomainError(w, err)
		return
	}

	session, err := h.Service.Validate(dto.Token)
	if err != nil {
		h.WriteDomainError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, session.ToView())
}

// Heartbeat records activity; the game client calls it periodically.
func (h *Handler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	var dto ValidateSessionDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := dto.Validate(); err != nil {
		h.WriteDomainError(w, err)
		return
	}

	session, err := h.Service.Heartbeat(dto.Token)
	if err != nil {
		h.WriteDomainError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, session.ToView())
}

func (h *Handler) ExtendSession(w http.ResponseWriter, r *http.Request) {
	caller, sessionID, session, ok := h.callerAndSession(w, r)
	if !ok {
		return
	}
	if !h.mayControl(w, caller, session) {
		return
	}

	extended, err := h.Service.Extend(sessionID)
	if err != nil {
		h.WriteDomainError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, extended.ToView())
}

func (h *Handler) TerminateSession(w http.ResponseWriter, r *http.Request) {
	caller, sessionID, session, ok := h.callerAndSession(w, r)
	if !ok {
		return
	}
	if !h.mayControl(w, caller, session) {
		return
	}

	if err := h.Service.Terminate(r.Context(), sessionID); err != nil {
		h.WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	caller, childID, ok := h.callerAndChild(w, r)
	if !ok {
		return
	}

	allowed, err := h.Service.access.HasPermission(childID, caller.ID, authorization.PermissionManage)
	if err != nil {
		h.WriteDomainError(w, err)
		return
	}
	if !allowed {
		h.WriteDomainError(w, internal.ErrInsufficientPermission)
		return
	}

	sessions, err := h.Service.ListActiveForChild(childID)
	if err != nil {
		h.WriteDomainError(w, err)
		return
	}

	views := make([]SessionView, len(sessions))
	for i, s := range sessions {
		views[i] = s.ToView()
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

func (h *Handler) callerAndSession(w http.ResponseWriter, r *http.Request) (*auth.Principal, int64, *Session, bool) {
	caller, ok := auth.UserFromContext(r.Context())
	if !ok || caller == nil {
		h.WriteError(w, http.StatusUnauthorized, "missing authenticated user")
		return nil, 0, nil, false
	}

	sessionID, err := strconv.ParseInt(chi.URLParam(r, "sessionID"), 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid session id")
		return nil, 0, nil, false
	}

	session, err := h.Service.GetSession(sessionID)
	if err != nil {
		h.WriteDomainError(w, err)
		return nil, 0, nil, false
	}
	return caller, sessionID, session, true
}

// mayControl allows the issuing adult or any MANAGE-holder for the child.
func (h *Handler) mayControl(w http.ResponseWriter, caller *auth.Principal, session *Session) bool {
	if session.UserID == caller.ID {
		return true
	}
	allowed, err := h.Service.access.HasPermission(session.ChildID, caller.ID, authorization.PermissionManage)
	if err != nil {
		h.WriteDomainError(w, err)
		return false
	}
	if !allowed {
		h.WriteDomainError(w, internal.ErrInsufficientPermission)
		return false
	}
	return true
}
