package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/kidsafe/access-management/internal"
	"github.com/kidsafe/access-management/internal/transport"
	"github.com/kidsafe/access-management/pkg/logger"
)

type ctxKey string

const ContextUserKey ctxKey = "user"

// Principal is the authenticated caller placed on the request context by the
// auth middleware.
type Principal struct {
	ID    int64
	Email string
	Name  string
	Roles []string
}

func (p *Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func UserFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(ContextUserKey).(*Principal)
	return p, ok
}

type Handler struct {
	*transport.BaseHandler
	Service  ServiceAPI
	security internal.SecurityConfig
}

func NewHandler(svc ServiceAPI, security internal.SecurityConfig) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     svc,
		security:    security,
	}
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var dto LoginDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	userID, tokens, err := h.Service.Authenticate(dto)
	if err != nil {
		h.Logger.Error("authentication failed", "error", err)
		h.writeAuthError(w, err)
		return
	}

	h.setRefreshCookie(w, userID, tokens)
	h.WriteJSON(w, http.StatusOK, tokens)
}

func (h *Handler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(h.security.RefreshCookieName)
	if err != nil {
		h.WriteError(w, http.StatusUnauthorized, "missing refresh credential")
		return
	}

	userID, presented, err := DecodeRefreshCookie(cookie.Value)
	if err != nil {
		h.WriteError(w, http.StatusUnauthorized, "invalid refresh credential")
		return
	}

	tokens, err := h.Service.Refresh(userID, presented)
	if err != nil {
		h.Logger.Error("token refresh failed", "error", err, "user_id", userID)
		h.writeAuthError(w, err)
		return
	}

	h.setRefreshCookie(w, userID, tokens)
	h.WriteJSON(w, http.StatusOK, tokens)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	token := h.ExtractTokenFromHeader(r)
	if token == "" {
		h.WriteError(w, http.StatusUnauthorized, "missing authorization token")
		return
	}

	claims, err := h.Service.ValidateAccessToken(token)
	if err != nil {
		h.WriteError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	if err := h.Service.Logout(claims.UserID); err != nil {
		h.Logger.Error("logout failed", "error", err, "user_id", claims.UserID)
	}

	h.clearRefreshCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// setRefreshCookie delivers the refresh secret as an HTTP-only, same-site
// cookie. The transport treats it as an opaque bearer secret; it is never
// exposed to client-side script.
func (h *Handler) setRefreshCookie(w http.ResponseWriter, userID int64, tokens AuthTokens) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.security.RefreshCookieName,
		Value:    EncodeRefreshCookie(userID, tokens.RefreshToken),
		Path:     h.security.RefreshCookiePath,
		Expires:  tokens.RefreshExpiresAt,
		HttpOnly: true,
		Secure:   h.security.RefreshCookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *Handler) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.security.RefreshCookieName,
		Value:    "",
		Path:     h.security.RefreshCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.security.RefreshCookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *Handler) writeAuthError(w http.ResponseWriter, err error) {
	if appErr, ok := internal.IsAppError(err); ok {
		status, body := appErr.ToHTTPResponse()
		h.WriteJSON(w, status, body)
		return
	}
	if _, ok := err.(ValidationError); ok {
		h.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.WriteError(w, http.StatusInternalServerError, "internal server error")
}

// AuthMiddleware validates the bearer token and places the caller principal
// on the request context. Roles come straight from the verified claims; no
// extra lookup per request.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := h.ExtractTokenFromHeader(r)
		if token == "" {
			h.WriteError(w, http.StatusUnauthorized, "missing authorization token")
			return
		}

		claims, err := h.Service.ValidateAccessToken(token)
		if err != nil {
			h.Logger.Warn("token validation failed", "error", err)
			h.WriteError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		principal := &Principal{
			ID:    claims.UserID,
			Email: claims.Email,
			Name:  claims.Name,
			Roles: claims.Roles,
		}

		ctx := context.WithValue(r.Context(), ContextUserKey, principal)
		ctx = logger.With(ctx, "user_id", principal.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
