package handlers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/hugh/ash-erp/internal/api/dto"
	"github.com/hugh/ash-erp/internal/api/middleware"
	"github.com/hugh/ash-erp/internal/api/respond"
	"github.com/hugh/ash-erp/internal/auth"
	"github.com/hugh/ash-erp/internal/gate"
	"github.com/hugh/ash-erp/internal/tenant"
)

type AuthHandler struct {
	authService   auth.Authenticator
	resolver      gate.Resolver
	rs            *respond.Responder
	secureCookies bool
}

func NewAuthHandler(authService auth.Authenticator, resolver gate.Resolver, rs *respond.Responder, secureCookies bool) *AuthHandler {
	return &AuthHandler{
		authService:   authService,
		resolver:      resolver,
		rs:            rs,
		secureCookies: secureCookies,
	}
}

// Login handles POST /auth/login. Emails are unique per tenant, so the
// tenant comes from the request (header, path or subdomain) before the
// credentials are checked.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !validate(w, req.Validate()) {
		return
	}

	tc, err := h.resolver.Resolve(r.Context(), tenant.RequestFromHTTP(r, uuid.Nil))
	if err != nil {
		if errors.Is(err, tenant.ErrTenantNotFound) || errors.Is(err, tenant.ErrTenantInactive) {
			// Do not reveal which workspaces exist
			respond.JSON(w, http.StatusUnauthorized, dto.ErrorResponse{Error: "Invalid credentials", Code: "unauthenticated"})
			return
		}
		h.rs.Error(w, r, err)
		return
	}

	resp, err := h.authService.Login(r.Context(), auth.LoginInput{
		TenantID: tc.TenantID,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			respond.JSON(w, http.StatusUnauthorized, dto.ErrorResponse{Error: "Invalid credentials", Code: "unauthenticated"})
		case errors.Is(err, auth.ErrInactiveUser):
			respond.JSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Account is inactive", Code: "inactive_user"})
		default:
			h.rs.Error(w, r, err)
		}
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookie,
		Value:    resp.Token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   86400, // 24 hours
	})
	if _, err := middleware.SetCSRFCookie(w, h.secureCookies); err != nil {
		h.rs.Error(w, r, err)
		return
	}

	user := dto.NewUserDTO(resp.User)
	user.TenantSlug = tc.Slug
	respond.JSON(w, http.StatusOK, dto.AuthResponse{
		Token: resp.Token,
		User:  user,
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	for _, name := range []string{middleware.TokenCookie, middleware.CSRFCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			HttpOnly: name == middleware.TokenCookie,
			MaxAge:   -1,
		})
	}

	respond.JSON(w, http.StatusOK, dto.SuccessResponse{Success: true, Message: "Logged out"})
}

// Me handles GET /me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFrom(r.Context())
	if principal == nil {
		h.rs.Error(w, r, gate.ErrUnauthenticated)
		return
	}

	user, err := h.authService.GetUser(r.Context(), principal.TenantID, principal.UserID)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, dto.NewUserDTO(user))
}

var _ gate.Resolver = (*tenant.Resolver)(nil)
