package api

import (
	"net/http"

	"github.com/starford/studynotes/internal/apperr"
	"github.com/starford/studynotes/internal/identity"
)

// AuthHandler exposes the identity provider over HTTP.
type AuthHandler struct {
	idp identity.Provider
}

func NewAuthHandler(idp identity.Provider) *AuthHandler {
	return &AuthHandler{idp: idp}
}

type validator interface {
	Validate() error
}

func (h *AuthHandler) decode(w http.ResponseWriter, r *http.Request, req validator) bool {
	if err := decodeJSON(w, r, req); err != nil {
		writeError(w, r, err)
		return false
	}
	if err := req.Validate(); err != nil {
		writeError(w, r, err)
		return false
	}
	return true
}

// SignUp handles POST /auth/signup.
//
//	@Summary		Register an account
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SignUpRequest	true	"Account"
//	@Success		200		{object}	SignUpResponse
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Router			/auth/signup [post]
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req SignUpRequest
	if !h.decode(w, r, &req) {
		return
	}
	u, err := h.idp.SignUp(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SignUpResponse{Message: "Registration successful", User: u})
}

// SignIn handles POST /auth/signin.
//
//	@Summary		Sign in and obtain a bearer token
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SignInRequest	true	"Credentials"
//	@Success		200		{object}	SignInResponse
//	@Failure		401		{object}	errResponse
//	@Router			/auth/signin [post]
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req SignInRequest
	if !h.decode(w, r, &req) {
		return
	}
	sess, u, err := h.idp.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SignInResponse{Message: "Login successful", Session: sess, User: u})
}

// SignOut handles POST /auth/signout. The bearer token, if any, is revoked.
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.idp.SignOut(r.Context(), bearerToken(r)); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Logged out successfully"})
}

// Me handles GET /auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFrom(r.Context())
	if !ok {
		writeError(w, r, apperr.ErrUnauthenticated)
		return
	}
	writeJSON(w, http.StatusOK, MeResponse{User: id})
}

// ResetPassword handles POST /auth/reset-password. The response does not
// reveal whether the email is registered.
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.idp.RequestPasswordReset(r.Context(), req.Email); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Password reset email sent"})
}

// UpdatePassword handles POST /auth/update-password.
func (h *AuthHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	var req UpdatePasswordRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.idp.UpdatePassword(r.Context(), req.Token, req.Password); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Password updated successfully"})
}
