package api

import (
	"errors"
	"net/http"

	"github.com/txn2/ai-notebook/pkg/audit"
	"github.com/txn2/ai-notebook/pkg/auth"
	"github.com/txn2/ai-notebook/pkg/failure"
)

// credentials is the body of signup and password-grant requests.
type credentials struct {
	Email    string       `json:"email"`
	Password string       `json:"password"`
	Data     auth.Profile `json:"data"`
}

// userUpdate is the body of PUT /auth/v1/user.
type userUpdate struct {
	Data auth.ProfileUpdate `json:"data"`
}

// recoverRequest is the body of POST /auth/v1/recover.
type recoverRequest struct {
	Email string `json:"email"`
}

// sessionEnvelope wraps the current session, which may be null.
type sessionEnvelope struct {
	Session *auth.Session `json:"session"`
}

// signup handles POST /auth/v1/signup.
//
// @Summary      Register an account
// @Description  Creates an account and signs it in. The response is the new session.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body  body      credentials  true  "Email, password and optional profile data"
// @Success      201   {object}  auth.Session
// @Failure      400   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Router       /auth/v1/signup [post]
func (h *Handler) signup(w http.ResponseWriter, r *http.Request) {
	var body credentials
	if err := decodeBody(r, "register", &body); err != nil {
		h.writeFailure(w, r, err)
		return
	}

	_, sess, err := h.deps.Sessions.Register(r.Context(), body.Email, body.Password, body.Data)
	if sess == nil {
		h.record(r, audit.NewEvent(audit.EventSignedUp).WithUser("", body.Email).WithError(err.Error()))
		h.writeFailure(w, r, err)
		return
	}
	h.record(r, audit.NewEvent(audit.EventSignedUp).WithUser(sess.User.ID, sess.User.Email))
	if err != nil {
		// Signed in, but the session could not be persisted.
		h.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

// token handles POST /auth/v1/token?grant_type=password.
//
// @Summary      Sign in
// @Description  Exchanges email and password for a session. Only the password grant is supported.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        grant_type  query     string       true  "Must be password"
// @Param        body        body      credentials  true  "Email and password"
// @Success      200         {object}  auth.Session
// @Failure      400         {object}  errorResponse
// @Failure      401         {object}  errorResponse
// @Router       /auth/v1/token [post]
func (h *Handler) token(w http.ResponseWriter, r *http.Request) {
	const op = "login"
	if grant := r.URL.Query().Get("grant_type"); grant != "password" {
		h.writeFailure(w, r, failure.New(failure.InvalidInput, op, "unsupported grant_type "+grant))
		return
	}

	var body credentials
	if err := decodeBody(r, op, &body); err != nil {
		h.writeFailure(w, r, err)
		return
	}

	_, sess, err := h.deps.Sessions.Login(r.Context(), body.Email, body.Password)
	if sess == nil {
		if errors.Is(err, failure.ErrInvalidCredentials) {
			h.record(r, audit.NewEvent(audit.EventLoginFailed).WithUser("", body.Email).WithError(err.Error()))
		}
		h.writeFailure(w, r, err)
		return
	}
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// logout handles POST /auth/v1/logout.
//
// @Summary      Sign out
// @Description  Ends the session the bearer token belongs to.
// @Tags         Auth
// @Success      204
// @Failure      401  {object}  errorResponse
// @Failure      503  {object}  errorResponse
// @Security     BearerAuth
// @Router       /auth/v1/logout [post]
func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Sessions.Logout(r.Context()); err != nil {
		h.writeFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// session handles GET /auth/v1/session.
//
// @Summary      Current session
// @Description  Returns the session the bearer token belongs to.
// @Tags         Auth
// @Produce      json
// @Success      200  {object}  sessionEnvelope
// @Failure      401  {object}  errorResponse
// @Security     BearerAuth
// @Router       /auth/v1/session [get]
func (*Handler) session(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sessionEnvelope{Session: sessionFromContext(r.Context())})
}

// getUser handles GET /auth/v1/user.
//
// @Summary      Current user
// @Tags         Auth
// @Produce      json
// @Success      200  {object}  auth.Identity
// @Failure      401  {object}  errorResponse
// @Security     BearerAuth
// @Router       /auth/v1/user [get]
func (*Handler) getUser(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, auth.IdentityFromContext(r.Context()))
}

// updateUser handles PUT /auth/v1/user.
//
// @Summary      Update profile
// @Description  Changes display name and avatar URL. Omitted fields are kept.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body  body      userUpdate  true  "Profile changes"
// @Success      200   {object}  auth.Identity
// @Failure      401   {object}  errorResponse
// @Security     BearerAuth
// @Router       /auth/v1/user [put]
func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	var body userUpdate
	if err := decodeBody(r, "update_profile", &body); err != nil {
		h.writeFailure(w, r, err)
		return
	}

	id, err := h.deps.Sessions.UpdateProfile(r.Context(), body.Data)
	if id == nil {
		h.writeFailure(w, r, err)
		return
	}
	h.record(r, audit.NewEvent(audit.EventProfileUpdated).WithUser(id.ID, id.Email))
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, id)
}

// recoverPassword handles POST /auth/v1/recover.
//
// @Summary      Request a password reset
// @Description  Always succeeds and never reveals whether the address is registered.
// @Tags         Auth
// @Accept       json
// @Param        body  body  recoverRequest  true  "Account email"
// @Success      200
// @Router       /auth/v1/recover [post]
func (h *Handler) recoverPassword(w http.ResponseWriter, r *http.Request) {
	var body recoverRequest
	if err := decodeBody(r, "reset_password", &body); err != nil {
		h.writeFailure(w, r, err)
		return
	}
	if err := h.deps.Sessions.ResetPasswordForEmail(r.Context(), body.Email); err != nil {
		h.writeFailure(w, r, err)
		return
	}
	h.record(r, audit.NewEvent(audit.EventPasswordReset).WithUser("", body.Email))
	writeJSON(w, http.StatusOK, struct{}{})
}
