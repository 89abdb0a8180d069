package http

import (
	"context"
	"net/http"

	"github.com/codetrail/learngate/internal/domain"
	"github.com/codetrail/learngate/internal/infrastructure/auth"
	"github.com/codetrail/learngate/internal/infrastructure/validate"
	"github.com/codetrail/learngate/internal/interfaces/http/middleware"
	"github.com/codetrail/learngate/internal/upstream"
	"github.com/labstack/echo/v4"
)

// AuthAPI the account slice of the course store
type AuthAPI interface {
	Login(ctx context.Context, username, password string) (string, error)
	Register(ctx context.Context, form *upstream.RegisterForm) error
	GetUser(ctx context.Context, credential string) (*domain.UserModel, error)
}

type signInForm struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type signUpForm struct {
	Username  string `json:"username" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
}

// AuthHandler sign-in/sign-up against the remote store, session issuance
type AuthHandler struct {
	api       AuthAPI
	sessions  domain.SessionManager
	jwtUtil   *auth.JWTUtil
	validator validate.Validator
}

// NewAuthHandler .
func NewAuthHandler(api AuthAPI, sessions domain.SessionManager, jwtUtil *auth.JWTUtil, validator validate.Validator) *AuthHandler {
	return &AuthHandler{api, sessions, jwtUtil, validator}
}

// HandleSignIn exchange learner credentials for a session cookie. The
// upstream bearer token never reaches the browser.
func (ah *AuthHandler) HandleSignIn(c echo.Context) (err error) {
	form := new(signInForm)
	if err = c.Bind(form); err != nil {
		return c.JSON(http.StatusUnprocessableEntity,
			NewRESTStandardError(http.StatusUnprocessableEntity, "Failed to bind credentials"))
	}
	if errs := ah.validator.Struct(form); errs != nil {
		return c.JSON(http.StatusBadRequest,
			NewRESTValidationError(http.StatusBadRequest, "Failed to validate fields", errs))
	}

	ctx := c.Request().Context()
	credential, err := ah.api.Login(ctx, form.Username, form.Password)
	if err != nil {
		return err
	}
	return ah.startSession(c, credential)
}

// HandleSignUp create the account upstream, then sign the learner in
func (ah *AuthHandler) HandleSignUp(c echo.Context) (err error) {
	form := new(signUpForm)
	if err = c.Bind(form); err != nil {
		return c.JSON(http.StatusUnprocessableEntity,
			NewRESTStandardError(http.StatusUnprocessableEntity, "Failed to bind registration form"))
	}
	if errs := ah.validator.Struct(form); errs != nil {
		return c.JSON(http.StatusBadRequest,
			NewRESTValidationError(http.StatusBadRequest, "Failed to validate fields", errs))
	}

	ctx := c.Request().Context()
	err = ah.api.Register(ctx, &upstream.RegisterForm{
		Username:  form.Username,
		Email:     form.Email,
		Password:  form.Password,
		FirstName: form.FirstName,
		LastName:  form.LastName,
	})
	if err != nil {
		if err == domain.ErrDuplicatedUser {
			return c.JSON(http.StatusConflict, NewRESTStandardError(http.StatusConflict, err.Error()))
		}
		return err
	}

	credential, err := ah.api.Login(ctx, form.Username, form.Password)
	if err != nil {
		return err
	}
	return ah.startSession(c, credential)
}

// HandleSignOut drop the session and clear the cookie. Signing out an
// already-anonymous browser is a no-op, not an error.
func (ah *AuthHandler) HandleSignOut(c echo.Context) (err error) {
	ju := ah.jwtUtil
	tokenStr, err := ju.ExtractToken(c)
	if err != nil {
		return c.NoContent(http.StatusNoContent)
	}
	claims, err := ju.Validate(tokenStr)
	ju.ClearClientToken(c)
	if err != nil {
		return c.NoContent(http.StatusNoContent)
	}
	if err := ah.sessions.Discard(c.Request().Context(), claims.SID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleMe the authenticated learner's profile
func (ah *AuthHandler) HandleMe(c echo.Context) (err error) {
	sess := middleware.CurrentSession(c)
	user, err := ah.api.GetUser(c.Request().Context(), sess.Credential)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

func (ah *AuthHandler) startSession(c echo.Context, credential string) error {
	sess, err := ah.sessions.Issue(c.Request().Context(), credential)
	if err != nil {
		return err
	}
	tokenStr, err := ah.jwtUtil.GenerateTokenStr(sess.ID)
	if err != nil {
		return err
	}
	ah.jwtUtil.SetClientToken(c, tokenStr)
	return c.NoContent(http.StatusNoContent)
}
