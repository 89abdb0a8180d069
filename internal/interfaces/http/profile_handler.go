package http

import (
	"net/http"

	"github.com/codetrail/learngate/internal/interfaces/http/middleware"
	"github.com/codetrail/learngate/internal/profile"
	"github.com/labstack/echo/v4"
)

// ProfileHandler the aggregated "my progress" page
type ProfileHandler struct {
	profile *profile.Service
}

// NewProfileHandler .
func NewProfileHandler(service *profile.Service) *ProfileHandler {
	return &ProfileHandler{profile: service}
}

// HandleGetProfile .
func (ph *ProfileHandler) HandleGetProfile(c echo.Context) (err error) {
	sess := middleware.CurrentSession(c)
	view, err := ph.profile.Assemble(c.Request().Context(), sess)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view)
}
