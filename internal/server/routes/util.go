package routes

import (
	"errors"
	"net/http"
	"strings"

	"github.com/OFFIS-RIT/storyweb/internal/server/middleware"
	"github.com/OFFIS-RIT/storyweb/pkg/cluster"
	"github.com/OFFIS-RIT/storyweb/pkg/common"
	"github.com/OFFIS-RIT/storyweb/pkg/logger"

	"github.com/labstack/echo/v4"
)

type errorResponse struct {
	Error string `json:"error"`
}

func app(c echo.Context) *middleware.App {
	return c.(*middleware.AppContext).App
}

func user(c echo.Context) *middleware.AppUser {
	return c.(*middleware.AppContext).User
}

// fail maps engine errors to status codes. Internal errors are logged and
// not echoed to the client.
func fail(c echo.Context, err error) error {
	switch {
	case errors.Is(err, cluster.ErrNotFound):
		return c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, cluster.ErrInvalid):
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}
	logger.Error("[Server] Request failed", "method", c.Request().Method, "path", c.Path(), "err", err)
	return c.JSON(http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, errorResponse{Error: msg})
}

// bind decodes and validates the request body into data.
func bind(c echo.Context, data any) error {
	if err := c.Bind(data); err != nil {
		return err
	}
	return c.Validate(data)
}

func listing(c echo.Context, allowedSort []string) (common.Listing, error) {
	return common.ParseListing(c.QueryParam("limit"), c.QueryParam("offset"), c.QueryParam("sort"), allowedSort)
}

// queryList collects a repeated or comma separated query parameter.
func queryList(c echo.Context, name string) []string {
	var out []string
	for _, value := range c.QueryParams()[name] {
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
	}
	return out
}
