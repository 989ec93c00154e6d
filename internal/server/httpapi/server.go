// Package httpapi is the HTTP boundary of the server. It parses requests,
// hands them to the services and translates typed errors into status codes.
// No business rules live here.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/zoneup/zoneup/internal/common"
	"github.com/zoneup/zoneup/internal/logging"
	"github.com/zoneup/zoneup/internal/server/auth"
	"github.com/zoneup/zoneup/internal/server/config"
	"github.com/zoneup/zoneup/internal/server/dns"
	"github.com/zoneup/zoneup/internal/server/services"
)

const userIDContextKey = "user_id"

// Server wires the echo instance to the services.
type Server struct {
	echo    *echo.Echo
	users   *services.UserService
	domains *services.DomainService
	cfg     *config.Config
	log     logging.Logger
}

// NewServer builds the echo server and registers all routes.
func NewServer(users *services.UserService, domains *services.DomainService,
	cfg *config.Config, log logging.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	s := &Server{
		echo:    e,
		users:   users,
		domains: domains,
		cfg:     cfg,
		log:     log.With("component", "httpapi"),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.echo.Group("/api")

	api.GET("/health", s.health)

	// Account lifecycle.
	api.POST("/users", s.createUser)
	api.POST("/users/activate", s.activateUser)
	api.POST("/users/reset", s.requestPasswordReset)
	api.POST("/users/reset/validate", s.validateResetToken)
	api.PUT("/users/password", s.setPassword)
	api.DELETE("/users", s.deleteUser)
	api.POST("/auth/login", s.login)

	// Device API: credentials or the update token travel in the body,
	// the way the device agent submits them.
	api.POST("/domains/acquire", s.acquireDomain)
	api.PUT("/domains/update", s.updateDomain)
	api.POST("/domains/drop", s.dropDevice)

	// Account-facing domain management, JWT-authenticated.
	owned := api.Group("/domains", s.requireSession)
	owned.GET("", s.listDomains)
	owned.DELETE("/:label", s.deleteDomain)
}

// Start runs the HTTP server until it fails or is shut down.
func (s *Server) Start(addr string) error {
	err := s.echo.Start(addr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// requireSession validates the Bearer JWT and stores the user id in the
// request context.
func (s *Server) requireSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			return c.JSON(http.StatusUnauthorized, errorBody("missing bearer token"))
		}
		userID, err := auth.GetUserIDFromToken(token, []byte(s.cfg.SecretKey))
		if err != nil {
			return c.JSON(http.StatusUnauthorized, errorBody("invalid session token"))
		}
		c.Set(userIDContextKey, userID)
		return next(c)
	}
}

// httpError maps typed service errors onto status codes. Provider and
// internal failures are logged with full detail but surfaced generically.
func (s *Server) httpError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, common.ErrBadRequest):
		return c.JSON(http.StatusBadRequest, errorBody(err.Error()))
	case errors.Is(err, common.ErrForbidden):
		return c.JSON(http.StatusForbidden, errorBody("forbidden"))
	case errors.Is(err, common.ErrConflict):
		return c.JSON(http.StatusConflict, errorBody(err.Error()))
	case errors.Is(err, common.ErrNotFound):
		return c.JSON(http.StatusNotFound, errorBody("not found"))
	}

	ctx := c.Request().Context()
	var perr *dns.ProviderError
	if errors.As(err, &perr) {
		s.log.Error(ctx, "dns provider failure",
			"error", perr.Err, "unknown_outcome", perr.Unknown,
			"attempted_upserts", len(perr.Added), "attempted_deletes", len(perr.Removed))
		return c.JSON(http.StatusInternalServerError, errorBody("dns update failed, try again later"))
	}

	s.log.Error(ctx, "internal error", "error", err)
	return c.JSON(http.StatusInternalServerError, errorBody("internal error"))
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}
