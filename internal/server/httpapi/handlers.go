package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/zoneup/zoneup/internal/server/auth"
	"github.com/zoneup/zoneup/internal/server/models"
	"github.com/zoneup/zoneup/internal/server/services"
)

type serviceDTO struct {
	Name      string `json:"name"`
	Protocol  string `json:"protocol"`
	Type      string `json:"type"`
	Port      int    `json:"port"`
	LocalPort int    `json:"local_port,omitempty"`
	URL       string `json:"url,omitempty"`
}

type domainDTO struct {
	UserDomain      string       `json:"user_domain"`
	DeviceName      string       `json:"device_name"`
	DeviceTitle     string       `json:"device_title"`
	IP              string       `json:"ip"`
	LocalIP         string       `json:"local_ip,omitempty"`
	MapLocalAddress bool         `json:"map_local_address"`
	PlatformVersion string       `json:"platform_version,omitempty"`
	LastUpdate      string       `json:"last_update"`
	Services        []serviceDTO `json:"services"`
}

func toDomainDTO(d *models.Domain) domainDTO {
	dto := domainDTO{
		UserDomain:      d.UserDomain,
		DeviceName:      d.DeviceName,
		DeviceTitle:     d.DeviceTitle,
		IP:              d.IP,
		LocalIP:         d.LocalIP,
		MapLocalAddress: d.MapLocalAddress,
		PlatformVersion: d.PlatformVersion,
		LastUpdate:      d.LastUpdate.UTC().Format("2006-01-02T15:04:05.000000Z07:00"),
		Services:        []serviceDTO{},
	}
	for _, svc := range d.Services {
		dto.Services = append(dto.Services, serviceDTO(svc))
	}
	return dto
}

func toServices(dtos []serviceDTO) []models.Service {
	services := make([]models.Service, 0, len(dtos))
	for _, dto := range dtos {
		services = append(services, models.Service(dto))
	}
	return services
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) createUser(c echo.Context) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Domain   string `json:"domain,omitempty"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("malformed request body"))
	}
	user, err := s.users.CreateUser(c.Request().Context(), req.Email, req.Password, req.Domain)
	if err != nil {
		return s.httpError(c, err)
	}
	return c.JSON(http.StatusCreated, map[string]any{"email": user.Email, "active": user.Active})
}

func (s *Server) activateUser(c echo.Context) error {
	var req struct {
		Token string `json:"token"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("malformed request body"))
	}
	if err := s.users.Activate(c.Request().Context(), req.Token); err != nil {
		return s.httpError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) login(c echo.Context) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("malformed request body"))
	}
	user, err := s.users.Authenticate(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return s.httpError(c, err)
	}
	token, err := auth.GenerateToken(user.ID, []byte(s.cfg.SecretKey), s.cfg.AccessTokenValidityDuration)
	if err != nil {
		return s.httpError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"access_token": token})
}

func (s *Server) requestPasswordReset(c echo.Context) error {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("malformed request body"))
	}
	if err := s.users.RequestPasswordReset(c.Request().Context(), req.Email); err != nil {
		return s.httpError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) validateResetToken(c echo.Context) error {
	var req struct {
		Token string `json:"token"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("malformed request body"))
	}
	if err := s.users.ValidateResetToken(c.Request().Context(), req.Token); err != nil {
		return s.httpError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) setPassword(c echo.Context) error {
	var req struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("malformed request body"))
	}
	if err := s.users.SetPassword(c.Request().Context(), req.Token, req.Password); err != nil {
		return s.httpError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) deleteUser(c echo.Context) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("malformed request body"))
	}
	if err := s.users.DeleteUser(c.Request().Context(), req.Email, req.Password); err != nil {
		return s.httpError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) acquireDomain(c echo.Context) error {
	var req struct {
		Email       string `json:"email"`
		Password    string `json:"password"`
		Domain      string `json:"domain"`
		MacAddress  string `json:"mac_address"`
		DeviceName  string `json:"device_name"`
		DeviceTitle string `json:"device_title"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("malformed request body"))
	}
	ctx := c.Request().Context()
	owner, err := s.users.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return s.httpError(c, err)
	}
	domain, err := s.domains.AcquireDomain(ctx, owner, req.Domain, req.MacAddress, req.DeviceName, req.DeviceTitle)
	if err != nil {
		return s.httpError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{
		"user_domain":  domain.UserDomain,
		"update_token": domain.UpdateToken,
	})
}

func (s *Server) updateDomain(c echo.Context) error {
	var req struct {
		Token           string       `json:"token"`
		IP              string       `json:"ip,omitempty"`
		LocalIP         string       `json:"local_ip,omitempty"`
		MapLocalAddress *bool        `json:"map_local_address,omitempty"`
		PlatformVersion string       `json:"platform_version,omitempty"`
		Services        []serviceDTO `json:"services"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("malformed request body"))
	}
	domain, err := s.domains.UpdateDomain(c.Request().Context(), req.Token, services.UpdateParams{
		IP:              req.IP,
		LocalIP:         req.LocalIP,
		MapLocalAddress: req.MapLocalAddress,
		PlatformVersion: req.PlatformVersion,
		Services:        toServices(req.Services),
		RemoteAddr:      c.RealIP(),
	})
	if err != nil {
		return s.httpError(c, err)
	}
	return c.JSON(http.StatusOK, toDomainDTO(domain))
}

func (s *Server) dropDevice(c echo.Context) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Domain   string `json:"domain"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("malformed request body"))
	}
	ctx := c.Request().Context()
	owner, err := s.users.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return s.httpError(c, err)
	}
	if err := s.domains.DropDevice(ctx, owner, req.Domain); err != nil {
		return s.httpError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) listDomains(c echo.Context) error {
	ctx := c.Request().Context()
	owner, err := s.sessionUser(c)
	if err != nil {
		return s.httpError(c, err)
	}
	owned, err := s.domains.ListDomains(ctx, owner)
	if err != nil {
		return s.httpError(c, err)
	}
	dtos := make([]domainDTO, 0, len(owned))
	for _, d := range owned {
		dtos = append(dtos, toDomainDTO(d))
	}
	return c.JSON(http.StatusOK, dtos)
}

func (s *Server) deleteDomain(c echo.Context) error {
	ctx := c.Request().Context()
	owner, err := s.sessionUser(c)
	if err != nil {
		return s.httpError(c, err)
	}
	if err := s.domains.DeleteDomain(ctx, owner, c.Param("label")); err != nil {
		return s.httpError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) sessionUser(c echo.Context) (*models.User, error) {
	userID, _ := c.Get(userIDContextKey).(string)
	return s.users.GetByID(c.Request().Context(), userID)
}
