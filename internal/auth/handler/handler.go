package handler

import (
	"net/http"
	"time"

	"estate_crm_backend/internal/auth/service"
	"estate_crm_backend/internal/auth/transport"
	"estate_crm_backend/platform/config"
	"estate_crm_backend/platform/httpkit"
	"estate_crm_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

type Handler struct {
	svc      *service.Service
	cfg      config.CookieConfig
	validate *validator.Validator
}

func New(svc *service.Service, cfg config.CookieConfig, validate *validator.Validator) *Handler {
	return &Handler{svc: svc, cfg: cfg, validate: validate}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/login", h.Login)
	rg.POST("/refresh", h.Refresh)
	rg.POST("/logout", h.Logout)
}

func (h *Handler) RegisterProtectedRoutes(rg *gin.RouterGroup) {
	rg.GET("/me", h.Me)
	rg.POST("/logout-all", h.LogoutAll)
}

func (h *Handler) Login(c *gin.Context) {
	var req transport.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	resp, refreshToken, err := h.svc.Login(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}

	h.setRefreshCookie(c, refreshToken)
	httpkit.OK(c, resp)
}

func (h *Handler) Refresh(c *gin.Context) {
	rawToken, err := c.Cookie(h.cfg.GetRefreshCookieName())
	if err != nil || rawToken == "" {
		httpkit.Error(c, http.StatusUnauthorized, "missing refresh token", nil)
		return
	}

	resp, newRefreshToken, err := h.svc.Refresh(c.Request.Context(), rawToken)
	if err != nil {
		h.clearRefreshCookie(c)
		httpkit.HandleError(c, err)
		return
	}

	h.setRefreshCookie(c, newRefreshToken)
	httpkit.OK(c, resp)
}

func (h *Handler) Logout(c *gin.Context) {
	rawToken, _ := c.Cookie(h.cfg.GetRefreshCookieName())
	if err := h.svc.Logout(c.Request.Context(), rawToken); httpkit.HandleError(c, err) {
		return
	}

	h.clearRefreshCookie(c)
	c.Status(http.StatusNoContent)
}

// LogoutAll ends every session of the calling user, including the one
// behind this request.
func (h *Handler) LogoutAll(c *gin.Context) {
	actor := httpkit.MustGetIdentity(c)
	if actor == nil {
		return
	}

	if err := h.svc.LogoutAll(c.Request.Context(), actor.UserID()); httpkit.HandleError(c, err) {
		return
	}

	h.clearRefreshCookie(c)
	c.Status(http.StatusNoContent)
}

func (h *Handler) Me(c *gin.Context) {
	actor := httpkit.MustGetIdentity(c)
	if !actor.IsAuthenticated() {
		httpkit.Error(c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	resp, err := h.svc.Me(c.Request.Context(), actor.UserID())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, resp)
}

func (h *Handler) setRefreshCookie(c *gin.Context, value string) {
	maxAge := int(h.cfg.GetRefreshTokenTTL() / time.Second)
	c.SetSameSite(h.cfg.GetRefreshCookieSameSite())
	c.SetCookie(
		h.cfg.GetRefreshCookieName(),
		value,
		maxAge,
		h.cfg.GetRefreshCookiePath(),
		h.cfg.GetRefreshCookieDomain(),
		h.cfg.GetRefreshCookieSecure(),
		true,
	)
}

func (h *Handler) clearRefreshCookie(c *gin.Context) {
	c.SetSameSite(h.cfg.GetRefreshCookieSameSite())
	c.SetCookie(
		h.cfg.GetRefreshCookieName(),
		"",
		-1,
		h.cfg.GetRefreshCookiePath(),
		h.cfg.GetRefreshCookieDomain(),
		h.cfg.GetRefreshCookieSecure(),
		true,
	)
}
