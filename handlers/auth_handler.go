package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"supportdesk/models"
	"supportdesk/services"
)

type AuthHandler struct {
	authService *services.AuthService
}

func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func (h *AuthHandler) Register(c echo.Context) error {
	var req struct {
		TenantID         uint   `json:"tenant_id"`
		Email            string `json:"email"`
		Username         string `json:"username"`
		Password         string `json:"password"`
		MaxConversations int    `json:"max_conversations"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "email and password are required"})
	}

	user, err := h.authService.Register(c.Request().Context(), req.TenantID, req.Email, req.Username, req.Password, req.MaxConversations)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to register"})
	}

	tokens, err := h.authService.GenerateTokens(user)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to generate tokens"})
	}
	return c.JSON(http.StatusCreated, tokens)
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	user, err := h.authService.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return jsonError(c, err)
	}

	tokens, err := h.authService.GenerateTokens(user)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to generate tokens"})
	}
	return c.JSON(http.StatusOK, tokens)
}

func (h *AuthHandler) GetCurrentUser(c echo.Context) error {
	user := c.Get("user").(*models.User)
	resp := map[string]interface{}{"user": user}
	if attendant, ok := c.Get("attendant").(*models.Attendant); ok {
		resp["attendant"] = attendant
	}
	return c.JSON(http.StatusOK, resp)
}
