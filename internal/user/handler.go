package user

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"NoticeBoard/internal/apperror"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Login(c echo.Context) error {
	var cred Credential
	if err := c.Bind(&cred); err != nil {
		return apperror.Validation("Invalid request")
	}
	token, err := h.service.Authenticate(c.Request().Context(), cred)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"token": token})
}

func (h *Handler) ListUsers(c echo.Context) error {
	users, err := h.service.List(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"success": true, "users": users})
}

func (h *Handler) GetUser(c echo.Context) error {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return apperror.Validation("Invalid user id")
	}
	u, err := h.service.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"success": true, "user": u})
}

func (h *Handler) UpdateUser(c echo.Context) error {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return apperror.Validation("Invalid user id")
	}
	var req UpdateRequest
	if err := c.Bind(&req); err != nil {
		return apperror.Validation("Invalid request")
	}
	u, err := h.service.Update(c.Request().Context(), id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"success": true, "user": u})
}

func (h *Handler) DeleteUser(c echo.Context) error {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return apperror.Validation("Invalid user id")
	}
	if err := h.service.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"success": true, "message": "User deleted successfully"})
}
