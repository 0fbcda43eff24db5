package notification

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"MemberPortal/internal/apperrors"
	"MemberPortal/internal/auth"
)

type NotificationHandler struct {
	service *NotificationService
}

func NewNotificationHandler(service *NotificationService) *NotificationHandler {
	return &NotificationHandler{service: service}
}

func ownerID(c echo.Context) (primitive.ObjectID, error) {
	claims, ok := c.Get("user").(*auth.JWTClaims)
	if !ok || claims == nil {
		return primitive.NilObjectID, apperrors.Unauthorized("missing user claims")
	}
	id, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return primitive.NilObjectID, apperrors.Unauthorized("invalid token subject")
	}
	return id, nil
}

func (h *NotificationHandler) List(c echo.Context) error {
	userID, err := ownerID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": err.Error()})
	}

	notifications, err := h.service.List(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(apperrors.HTTPStatus(err), map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, notifications)
}

func (h *NotificationHandler) Unread(c echo.Context) error {
	userID, err := ownerID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": err.Error()})
	}

	notifications, err := h.service.Unread(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(apperrors.HTTPStatus(err), map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, notifications)
}

func (h *NotificationHandler) MarkRead(c echo.Context) error {
	userID, err := ownerID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": err.Error()})
	}
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid notification id"})
	}

	if err := h.service.MarkRead(c.Request().Context(), userID, id); err != nil {
		return c.JSON(apperrors.HTTPStatus(err), map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Notification marked as read"})
}

func (h *NotificationHandler) MarkDisplayed(c echo.Context) error {
	userID, err := ownerID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": err.Error()})
	}
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid notification id"})
	}

	if err := h.service.MarkDisplayed(c.Request().Context(), userID, id); err != nil {
		return c.JSON(apperrors.HTTPStatus(err), map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Notification marked as displayed"})
}

func (h *NotificationHandler) MarkAllRead(c echo.Context) error {
	userID, err := ownerID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": err.Error()})
	}

	count, err := h.service.MarkAllRead(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(apperrors.HTTPStatus(err), map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "All notifications marked as read",
		"updated": count,
	})
}

func (h *NotificationHandler) Delete(c echo.Context) error {
	userID, err := ownerID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": err.Error()})
	}
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid notification id"})
	}

	if err := h.service.Delete(c.Request().Context(), userID, id); err != nil {
		return c.JSON(apperrors.HTTPStatus(err), map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Notification deleted"})
}
