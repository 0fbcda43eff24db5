package communication

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"MemberPortal/internal/apperrors"
	"MemberPortal/internal/auth"
)

type CommunicationHandler struct {
	service *Service
	fanout  *Fanout
	stats   *StatsService
}

func NewCommunicationHandler(service *Service, fanout *Fanout, stats *StatsService) *CommunicationHandler {
	return &CommunicationHandler{service: service, fanout: fanout, stats: stats}
}

func actorFromContext(c echo.Context) (Actor, error) {
	claims, ok := c.Get("user").(*auth.JWTClaims)
	if !ok || claims == nil {
		return Actor{}, apperrors.Unauthorized("missing user claims")
	}
	id, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return Actor{}, apperrors.Unauthorized("invalid token subject")
	}
	return Actor{ID: id, Name: claims.Name, Role: claims.Role}, nil
}

func pathID(c echo.Context) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return primitive.NilObjectID, apperrors.Validation("invalid communication id")
	}
	return id, nil
}

func fail(c echo.Context, err error) error {
	return c.JSON(apperrors.HTTPStatus(err), map[string]string{"error": err.Error()})
}

func (h *CommunicationHandler) Create(c echo.Context) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": err.Error()})
	}

	var req CreateCommunicationRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}

	comm, err := h.service.Create(c.Request().Context(), actor, req)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, comm)
}

func (h *CommunicationHandler) List(c echo.Context) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": err.Error()})
	}

	comms, err := h.service.ListOwn(c.Request().Context(), actor)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, comms)
}

func (h *CommunicationHandler) ListAdmin(c echo.Context) error {
	comms, err := h.service.ListAll(c.Request().Context())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, comms)
}

func (h *CommunicationHandler) Get(c echo.Context) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": err.Error()})
	}
	id, err := pathID(c)
	if err != nil {
		return fail(c, err)
	}

	comm, err := h.service.Get(c.Request().Context(), actor, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, comm)
}

func (h *CommunicationHandler) Update(c echo.Context) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": err.Error()})
	}
	id, err := pathID(c)
	if err != nil {
		return fail(c, err)
	}

	var req UpdateCommunicationRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}

	comm, err := h.service.Update(c.Request().Context(), actor, id, req)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, comm)
}

func (h *CommunicationHandler) Delete(c echo.Context) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": err.Error()})
	}
	id, err := pathID(c)
	if err != nil {
		return fail(c, err)
	}

	if err := h.service.Delete(c.Request().Context(), actor, id); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Communication deleted"})
}

func (h *CommunicationHandler) Send(c echo.Context) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": err.Error()})
	}
	id, err := pathID(c)
	if err != nil {
		return fail(c, err)
	}

	comm, err := h.fanout.Send(c.Request().Context(), actor, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, comm)
}

func (h *CommunicationHandler) Schedule(c echo.Context) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": err.Error()})
	}
	id, err := pathID(c)
	if err != nil {
		return fail(c, err)
	}

	var req ScheduleRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}

	comm, err := h.fanout.Schedule(c.Request().Context(), actor, id, req.ScheduledDate)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, comm)
}

func (h *CommunicationHandler) Recipients(c echo.Context) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": err.Error()})
	}
	id, err := pathID(c)
	if err != nil {
		return fail(c, err)
	}

	views, err := h.service.ListRecipients(c.Request().Context(), actor, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, views)
}

func (h *CommunicationHandler) Stats(c echo.Context) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": err.Error()})
	}
	id, err := pathID(c)
	if err != nil {
		return fail(c, err)
	}

	stats, err := h.stats.ForCommunication(c.Request().Context(), actor, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}

type RebuildNotificationsRequest struct {
	CommunicationID string `json:"communicationId"`
}

// RebuildNotifications is the elevated-role repair trigger: it re-runs the
// notification-ledger half of fan-out for one communication.
func (h *CommunicationHandler) RebuildNotifications(c echo.Context) error {
	var req RebuildNotificationsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	id, err := primitive.ObjectIDFromHex(req.CommunicationID)
	if err != nil {
		return fail(c, apperrors.Validation("invalid communication id"))
	}

	count, err := h.fanout.RebuildNotifications(c.Request().Context(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"message": "Notifications rebuilt",
		"created": count,
	})
}

func (h *CommunicationHandler) FleetStats(c echo.Context) error {
	stats, err := h.stats.Fleet(c.Request().Context())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}
