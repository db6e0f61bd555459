package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"supportdesk/models"
	rediscache "supportdesk/redis"
	"supportdesk/services"
)

type QueueHandler struct {
	queueService *services.QueueService
	presence     *rediscache.RedisClient // optional
}

func NewQueueHandler(queueService *services.QueueService, presence *rediscache.RedisClient) *QueueHandler {
	return &QueueHandler{queueService: queueService, presence: presence}
}

func (h *QueueHandler) Queue(c echo.Context) error {
	tenantID := c.Get("tenant_id").(uint)

	var filter services.QueueFilter
	if c.QueryParam("unassigned") == "true" {
		filter.Unassigned = true
	}
	if v := c.QueryParam("attendant_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid attendant ID"})
		}
		attendantID := uint(id)
		filter.AttendantID = &attendantID
	}

	rooms, err := h.queueService.Queue(c.Request().Context(), tenantID, filter)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"rooms": rooms,
		"total": len(rooms),
	})
}

func (h *QueueHandler) Claim(c echo.Context) error {
	tenantID := c.Get("tenant_id").(uint)
	roomID, ok := paramID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid room ID"})
	}
	attendant, ok := attendantFromContext(c)
	if !ok {
		return c.JSON(http.StatusForbidden, map[string]string{"error": "attendant profile required"})
	}

	room, err := h.queueService.Claim(c.Request().Context(), tenantID, roomID, attendant.ID)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, room)
}

func (h *QueueHandler) Transfer(c echo.Context) error {
	tenantID := c.Get("tenant_id").(uint)
	roomID, ok := paramID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid room ID"})
	}
	attendant, ok := attendantFromContext(c)
	if !ok {
		return c.JSON(http.StatusForbidden, map[string]string{"error": "attendant profile required"})
	}

	var req struct {
		ToAttendantID uint `json:"to_attendant_id"`
	}
	if err := c.Bind(&req); err != nil || req.ToAttendantID == 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	room, err := h.queueService.Transfer(c.Request().Context(), tenantID, roomID, attendant.ID, req.ToAttendantID)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, room)
}

func (h *QueueHandler) AutoAssign(c echo.Context) error {
	tenantID := c.Get("tenant_id").(uint)
	roomID, ok := paramID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid room ID"})
	}

	room, err := h.queueService.AutoAssign(c.Request().Context(), tenantID, roomID)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, room)
}

// Load returns the capacity display (active/max). It is derived on every
// fetch; there is nothing here an attendant could overwrite.
func (h *QueueHandler) Load(c echo.Context) error {
	tenantID := c.Get("tenant_id").(uint)
	attendantID, ok := paramID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid attendant ID"})
	}

	load, err := h.queueService.AttendantLoad(c.Request().Context(), tenantID, attendantID)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, load)
}

func (h *QueueHandler) SetPresence(c echo.Context) error {
	tenantID := c.Get("tenant_id").(uint)
	attendant, ok := attendantFromContext(c)
	if !ok {
		return c.JSON(http.StatusForbidden, map[string]string{"error": "attendant profile required"})
	}

	var req struct {
		Status models.AttendantStatus `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	if err := h.queueService.SetPresence(c.Request().Context(), tenantID, attendant.ID, req.Status); err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": string(req.Status)})
}

// OnlineAttendants reads the Redis presence cache for the workspace
// header; the database rows stay authoritative.
func (h *QueueHandler) OnlineAttendants(c echo.Context) error {
	tenantID := c.Get("tenant_id").(uint)
	if h.presence == nil {
		return c.JSON(http.StatusOK, map[string]interface{}{"attendants": []struct{}{}})
	}

	presences, err := h.presence.GetAttendantPresence(c.Request().Context(), tenantID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to fetch presence"})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"attendants": presences,
		"count":      len(presences),
	})
}
