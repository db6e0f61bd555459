package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"supportdesk/models"
	"supportdesk/services"
)

type RoomHandler struct {
	roomService   *services.RoomService
	queueService  *services.QueueService
	cursorService *services.CursorService
	rulesService  *services.RulesService
	autoAssign    bool
}

func NewRoomHandler(roomService *services.RoomService, queueService *services.QueueService, cursorService *services.CursorService, rulesService *services.RulesService, autoAssign bool) *RoomHandler {
	return &RoomHandler{
		roomService:   roomService,
		queueService:  queueService,
		cursorService: cursorService,
		rulesService:  rulesService,
		autoAssign:    autoAssign,
	}
}

func paramID(c echo.Context, name string) (uint, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		return 0, false
	}
	return uint(v), true
}

func attendantFromContext(c echo.Context) (*models.Attendant, bool) {
	attendant, ok := c.Get("attendant").(*models.Attendant)
	return attendant, ok
}

// CreateRoom is the widget entry point: it creates the visitor identity on
// first load and opens a waiting conversation.
func (h *RoomHandler) CreateRoom(c echo.Context) error {
	var req struct {
		TenantID    uint   `json:"tenant_id"`
		VisitorID   uint   `json:"visitor_id"`
		DisplayName string `json:"display_name"`
		ContactID   *uint  `json:"contact_id"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	if req.TenantID == 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "tenant_id is required"})
	}

	room, err := h.roomService.CreateRoom(c.Request().Context(), services.CreateRoomInput{
		TenantID:    req.TenantID,
		VisitorID:   req.VisitorID,
		DisplayName: req.DisplayName,
		ContactID:   req.ContactID,
	})
	if err != nil {
		return jsonError(c, err)
	}

	// Best effort: the room stays queued when nobody has capacity.
	if h.autoAssign {
		if assigned, err := h.queueService.AutoAssign(c.Request().Context(), room.TenantID, room.ID); err == nil {
			room = assigned
		}
	}
	return c.JSON(http.StatusCreated, room)
}

func (h *RoomHandler) GetRoom(c echo.Context) error {
	tenantID := c.Get("tenant_id").(uint)
	roomID, ok := paramID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid room ID"})
	}

	room, err := h.roomService.GetRoom(c.Request().Context(), tenantID, roomID)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, room)
}

// SendMessage appends to a room's timeline. The sender type is derived
// from the authenticated identity: attendants post as themselves, the
// widget posts as the visitor.
func (h *RoomHandler) SendMessage(c echo.Context) error {
	tenantID := c.Get("tenant_id").(uint)
	roomID, ok := paramID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid room ID"})
	}

	var req struct {
		Content    string             `json:"content"`
		IsInternal bool               `json:"is_internal"`
		Attachment *models.Attachment `json:"attachment"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	in := services.SendMessageInput{
		TenantID:   tenantID,
		RoomID:     roomID,
		SenderType: models.SenderVisitor,
		Content:    req.Content,
		IsInternal: false,
		Attachment: req.Attachment,
	}
	if attendant, ok := attendantFromContext(c); ok {
		id := attendant.ID
		in.SenderType = models.SenderAttendant
		in.SenderID = &id
		in.IsInternal = req.IsInternal
	}

	msg, err := h.roomService.SendMessage(c.Request().Context(), in)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusCreated, msg)
}

func (h *RoomHandler) GetMessages(c echo.Context) error {
	tenantID := c.Get("tenant_id").(uint)
	roomID, ok := paramID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid room ID"})
	}

	offset := 0
	if v := c.QueryParam("offset"); v != "" {
		offset, _ = strconv.Atoi(v)
	}

	// Internal notes are staff-only.
	_, isAttendant := attendantFromContext(c)

	msgs, err := h.roomService.ListMessages(c.Request().Context(), tenantID, roomID, isAttendant, 50, offset)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, msgs)
}

func (h *RoomHandler) CloseRoom(c echo.Context) error {
	tenantID := c.Get("tenant_id").(uint)
	roomID, ok := paramID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid room ID"})
	}

	var req struct {
		ResolutionStatus models.ResolutionStatus `json:"resolution_status"`
		Note             string                  `json:"note"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	var attendantID *uint
	if attendant, ok := attendantFromContext(c); ok {
		id := attendant.ID
		attendantID = &id
	}

	room, err := h.roomService.CloseRoom(c.Request().Context(), tenantID, roomID, attendantID, req.ResolutionStatus, req.Note)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, room)
}

// SubmitCsat is visitor-facing and unauthenticated: the closure offer in
// the widget posts here with the tenant id it was issued for.
func (h *RoomHandler) SubmitCsat(c echo.Context) error {
	roomID, ok := paramID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid room ID"})
	}

	var req struct {
		TenantID uint   `json:"tenant_id"`
		Score    int    `json:"score"`
		Comment  string `json:"comment"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	room, err := h.roomService.SubmitCsat(c.Request().Context(), req.TenantID, roomID, req.Score, req.Comment)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, room)
}

func (h *RoomHandler) MarkRead(c echo.Context) error {
	tenantID := c.Get("tenant_id").(uint)
	roomID, ok := paramID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid room ID"})
	}
	attendant, ok := attendantFromContext(c)
	if !ok {
		return c.JSON(http.StatusForbidden, map[string]string{"error": "attendant profile required"})
	}

	if err := h.cursorService.MarkRead(c.Request().Context(), tenantID, roomID, attendant.ID); err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// RoomList is the console view: open rooms with unread counts, unread
// first, recomputed on every refresh.
func (h *RoomHandler) RoomList(c echo.Context) error {
	tenantID := c.Get("tenant_id").(uint)
	attendant, ok := attendantFromContext(c)
	if !ok {
		return c.JSON(http.StatusForbidden, map[string]string{"error": "attendant profile required"})
	}

	summaries, err := h.cursorService.RoomList(c.Request().Context(), tenantID, attendant.ID)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"rooms": summaries,
		"total": len(summaries),
	})
}

// OutsideHours backs the widget's "we are currently closed" banner.
func (h *RoomHandler) OutsideHours(c echo.Context) error {
	tenantID, ok := paramID(c, "tenantId")
	if !ok {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
	}

	outside, err := h.rulesService.OutsideHours(c.Request().Context(), tenantID)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"outside_hours": outside})
}
