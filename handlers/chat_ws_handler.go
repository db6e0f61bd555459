package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"supportdesk/models"
	"supportdesk/realtime"
	"supportdesk/services"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// socketClient is one WebSocket connection bridged onto a hub
// subscription. Events flow subscription -> send -> socket; inbound
// frames are dispatched back into the services.
type socketClient struct {
	id     string
	conn   *websocket.Conn
	sub    *realtime.Subscription
	send   chan map[string]interface{}
	ctx    context.Context
	cancel context.CancelFunc
}

type ChatSocketHandler struct {
	hub           *realtime.Hub
	roomService   *services.RoomService
	cursorService *services.CursorService
}

func NewChatSocketHandler(hub *realtime.Hub, roomService *services.RoomService, cursorService *services.CursorService) *ChatSocketHandler {
	return &ChatSocketHandler{
		hub:           hub,
		roomService:   roomService,
		cursorService: cursorService,
	}
}

// HandleRoomSocket streams one room's timeline. Both the widget and the
// console use it; the attendant profile in the context decides which
// side inbound messages are attributed to. The widget route is
// unauthenticated and names its tenant in the query string.
func (h *ChatSocketHandler) HandleRoomSocket(c echo.Context) error {
	tenantID, ok := c.Get("tenant_id").(uint)
	if !ok {
		v, err := strconv.ParseUint(c.QueryParam("tenant_id"), 10, 64)
		if err != nil || v == 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "tenant_id is required"})
		}
		tenantID = uint(v)
	}
	roomID, ok := paramID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid room ID"})
	}

	room, err := h.roomService.GetRoom(c.Request().Context(), tenantID, roomID)
	if err != nil {
		return jsonError(c, err)
	}

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	client := &socketClient{
		id:     uuid.New().String(),
		conn:   ws,
		sub:    h.hub.SubscribeRoom(roomID),
		send:   make(chan map[string]interface{}, 256),
		ctx:    ctx,
		cancel: cancel,
	}

	// Snapshot first, then live events. Anything published between the
	// snapshot read and the subscription is re-sent, never lost.
	messages, err := h.roomService.ListMessages(ctx, tenantID, roomID, attendantIsSet(c), 50, 0)
	if err != nil {
		messages = []models.ChatMessage{}
	}
	client.send <- map[string]interface{}{
		"type": "init",
		"payload": map[string]interface{}{
			"room":     room,
			"messages": messages,
		},
	}

	go client.forward()
	go client.writePump()
	h.readRoomPump(c, client, tenantID, roomID)
	return nil
}

// HandleConsoleSocket streams the tenant aggregate channel backing the
// queue and room-list views. Attendants only.
func (h *ChatSocketHandler) HandleConsoleSocket(c echo.Context) error {
	tenantID := c.Get("tenant_id").(uint)
	attendant, ok := attendantFromContext(c)
	if !ok {
		return c.JSON(http.StatusForbidden, map[string]string{"error": "attendant profile required"})
	}

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	client := &socketClient{
		id:     uuid.New().String(),
		conn:   ws,
		sub:    h.hub.SubscribeTenant(tenantID),
		send:   make(chan map[string]interface{}, 256),
		ctx:    ctx,
		cancel: cancel,
	}

	summaries, err := h.cursorService.RoomList(ctx, tenantID, attendant.ID)
	if err != nil {
		summaries = []services.RoomSummary{}
	}
	client.send <- map[string]interface{}{
		"type": "init",
		"payload": map[string]interface{}{
			"rooms": summaries,
		},
	}

	go client.forward()
	go client.writePump()
	h.readConsolePump(client)
	return nil
}

func attendantIsSet(c echo.Context) bool {
	_, ok := attendantFromContext(c)
	return ok
}

// forward moves hub events onto the send queue. When the subscription
// channel closes the hub has dropped us for falling behind; the client
// gets one resync frame and the connection is torn down so it refetches
// from the store.
func (cl *socketClient) forward() {
	for {
		select {
		case <-cl.ctx.Done():
			return
		case ev, ok := <-cl.sub.Events():
			if !ok {
				select {
				case cl.send <- map[string]interface{}{"type": "resync"}:
				default:
				}
				cl.cancel()
				return
			}
			frame := map[string]interface{}{
				"type":    string(ev.Type),
				"payload": ev,
			}
			select {
			case cl.send <- frame:
			case <-cl.ctx.Done():
				return
			}
		}
	}
}

func (h *ChatSocketHandler) readRoomPump(c echo.Context, client *socketClient, tenantID, roomID uint) {
	defer client.teardown()

	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	attendant, isAttendant := attendantFromContext(c)

	for {
		var frame map[string]interface{}
		if err := client.conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warnf("websocket read: %v", err)
			}
			return
		}

		frameType, _ := frame["type"].(string)
		payload, _ := frame["payload"].(map[string]interface{})

		switch frameType {
		case "message":
			content, _ := payload["content"].(string)
			in := services.SendMessageInput{
				TenantID:   tenantID,
				RoomID:     roomID,
				SenderType: models.SenderVisitor,
				Content:    content,
			}
			if isAttendant {
				id := attendant.ID
				in.SenderType = models.SenderAttendant
				in.SenderID = &id
				internal, _ := payload["is_internal"].(bool)
				in.IsInternal = internal
			}
			if _, err := h.roomService.SendMessage(client.ctx, in); err != nil {
				client.sendError(err)
			}
		case "mark_read":
			if !isAttendant {
				continue
			}
			if err := h.cursorService.MarkRead(client.ctx, tenantID, roomID, attendant.ID); err != nil {
				client.sendError(err)
			}
		}
	}
}

// readConsolePump only keeps the connection alive; the console mutates
// through the REST endpoints and listens here.
func (h *ChatSocketHandler) readConsolePump(client *socketClient) {
	defer client.teardown()

	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warnf("websocket read: %v", err)
			}
			return
		}
	}
}

func (cl *socketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		cl.conn.Close()
	}()

	for {
		select {
		case <-cl.ctx.Done():
			cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			cl.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case frame := <-cl.send:
			cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteJSON(frame); err != nil {
				cl.cancel()
				return
			}

		case <-ticker.C:
			cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				cl.cancel()
				return
			}
		}
	}
}

func (cl *socketClient) sendError(err error) {
	select {
	case cl.send <- map[string]interface{}{
		"type":    "error",
		"payload": map[string]interface{}{"error": err.Error()},
	}:
	default:
	}
}

func (cl *socketClient) teardown() {
	cl.cancel()
	cl.sub.Close()
	cl.conn.Close()
}
