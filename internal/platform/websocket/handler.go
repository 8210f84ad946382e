package websocket

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/opdcare/opd/internal/platform/auth"
)

// Handler upgrades authenticated requests to live feed connections.
type Handler struct {
	hub      *Hub
	upgrader gorillawebsocket.Upgrader
}

// NewHandler accepts upgrades from the given browser origins. Requests without
// an Origin header are always accepted; "*" accepts any origin.
func NewHandler(hub *Hub, allowedOrigins []string) *Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &Handler{
		hub: hub,
		upgrader: gorillawebsocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed["*"] || allowed[origin]
			},
		},
	}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/pharmacy/live", h.Connect,
		auth.RequireRole(auth.RolePharmacist, auth.RoleDoctor, auth.RoleNurse))
}

// Connect subscribes the new client to the request's hospital scope. Further
// hospitals can be added with a subscribe message.
func (h *Handler) Connect(c echo.Context) error {
	p, err := auth.FromEcho(c)
	if err != nil {
		return err
	}
	hospitalID, err := auth.HospitalFor(c.Request().Context(), p, hospitalParam(c))
	if err != nil {
		if he := auth.ScopeError(err); he != nil {
			return he
		}
		return err
	}

	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// The upgrader has already written the error response.
		return nil
	}

	client := NewClient(p, ws)
	h.hub.Register(client)
	h.hub.Subscribe(client, []uuid.UUID{hospitalID})
	h.hub.SendTo(client, Event{Type: EventSubscribed, HospitalID: hospitalID, Timestamp: h.hub.now()})

	go h.writePump(client)
	go h.readPump(client)
	return nil
}

func hospitalParam(c echo.Context) uuid.UUID {
	id, err := uuid.Parse(c.QueryParam("hospitalId"))
	if err != nil {
		return uuid.Nil
	}
	return id
}

func (h *Handler) readPump(client *Client) {
	defer func() {
		h.hub.Unregister(client)
		client.conn.Close()
	}()

	for {
		_, message, err := client.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		h.hub.ProcessMessage(client, msg)
	}
}

func (h *Handler) writePump(client *Client) {
	defer client.conn.Close()

	for message := range client.Send {
		if err := client.conn.WriteMessage(gorillawebsocket.TextMessage, message); err != nil {
			return
		}
	}
}
