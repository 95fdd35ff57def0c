package ws

import (
	"net/http"

	"Community_Channels/internal/pkg"
	"Community_Channels/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler 把升级后的连接挂进 hub
type Handler struct {
	hub         *Hub
	messages    *service.MessageService
	memberships *service.MembershipService
}

func NewHandler(hub *Hub, messages *service.MessageService, memberships *service.MembershipService) *Handler {
	return &Handler{hub: hub, messages: messages, memberships: memberships}
}

// Serve websocket 无法带 Authorization 头，token 走 query 参数
func (h *Handler) Serve(c *gin.Context) {
	token := c.Query("token")
	claims, err := pkg.ParseAccess(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"msg": "invalid or expired token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	client := &Client{
		hub:         h.hub,
		conn:        conn,
		send:        make(chan []byte, 256),
		UserID:      claims.UserID,
		Username:    claims.Username,
		Role:        claims.Role,
		rooms:       make(map[uint64]bool),
		messages:    h.messages,
		memberships: h.memberships,
	}

	h.hub.register <- client

	go client.WritePump()
	go client.ReadPump()
}
