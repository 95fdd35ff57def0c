package ws

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"Community_Channels/internal/service"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// 客户端上行事件
const (
	clientJoinChannel  = "join_channel"
	clientLeaveChannel = "leave_channel"
	clientSendMessage  = "send_message"
	clientTyping       = "typing"
)

// ClientEvent 上行消息格式
type ClientEvent struct {
	Event     string   `json:"event"`
	ChannelID uint64   `json:"channel_id"`
	Content   string   `json:"content,omitempty"`
	ReplyToID *uint64  `json:"reply_to_id,omitempty"`
	Mentions  []uint64 `json:"mentions,omitempty"`
}

type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	UserID   uint64
	Username string
	Role     int

	// 已加入的频道房间；只在持有 hub.mu 时读写
	rooms map[uint64]bool

	messages    *service.MessageService
	memberships *service.MembershipService
}

// sendEvent 单连接直发（ack / error 用）
func (c *Client) sendEvent(event string, data any) {
	payload := c.hub.encode(event, data)
	if payload != nil {
		c.hub.push(c, payload)
	}
}

// sendError 失败不跨连接抛出：统一转成 error 事件
func (c *Client) sendError(message string, extra map[string]any) {
	data := map[string]any{"success": false, "message": message}
	for k, v := range extra {
		data[k] = v
	}
	c.sendEvent(service.EventError, data)
}

// ReadPump 逐条读取并分发上行事件；任何处理失败都只回 error 事件
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		var ev ClientEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			c.sendError("invalid event payload", nil)
			continue
		}
		c.dispatch(&ev)
	}
}

func (c *Client) dispatch(ev *ClientEvent) {
	switch ev.Event {
	case clientJoinChannel:
		c.onJoinChannel(ev.ChannelID)
	case clientLeaveChannel:
		c.hub.LeaveRoom(ev.ChannelID, c)
		c.sendEvent(service.EventChannelLeft, map[string]any{"channel_id": ev.ChannelID})
	case clientSendMessage:
		c.onSendMessage(ev)
	case clientTyping:
		c.onTyping(ev.ChannelID)
	default:
		c.sendError("unknown event", map[string]any{"event": ev.Event})
	}
}

// onJoinChannel 有效封禁拒绝进房
func (c *Client) onJoinChannel(channelID uint64) {
	if err := c.memberships.CanJoinRoom(c.UserID, channelID); err != nil {
		var be *service.BannedError
		if errors.As(err, &be) {
			c.sendError("banned from channel", map[string]any{
				"channel_id":     channelID,
				"ban_expires_at": be.ExpiresAt,
			})
			return
		}
		c.sendError(err.Error(), map[string]any{"channel_id": channelID})
		return
	}
	c.hub.JoinRoom(channelID, c)
	c.sendEvent(service.EventChannelJoined, map[string]any{"channel_id": channelID})
}

// onSendMessage 与 REST 发消息同一条校验链；房间广播由服务层触发，
// 这里再单独给发送者一个确认
func (c *Client) onSendMessage(ev *ClientEvent) {
	user := service.Identity{ID: c.UserID, Username: c.Username, Role: c.Role}
	msg, err := c.messages.Post(context.Background(), user, ev.ChannelID, ev.Content, ev.ReplyToID, ev.Mentions)
	if err != nil {
		var be *service.BannedError
		if errors.As(err, &be) {
			c.sendError("banned from channel", map[string]any{
				"channel_id":     ev.ChannelID,
				"ban_expires_at": be.ExpiresAt,
			})
			return
		}
		c.sendError(err.Error(), map[string]any{"channel_id": ev.ChannelID})
		return
	}
	c.sendEvent("message_sent", map[string]any{"message_id": msg.ID, "channel_id": ev.ChannelID})
}

// onTyping 短暂状态，不落库；限流淘汰的直接丢弃
func (c *Client) onTyping(channelID uint64) {
	if !c.messages.TypingAllowed(context.Background(), c.UserID) {
		return
	}
	c.hub.ToChannelExcept(channelID, c.UserID, service.EventUserTyping, map[string]any{
		"channel_id": channelID,
		"user_id":    c.UserID,
		"username":   c.Username,
	})
}

// WritePump 出站队列 + 心跳
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
