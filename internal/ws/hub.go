package ws

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// Envelope 统一的下行消息格式
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Hub 维护两类房间：频道房间（成员广播）与用户私有房间（定向推送）。
// 进程内单例，启动时构造注入，不做包级全局。
type Hub struct {
	mu sync.RWMutex

	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	clients map[*Client]bool
	rooms   map[uint64]map[*Client]bool // channelID -> clients
	users   map[uint64]map[*Client]bool // userID -> clients

	log *zap.SugaredLogger
}

func NewHub(log *zap.SugaredLogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[*Client]bool),
		rooms:      make(map[uint64]map[*Client]bool),
		users:      make(map[uint64]map[*Client]bool),
		log:        log,
	}
}

// Run 注册/注销循环，Stop 之后退出
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			// 每条连接自动进入本用户的私有房间
			if h.users[c.UserID] == nil {
				h.users[c.UserID] = make(map[*Client]bool)
			}
			h.users[c.UserID][c] = true
			h.mu.Unlock()

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				h.dropFromUser(c)
				for chID := range c.rooms {
					h.dropFromRoom(chID, c)
				}
				close(c.send)
			}
			h.mu.Unlock()

		case <-h.done:
			return
		}
	}
}

func (h *Hub) Stop() {
	close(h.done)
}

// 调用方需持有 h.mu
func (h *Hub) dropFromRoom(channelID uint64, c *Client) {
	if room, ok := h.rooms[channelID]; ok {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, channelID)
		}
	}
}

func (h *Hub) dropFromUser(c *Client) {
	if conns, ok := h.users[c.UserID]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.users, c.UserID)
		}
	}
}

// JoinRoom 准入校验由调用方（client 的 join_channel 分支）完成
func (h *Hub) JoinRoom(channelID uint64, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[channelID] == nil {
		h.rooms[channelID] = make(map[*Client]bool)
	}
	h.rooms[channelID][c] = true
	c.rooms[channelID] = true
}

func (h *Hub) LeaveRoom(channelID uint64, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropFromRoom(channelID, c)
	delete(c.rooms, channelID)
}

func (h *Hub) encode(event string, data any) []byte {
	b, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		h.log.Warnw("encode event failed", "event", event, "err", err)
		return nil
	}
	return b
}

// push 非阻塞投递：发不进去说明连接已经写满/半死，直接丢弃该连接
func (h *Hub) push(c *Client, payload []byte) {
	select {
	case c.send <- payload:
	default:
		h.log.Debugw("client send buffer full, dropping", "user", c.UserID)
	}
}

// ToChannel 频道房间广播
func (h *Hub) ToChannel(channelID uint64, event string, data any) {
	payload := h.encode(event, data)
	if payload == nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[channelID] {
		h.push(c, payload)
	}
}

// ToChannelExcept 广播但跳过某个用户（打字指示不用发给自己）
func (h *Hub) ToChannelExcept(channelID, exceptUserID uint64, event string, data any) {
	payload := h.encode(event, data)
	if payload == nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[channelID] {
		if c.UserID == exceptUserID {
			continue
		}
		h.push(c, payload)
	}
}

// ToUser 用户私有房间定向推送（该用户的全部连接）
func (h *Hub) ToUser(userID uint64, event string, data any) {
	payload := h.encode(event, data)
	if payload == nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.users[userID] {
		h.push(c, payload)
	}
}
