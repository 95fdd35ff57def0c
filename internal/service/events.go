package service

// 服务端推送事件名
const (
	EventNewMessage           = "new_message"
	EventMessageDeleted       = "message_deleted"
	EventChannelJoined        = "channel_joined"
	EventChannelHidden        = "channel_hidden"
	EventChannelVisible       = "channel_visible"
	EventChannelLeft          = "channel_left"
	EventUserTyping           = "user_typing"
	EventError                = "error"
	EventNotificationReceived = "notification_received"
)

// Broadcaster 实时扇出的出口；由 ws.Hub 实现。
// 服务层只管发事件，连接管理与投递失败都留在 hub 内部。
type Broadcaster interface {
	ToChannel(channelID uint64, event string, data any)
	ToChannelExcept(channelID, exceptUserID uint64, event string, data any)
	ToUser(userID uint64, event string, data any)
}

// NopBroadcaster hub 未启动（或测试）时的空实现
type NopBroadcaster struct{}

func (NopBroadcaster) ToChannel(uint64, string, any)               {}
func (NopBroadcaster) ToChannelExcept(uint64, uint64, string, any) {}
func (NopBroadcaster) ToUser(uint64, string, any)                  {}

// Identity 外部认证层解析出的调用者身份
type Identity struct {
	ID       uint64
	Username string
	Role     int
}
