package router

import (
	"Community_Channels/internal/handler"
	"Community_Channels/internal/middleware"
	"Community_Channels/internal/ws"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Channel    *handler.ChannelHandler
	Message    *handler.MessageHandler
	Membership *handler.MembershipHandler
	Moderation *handler.ModerationHandler
	WS         *ws.Handler
}

func InitRouter(h Handlers) *gin.Engine {
	r := gin.Default()

	// 实时连接（token 走 query 参数）
	r.GET("/ws", h.WS.Serve)

	api := r.Group("/api")
	api.Use(middleware.AuthMiddleware())

	// 频道与成员
	channelGroup := api.Group("/channels")
	{
		channelGroup.GET("", h.Channel.List)
		channelGroup.POST("/:id/join", h.Channel.Join)
		channelGroup.DELETE("/:id/leave", h.Channel.Leave)

		// 消息
		channelGroup.GET("/:id/messages", h.Message.Page)
		channelGroup.POST("/:id/messages", h.Message.Post)
		channelGroup.DELETE("/:id/messages/:msgId", h.Message.Delete)
		channelGroup.POST("/:id/mark-read", h.Message.MarkRead)
		channelGroup.GET("/:id/unread-count", h.Message.UnreadCount)
		channelGroup.GET("/unread-counts", h.Message.UnreadCounts)

		// 审批（管理端）
		channelGroup.GET("/join-requests", h.Membership.ListPending)
		channelGroup.POST("/join-requests/:user/:channel/accept", h.Membership.Accept)
		channelGroup.POST("/join-requests/:user/:channel/reject", h.Membership.Reject)
		channelGroup.POST("/join-requests/:user/accept-all", h.Membership.AcceptAll)
		channelGroup.POST("/join-requests/:user/reject-all", h.Membership.RejectAll)

		// 管控：封禁/踢出/解禁以父频道为根级联
		channelGroup.POST("/:id/ban", h.Moderation.Ban)
		channelGroup.POST("/:id/unban", h.Moderation.Unban)
	}

	api.GET("/user-channel-status", h.Channel.Status)

	return r
}
