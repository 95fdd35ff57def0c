package handler

import (
	"net/http"
	"strconv"
	"time"

	"Community_Channels/internal/middleware"
	"Community_Channels/internal/service"

	"github.com/gin-gonic/gin"
)

type MessageHandler struct {
	messages *service.MessageService
}

type PostMessageReq struct {
	Content   string   `json:"content"`
	ReplyToID *uint64  `json:"reply_to_id"`
	Mentions  []uint64 `json:"mentions"`
}

func NewMessageHandler(messages *service.MessageService) *MessageHandler {
	return &MessageHandler{messages: messages}
}

// Page 游标分页：before 为上一批最旧消息的时间戳（毫秒）
func (h *MessageHandler) Page(c *gin.Context) {
	channelID, ok := parseID(c, "id")
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	var before time.Time
	if s := c.Query("before"); s != "" {
		ms, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid before"})
			return
		}
		before = time.UnixMilli(ms)
	}

	page, err := h.messages.Page(channelID, limit, before)
	if err != nil {
		respondErr(c, err)
		return
	}

	resp := gin.H{
		"messages": page.Messages,
		"has_more": page.HasMore,
	}
	if page.NextBefore != nil {
		resp["next_before"] = page.NextBefore.UnixMilli()
	}
	c.JSON(http.StatusOK, resp)
}

func (h *MessageHandler) Post(c *gin.Context) {
	user := middleware.CurrentIdentity(c)
	channelID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req PostMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid params"})
		return
	}

	msg, err := h.messages.Post(c.Request.Context(), user, channelID, req.Content, req.ReplyToID, req.Mentions)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

func (h *MessageHandler) Delete(c *gin.Context) {
	user := middleware.CurrentIdentity(c)
	channelID, ok := parseID(c, "id")
	if !ok {
		return
	}
	messageID, ok := parseID(c, "msgId")
	if !ok {
		return
	}

	if err := h.messages.Delete(user, channelID, messageID); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "deleted"})
}

func (h *MessageHandler) MarkRead(c *gin.Context) {
	user := middleware.CurrentIdentity(c)
	channelID, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.messages.MarkRead(user.ID, channelID); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "ok"})
}

func (h *MessageHandler) UnreadCount(c *gin.Context) {
	user := middleware.CurrentIdentity(c)
	channelID, ok := parseID(c, "id")
	if !ok {
		return
	}

	n, err := h.messages.UnreadCount(user.ID, channelID)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"channel_id": channelID, "unread": n})
}

// UnreadCounts 全部已加入频道的未读数
func (h *MessageHandler) UnreadCounts(c *gin.Context) {
	user := middleware.CurrentIdentity(c)
	counts, err := h.messages.UnreadCounts(user.ID)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"counts": counts})
}
