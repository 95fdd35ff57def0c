package handler

import (
	"net/http"
	"strconv"

	"Community_Channels/internal/middleware"
	"Community_Channels/internal/service"

	"github.com/gin-gonic/gin"
)

type ChannelHandler struct {
	memberships *service.MembershipService
}

func NewChannelHandler(memberships *service.MembershipService) *ChannelHandler {
	return &ChannelHandler{memberships: memberships}
}

func parseID(c *gin.Context, name string) (uint64, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || v == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid " + name})
		return 0, false
	}
	return v, true
}

// List 分组 + 按当前用户可见性过滤
func (h *ChannelHandler) List(c *gin.Context) {
	user := middleware.CurrentIdentity(c)
	groups, err := h.memberships.VisibleChannels(user.ID)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"groups": groups})
}

// Join 对父频道发起加入申请，父与活跃子频道各建一行 pending
func (h *ChannelHandler) Join(c *gin.Context) {
	user := middleware.CurrentIdentity(c)
	channelID, ok := parseID(c, "id")
	if !ok {
		return
	}

	created, err := h.memberships.RequestJoin(c.Request.Context(), user.ID, channelID)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requested_channels": created})
}

// Leave 删行退出
func (h *ChannelHandler) Leave(c *gin.Context) {
	user := middleware.CurrentIdentity(c)
	channelID, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.memberships.Leave(user.ID, channelID); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "ok"})
}

// Status 当前用户在各频道的成员状态
func (h *ChannelHandler) Status(c *gin.Context) {
	user := middleware.CurrentIdentity(c)
	statuses, err := h.memberships.UserChannelStatus(user.ID)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"statuses": statuses})
}
