package handler

import (
	"net/http"

	"Community_Channels/internal/middleware"
	"Community_Channels/internal/service"

	"github.com/gin-gonic/gin"
)

type ModerationHandler struct {
	moderation *service.ModerationService
}

// BanReq duration 为封禁天数；"kick" 表示踢出
type BanReq struct {
	UserID   uint64 `json:"user_id"`
	Duration any    `json:"duration"`
	Reason   string `json:"reason"`
}

type UnbanReq struct {
	UserID uint64 `json:"user_id"`
}

func NewModerationHandler(moderation *service.ModerationService) *ModerationHandler {
	return &ModerationHandler{moderation: moderation}
}

// Ban 父频道 + 活跃子频道一次事务内全部写入；任一失败整体回滚
func (h *ModerationHandler) Ban(c *gin.Context) {
	admin := middleware.CurrentIdentity(c)
	parentID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req BanReq
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid params"})
		return
	}

	var kick bool
	var days int
	switch v := req.Duration.(type) {
	case string:
		if v != "kick" {
			c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid duration"})
			return
		}
		kick = true
	case float64:
		days = int(v)
		if days <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid duration"})
			return
		}
	default:
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid duration"})
		return
	}

	channels, err := h.moderation.BanOrKick(admin, parentID, req.UserID, days, kick, req.Reason)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"channels": channels})
}

func (h *ModerationHandler) Unban(c *gin.Context) {
	admin := middleware.CurrentIdentity(c)
	parentID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req UnbanReq
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid params"})
		return
	}

	channels, err := h.moderation.Unban(admin, parentID, req.UserID)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"channels": channels})
}
