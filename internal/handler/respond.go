package handler

import (
	"errors"
	"net/http"

	"Community_Channels/internal/service"

	"github.com/gin-gonic/gin"
)

// respondErr 服务层错误到状态码的统一映射。
// 403 带封禁上下文（过期时间、操作者），429 带重试等待。
func respondErr(c *gin.Context, err error) {
	var banned *service.BannedError
	var limited *service.RateLimitedError

	switch {
	case errors.As(err, &banned):
		c.JSON(http.StatusForbidden, gin.H{
			"msg":            "banned",
			"channel_id":     banned.ChannelID,
			"ban_expires_at": banned.ExpiresAt,
			"reason":         banned.Reason,
			"banned_by":      banned.BannedBy,
		})
	case errors.As(err, &limited):
		c.JSON(http.StatusTooManyRequests, gin.H{
			"msg":         "rate limited",
			"retry_after": limited.RetryAfter.Seconds(),
		})
	case errors.Is(err, service.ErrNotMember),
		errors.Is(err, service.ErrNoPermission),
		errors.Is(err, service.ErrKicked):
		c.JSON(http.StatusForbidden, gin.H{"msg": err.Error()})
	case errors.Is(err, service.ErrChannelNotFound),
		errors.Is(err, service.ErrMessageNotFound),
		errors.Is(err, service.ErrPendingNotFound):
		c.JSON(http.StatusNotFound, gin.H{"msg": err.Error()})
	case errors.Is(err, service.ErrEmptyContent),
		errors.Is(err, service.ErrChannelInactive),
		errors.Is(err, service.ErrNotParentChannel):
		c.JSON(http.StatusBadRequest, gin.H{"msg": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"msg": "internal error"})
	}
}
