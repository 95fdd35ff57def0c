package service

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrChannelNotFound  = errors.New("channel not found")
	ErrChannelInactive  = errors.New("channel inactive")
	ErrNotParentChannel = errors.New("channel has a parent and cannot be operated as a root")
	ErrMessageNotFound  = errors.New("message not found")
	ErrPendingNotFound  = errors.New("pending join request not found")
	ErrNotMember        = errors.New("not an approved member")
	ErrNoPermission     = errors.New("no permission")
	ErrEmptyContent     = errors.New("content required")
	ErrKicked           = errors.New("kicked from channel")
)

// BannedError 403 响应需要携带封禁上下文（过期时间、操作者）
type BannedError struct {
	ChannelID uint64
	ExpiresAt *time.Time
	Reason    string
	BannedBy  uint64
}

func (e *BannedError) Error() string {
	if e.ExpiresAt != nil {
		return fmt.Sprintf("banned until %s", e.ExpiresAt.Format(time.RFC3339))
	}
	return "banned"
}

// RateLimitedError 超限时带上重试等待时间
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}
