package model

import "time"

// 成员状态机：none -> pending -> {approved, denied}；approved -> {banned, kicked}；banned/kicked -> approved
const (
	MemberStatusPending  = "pending"
	MemberStatusApproved = "approved"
	MemberStatusDenied   = "denied"
	MemberStatusBanned   = "banned"
	MemberStatusKicked   = "kicked"
)

// ChannelMembership 每个 (user, channel) 至多一行；ban 与 kick 字段互斥，写入一方必须清空另一方
type ChannelMembership struct {
	ID                uint64     `gorm:"primaryKey"`
	UserID            uint64     `gorm:"not null;index;uniqueIndex:uk_user_channel" json:"user_id"`
	ChannelID         uint64     `gorm:"not null;index;uniqueIndex:uk_user_channel" json:"channel_id"`
	Status            string     `gorm:"size:16;not null;default:pending;index" json:"status"`
	LastReadAt        *time.Time `json:"last_read_at"`
	LastReadMessageID uint64     `gorm:"not null;default:0" json:"last_read_message_id"`

	// 封禁元数据
	BanExpiresAt *time.Time `json:"ban_expires_at"`
	BanReason    string     `gorm:"size:255" json:"ban_reason,omitempty"`
	BannedBy     uint64     `gorm:"not null;default:0" json:"banned_by,omitempty"`

	// 踢出元数据
	KickedAt *time.Time `json:"kicked_at"`
	KickedBy uint64     `gorm:"not null;default:0" json:"kicked_by,omitempty"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (ChannelMembership) TableName() string { return "channel_memberships" }

// BanActive 惰性过期：状态仍是 banned，但过期时间已过则视为未封禁（不回写）
func (m *ChannelMembership) BanActive(now time.Time) bool {
	if m.Status != MemberStatusBanned {
		return false
	}
	if m.BanExpiresAt == nil {
		return true
	}
	return m.BanExpiresAt.After(now)
}

// VisibleAt 频道列表可见性：有效封禁或被踢出时隐藏
func (m *ChannelMembership) VisibleAt(now time.Time) bool {
	if m.Status == MemberStatusKicked {
		return false
	}
	return !m.BanActive(now)
}
