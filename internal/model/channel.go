package model

import "time"

// 频道类型
const (
	ChannelTypeInfo         = "info"
	ChannelTypeAnnouncement = "announcement"
	ChannelTypeShowcase     = "showcase"
	ChannelTypeChat         = "chat"
)

// 发言权限
const (
	CanMessageEveryone   = "everyone"
	CanMessageModerators = "moderators"
	CanMessageAdmins     = "admins"
)

// Channel 层级最多两层：子频道的 ParentChannelID 指向父频道，父频道本身不可再有父级
type Channel struct {
	ID              uint64   `gorm:"primaryKey" json:"id"`
	Name            string   `gorm:"uniqueIndex;size:64;not null" json:"name"`
	Category        string   `gorm:"size:64;index" json:"category"`
	Type            string   `gorm:"size:16;not null;default:chat" json:"type"`
	ParentChannelID *uint64  `gorm:"index" json:"parent_channel_id"`
	IsActive        bool     `gorm:"not null;default:true;index" json:"is_active"`
	Moderators      []uint64 `gorm:"serializer:json" json:"moderators"`
	CanMessage      string   `gorm:"size:16;not null;default:everyone" json:"can_message"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (Channel) TableName() string { return "channels" }

// IsModerator 频道版主判断
func (c *Channel) IsModerator(userID uint64) bool {
	for _, id := range c.Moderators {
		if id == userID {
			return true
		}
	}
	return false
}

// IsParent 只有无父级的频道才能作为级联操作的根
func (c *Channel) IsParent() bool {
	return c.ParentChannelID == nil
}
