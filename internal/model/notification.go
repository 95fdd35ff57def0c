package model

import "time"

// 通知外发状态
const (
	NotifyOutboxPending = 0
	NotifyOutboxSent    = 1
	NotifyOutboxFailed  = 2
)

// NotificationRecord 由外部通知服务写入；本服务只负责把新插入的记录投递到实时连接。
// OutboxStatus/Retry 供投递器使用，与业务字段无关。
type NotificationRecord struct {
	ID         uint64     `gorm:"primaryKey" json:"id"`
	UserID     uint64     `gorm:"not null;index" json:"user_id"`
	Type       string     `gorm:"size:32;not null" json:"type"`
	Title      string     `gorm:"size:200;not null" json:"title"`
	Message    string     `gorm:"type:text" json:"message"`
	Priority   string     `gorm:"size:16;not null;default:normal" json:"priority"`
	Data       string     `gorm:"type:json" json:"data,omitempty"`
	IsRead     bool       `gorm:"not null;default:false" json:"is_read"`
	IsArchived bool       `gorm:"not null;default:false" json:"is_archived"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`

	OutboxStatus int8 `gorm:"not null;default:0;index" json:"-"`
	Retry        int  `gorm:"not null;default:0" json:"-"`
}

func (NotificationRecord) TableName() string { return "notifications" }
