package model

import "time"

// Message 仅软删字段可变；分页按 (created_at, id) 排序保证并列时顺序稳定
type Message struct {
	ID        uint64    `gorm:"primaryKey;index:idx_channel_time_id,priority:3,sort:desc" json:"id"`
	ChannelID uint64    `gorm:"not null;index:idx_channel_time_id,priority:1" json:"channel_id"`
	UserID    uint64    `gorm:"not null;index" json:"user_id"`
	Username  string    `gorm:"size:32;not null" json:"username"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	ReplyToID *uint64   `json:"reply_to_id,omitempty"`
	Mentions  []uint64  `gorm:"serializer:json" json:"mentions,omitempty"`
	CreatedAt time.Time `gorm:"index:idx_channel_time_id,priority:2,sort:desc" json:"created_at"`

	// 软删除：消息保留在流里，只打标记，游标不因删除而漂移
	IsDeleted bool       `gorm:"not null;default:false" json:"is_deleted"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
	DeletedBy uint64     `gorm:"not null;default:0" json:"deleted_by,omitempty"`
}

func (Message) TableName() string { return "messages" }
