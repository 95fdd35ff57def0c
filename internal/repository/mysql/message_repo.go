package mysql

import (
	"time"

	"Community_Channels/internal/model"

	"gorm.io/gorm"
)

type MessageRepository struct {
	DB *gorm.DB
}

func (r *MessageRepository) Create(msg *model.Message) error {
	return r.DB.Create(msg).Error
}

func (r *MessageRepository) FindByID(id uint64) (*model.Message, error) {
	var msg model.Message
	err := r.DB.First(&msg, id).Error
	return &msg, err
}

// PageBefore 取 before 之前（不含）的最新 limit 条，新在前。
// 软删消息不过滤：它们留在流里打标记，游标位置才不会漂移。
// before 为零值表示第一页。并列时间用 id 打破。
func (r *MessageRepository) PageBefore(channelID uint64, before time.Time, limit int) ([]model.Message, error) {
	var list []model.Message
	q := r.DB.Where("channel_id = ?", channelID)
	if !before.IsZero() {
		q = q.Where("created_at < ?", before)
	}
	err := q.Order("created_at DESC, id DESC").Limit(limit).Find(&list).Error
	return list, err
}

// Latest 频道最新一条消息（mark-read 用）
func (r *MessageRepository) Latest(channelID uint64) (*model.Message, error) {
	var msg model.Message
	err := r.DB.Where("channel_id = ?", channelID).
		Order("created_at DESC, id DESC").First(&msg).Error
	return &msg, err
}

// SoftDelete 打删除标记；调用方已做权限判断
func (r *MessageRepository) SoftDelete(msgID, operatorID uint64) error {
	now := time.Now()
	return r.DB.Model(&model.Message{}).
		Where("id = ? AND is_deleted = ?", msgID, false).
		Updates(map[string]any{
			"is_deleted": true,
			"deleted_at": now,
			"deleted_by": operatorID,
		}).Error
}

// UnreadCount 晚于已读指针、且不是自己发的消息数
func (r *MessageRepository) UnreadCount(channelID, userID uint64, lastRead *time.Time) (int64, error) {
	var count int64
	q := r.DB.Model(&model.Message{}).
		Where("channel_id = ? AND user_id <> ?", channelID, userID)
	if lastRead != nil {
		q = q.Where("created_at > ?", *lastRead)
	}
	err := q.Count(&count).Error
	return count, err
}
