package mysql

import (
	"context"

	"Community_Channels/internal/model"

	"gorm.io/gorm"
)

type NotificationRepository struct {
	DB *gorm.DB
}

// ListUnpublished 投递器批量拉取未外发的通知
func (r *NotificationRepository) ListUnpublished(ctx context.Context, limit int) ([]model.NotificationRecord, error) {
	var rows []model.NotificationRecord
	err := r.DB.WithContext(ctx).
		Where("outbox_status = ?", model.NotifyOutboxPending).
		Order("id").Limit(limit).Find(&rows).Error
	return rows, err
}

func (r *NotificationRepository) MarkSent(ctx context.Context, id uint64) error {
	return r.DB.WithContext(ctx).Model(&model.NotificationRecord{}).
		Where("id = ?", id).
		Update("outbox_status", model.NotifyOutboxSent).Error
}

// MarkRetry 失败计数 +1，不改状态，下一轮继续投
func (r *NotificationRepository) MarkRetry(ctx context.Context, id uint64) error {
	return r.DB.WithContext(ctx).Model(&model.NotificationRecord{}).
		Where("id = ?", id).
		Update("retry", gorm.Expr("retry + 1")).Error
}
