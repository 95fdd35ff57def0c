package mysql

import (
	"Community_Channels/internal/model"

	"gorm.io/gorm"
)

type ChannelRepository struct {
	DB *gorm.DB
}

func (r *ChannelRepository) FindByID(id uint64) (*model.Channel, error) {
	var ch model.Channel
	err := r.DB.First(&ch, id).Error
	return &ch, err
}

// ListActive 全部活跃频道，列表页使用
func (r *ChannelRepository) ListActive() ([]model.Channel, error) {
	var list []model.Channel
	err := r.DB.Where("is_active = ?", true).
		Order("category, parent_channel_id IS NOT NULL, id").
		Find(&list).Error
	return list, err
}

// ActiveChildren 某个父频道下的活跃子频道
func (r *ChannelRepository) ActiveChildren(parentID uint64) ([]model.Channel, error) {
	var list []model.Channel
	err := r.DB.Where("parent_channel_id = ? AND is_active = ?", parentID, true).
		Find(&list).Error
	return list, err
}

func (r *ChannelRepository) Create(ch *model.Channel) error {
	return r.DB.Create(ch).Error
}
