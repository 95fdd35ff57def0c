package mysql

import (
	"time"

	"Community_Channels/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CheckpointRepository struct {
	DB *gorm.DB
}

func (r *CheckpointRepository) Load(name string) (*model.FeedCheckpoint, error) {
	var cp model.FeedCheckpoint
	err := r.DB.First(&cp, "name = ?", name).Error
	return &cp, err
}

// Save 单行 upsert；必须在投递成功之后调用
func (r *CheckpointRepository) Save(name, position string, processedAt time.Time) error {
	cp := &model.FeedCheckpoint{
		Name:            name,
		Position:        position,
		LastProcessedAt: processedAt,
	}
	return r.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "name"}},
		DoUpdates: clause.Assignments(map[string]any{
			"position":          position,
			"last_processed_at": processedAt,
			"updated_at":        time.Now(),
		}),
	}).Create(cp).Error
}
