package mysql

import (
	"time"

	"Community_Channels/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MembershipRepository struct {
	DB *gorm.DB
}

// PendingRow 待审列表行：membership 连上频道名
type PendingRow struct {
	UserID      uint64    `json:"user_id"`
	ChannelID   uint64    `json:"channel_id"`
	ChannelName string    `json:"channel_name"`
	RequestedAt time.Time `json:"requested_at"`
}

// CreatePendingIfAbsent 幂等插入：已有 (user_id, channel_id) 行则不动
func (r *MembershipRepository) CreatePendingIfAbsent(userID, channelID uint64) (bool, error) {
	m := &model.ChannelMembership{
		UserID:    userID,
		ChannelID: channelID,
		Status:    model.MemberStatusPending,
	}
	tx := r.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "channel_id"}},
		DoNothing: true,
	}).Create(m)
	return tx.RowsAffected > 0, tx.Error
}

func (r *MembershipRepository) Find(userID, channelID uint64) (*model.ChannelMembership, error) {
	var m model.ChannelMembership
	err := r.DB.Where("user_id = ? AND channel_id = ?", userID, channelID).First(&m).Error
	return &m, err
}

func (r *MembershipRepository) ListByUser(userID uint64) ([]model.ChannelMembership, error) {
	var list []model.ChannelMembership
	err := r.DB.Where("user_id = ?", userID).Find(&list).Error
	return list, err
}

// ListPending 待审行，只取仍然活跃的频道
func (r *MembershipRepository) ListPending() ([]PendingRow, error) {
	var rows []PendingRow
	err := r.DB.Model(&model.ChannelMembership{}).
		Select("channel_memberships.user_id, channel_memberships.channel_id, channels.name AS channel_name, channel_memberships.created_at AS requested_at").
		Joins("JOIN channels ON channels.id = channel_memberships.channel_id AND channels.is_active = ?", true).
		Where("channel_memberships.status = ?", model.MemberStatusPending).
		Order("channel_memberships.user_id, channel_memberships.channel_id").
		Find(&rows).Error
	return rows, err
}

// DecidePending 单行审批：只允许从 pending 迁移，返回是否命中
func (r *MembershipRepository) DecidePending(userID, channelID uint64, status string) (bool, error) {
	tx := r.DB.Model(&model.ChannelMembership{}).
		Where("user_id = ? AND channel_id = ? AND status = ?", userID, channelID, model.MemberStatusPending).
		Update("status", status)
	return tx.RowsAffected > 0, tx.Error
}

// DecideAllPending 该用户全部待审行一次迁移
func (r *MembershipRepository) DecideAllPending(userID uint64, status string) (int64, error) {
	tx := r.DB.Model(&model.ChannelMembership{}).
		Where("user_id = ? AND status = ?", userID, model.MemberStatusPending).
		Update("status", status)
	return tx.RowsAffected, tx.Error
}

// Delete 退出即删行；与 denied（保留记录）语义不同
func (r *MembershipRepository) Delete(userID, channelID uint64) error {
	return r.DB.Where("user_id = ? AND channel_id = ?", userID, channelID).
		Delete(&model.ChannelMembership{}).Error
}

// UpdateLastRead 推进已读指针
func (r *MembershipRepository) UpdateLastRead(userID, channelID, msgID uint64, ts time.Time) error {
	return r.DB.Model(&model.ChannelMembership{}).
		Where("user_id = ? AND channel_id = ?", userID, channelID).
		Updates(map[string]any{
			"last_read_at":         ts,
			"last_read_message_id": msgID,
		}).Error
}

// moderationAssign 级联写入的列集合；ban 与 kick 互斥，必须整组覆盖
func moderationAssign(m *model.ChannelMembership) map[string]any {
	return map[string]any{
		"status":         m.Status,
		"ban_expires_at": m.BanExpiresAt,
		"ban_reason":     m.BanReason,
		"banned_by":      m.BannedBy,
		"kicked_at":      m.KickedAt,
		"kicked_by":      m.KickedBy,
		"updated_at":     time.Now(),
	}
}

// CascadeModerate 对整组频道原子写入同一份封禁/踢出状态。
// 任意一行失败整个事务回滚，父子频道不允许出现状态分叉。
func (r *MembershipRepository) CascadeModerate(userID uint64, channelIDs []uint64, apply *model.ChannelMembership) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		for _, chID := range channelIDs {
			row := &model.ChannelMembership{
				UserID:       userID,
				ChannelID:    chID,
				Status:       apply.Status,
				BanExpiresAt: apply.BanExpiresAt,
				BanReason:    apply.BanReason,
				BannedBy:     apply.BannedBy,
				KickedAt:     apply.KickedAt,
				KickedBy:     apply.KickedBy,
			}
			// 行不存在则懒创建（首次管控动作也要留痕）
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "user_id"}, {Name: "channel_id"}},
				DoUpdates: clause.Assignments(moderationAssign(row)),
			}).Create(row).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// CascadeClearModeration 解禁：清空 ban/kick 字段并回到 approved，只动已存在的行
func (r *MembershipRepository) CascadeClearModeration(userID uint64, channelIDs []uint64) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		return tx.Model(&model.ChannelMembership{}).
			Where("user_id = ? AND channel_id IN ?", userID, channelIDs).
			Updates(map[string]any{
				"status":         model.MemberStatusApproved,
				"ban_expires_at": nil,
				"ban_reason":     "",
				"banned_by":      0,
				"kicked_at":      nil,
				"kicked_by":      0,
			}).Error
	})
}
