package service

import (
	"time"

	"Community_Channels/internal/model"
	"Community_Channels/internal/pkg"
	"Community_Channels/internal/repository/mysql"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ModerationService 封禁/踢出的级联事务。
// 子频道不允许与父频道出现封禁状态分叉，所以整组要么全部落库要么全部回滚。
type ModerationService struct {
	membership *MembershipService
	members    *mysql.MembershipRepository
	bus        Broadcaster
	log        *zap.SugaredLogger
}

func NewModerationService(db *gorm.DB, membership *MembershipService, bus Broadcaster, log *zap.SugaredLogger) *ModerationService {
	if bus == nil {
		bus = NopBroadcaster{}
	}
	return &ModerationService{
		membership: membership,
		members:    &mysql.MembershipRepository{DB: db},
		bus:        bus,
		log:        log,
	}
}

// canModerate 管理员或父频道版主
func canModerate(admin Identity, parent *model.Channel) bool {
	return admin.Role == pkg.RoleAdmin || parent.IsModerator(admin.ID)
}

// BanOrKick durationDays > 0 为限时封禁；kick=true 为踢出（无过期时间）。
// 行不存在会懒创建，首次管控动作也要留痕。提交成功后逐频道向目标用户推 channel_hidden。
func (s *ModerationService) BanOrKick(admin Identity, parentID, targetID uint64, durationDays int, kick bool, reason string) ([]uint64, error) {
	parent, ids, err := s.membership.resolveCascade(parentID)
	if err != nil {
		return nil, err
	}
	if !canModerate(admin, parent) {
		return nil, ErrNoPermission
	}

	now := time.Now()
	apply := &model.ChannelMembership{}
	if kick {
		apply.Status = model.MemberStatusKicked
		apply.KickedAt = &now
		apply.KickedBy = admin.ID
	} else {
		expires := now.AddDate(0, 0, durationDays)
		apply.Status = model.MemberStatusBanned
		apply.BanExpiresAt = &expires
		apply.BanReason = reason
		apply.BannedBy = admin.ID
	}

	if err := s.members.CascadeModerate(targetID, ids, apply); err != nil {
		return nil, err
	}

	for _, chID := range ids {
		s.bus.ToUser(targetID, EventChannelHidden, map[string]any{
			"channel_id":     chID,
			"status":         apply.Status,
			"ban_expires_at": apply.BanExpiresAt,
			"reason":         reason,
		})
	}
	return ids, nil
}

// Unban 整组清空 ban/kick 字段并恢复 approved，只作用于已存在的行
func (s *ModerationService) Unban(admin Identity, parentID, targetID uint64) ([]uint64, error) {
	parent, ids, err := s.membership.resolveCascade(parentID)
	if err != nil {
		return nil, err
	}
	if !canModerate(admin, parent) {
		return nil, ErrNoPermission
	}

	if err := s.members.CascadeClearModeration(targetID, ids); err != nil {
		return nil, err
	}

	for _, chID := range ids {
		s.bus.ToUser(targetID, EventChannelVisible, map[string]any{"channel_id": chID})
	}
	return ids, nil
}
