package service

import (
	"context"
	"errors"
	"time"

	"Community_Channels/internal/model"
	"Community_Channels/internal/pkg"
	"Community_Channels/internal/repository/mysql"
	redisrepo "Community_Channels/internal/repository/redis"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type MembershipService struct {
	channels *mysql.ChannelRepository
	members  *mysql.MembershipRepository
	limiter  *redisrepo.RateLimiter
	bus      Broadcaster
	log      *zap.SugaredLogger
}

func NewMembershipService(db *gorm.DB, limiter *redisrepo.RateLimiter, bus Broadcaster, log *zap.SugaredLogger) *MembershipService {
	if bus == nil {
		bus = NopBroadcaster{}
	}
	return &MembershipService{
		channels: &mysql.ChannelRepository{DB: db},
		members:  &mysql.MembershipRepository{DB: db},
		limiter:  limiter,
		bus:      bus,
		log:      log,
	}
}

// PendingGroup 待审列表按用户分组
type PendingGroup struct {
	UserID   uint64             `json:"user_id"`
	Requests []mysql.PendingRow `json:"requests"`
}

// ChannelView 列表项：频道信息加上当前用户的成员状态
type ChannelView struct {
	model.Channel
	MemberStatus string     `json:"member_status,omitempty"`
	BanExpiresAt *time.Time `json:"ban_expires_at,omitempty"`
}

// ChannelGroup 按 category 分组的可见频道
type ChannelGroup struct {
	Category string        `json:"category"`
	Channels []ChannelView `json:"channels"`
}

// resolveCascade 级联目标集合 = 父频道 + 全部活跃子频道。
// 父频道必须活跃且自身无父级（层级 ≤ 2）。
func (s *MembershipService) resolveCascade(parentID uint64) (*model.Channel, []uint64, error) {
	parent, err := s.channels.FindByID(parentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrChannelNotFound
		}
		return nil, nil, err
	}
	if !parent.IsActive {
		return nil, nil, ErrChannelInactive
	}
	if !parent.IsParent() {
		return nil, nil, ErrNotParentChannel
	}

	children, err := s.channels.ActiveChildren(parentID)
	if err != nil {
		return nil, nil, err
	}
	ids := make([]uint64, 0, len(children)+1)
	ids = append(ids, parent.ID)
	for _, ch := range children {
		ids = append(ids, ch.ID)
	}
	return parent, ids, nil
}

// RequestJoin 对父频道发起加入申请：父频道与每个活跃子频道各建一行 pending。
// 幂等：已有行（无论什么状态）不动。返回本次新建的频道 id。
func (s *MembershipService) RequestJoin(ctx context.Context, userID, parentID uint64) ([]uint64, error) {
	if s.limiter != nil {
		ok, retry, err := s.limiter.Allow(ctx, userID, redisrepo.ActionJoin)
		if err != nil {
			s.log.Warnw("rate limiter unavailable, allowing join", "err", err)
		} else if !ok {
			return nil, &RateLimitedError{RetryAfter: retry}
		}
	}

	_, ids, err := s.resolveCascade(parentID)
	if err != nil {
		return nil, err
	}

	created := make([]uint64, 0, len(ids))
	for _, chID := range ids {
		inserted, err := s.members.CreatePendingIfAbsent(userID, chID)
		if err != nil {
			return nil, err
		}
		if inserted {
			created = append(created, chID)
		}
	}
	return created, nil
}

// ListPending 待审申请，按用户分组（仅管理员）
func (s *MembershipService) ListPending(admin Identity) ([]PendingGroup, error) {
	if admin.Role != pkg.RoleAdmin {
		return nil, ErrNoPermission
	}
	rows, err := s.members.ListPending()
	if err != nil {
		return nil, err
	}

	var groups []PendingGroup
	for _, row := range rows {
		if len(groups) == 0 || groups[len(groups)-1].UserID != row.UserID {
			groups = append(groups, PendingGroup{UserID: row.UserID})
		}
		g := &groups[len(groups)-1]
		g.Requests = append(g.Requests, row)
	}
	return groups, nil
}

// Decide 审批单个待审行；没有匹配的 pending 行报 not-found
func (s *MembershipService) Decide(admin Identity, userID, channelID uint64, approve bool) error {
	if admin.Role != pkg.RoleAdmin {
		return ErrNoPermission
	}
	status := model.MemberStatusDenied
	if approve {
		status = model.MemberStatusApproved
	}
	hit, err := s.members.DecidePending(userID, channelID, status)
	if err != nil {
		return err
	}
	if !hit {
		return ErrPendingNotFound
	}
	if approve {
		s.bus.ToUser(userID, EventChannelJoined, map[string]any{"channel_id": channelID})
	}
	return nil
}

// BulkDecide 该用户全部待审行一次处理
func (s *MembershipService) BulkDecide(admin Identity, userID uint64, approve bool) (int64, error) {
	if admin.Role != pkg.RoleAdmin {
		return 0, ErrNoPermission
	}

	// 先取出目标频道，迁移后逐频道通知
	memberships, err := s.members.ListByUser(userID)
	if err != nil {
		return 0, err
	}
	var pendingIDs []uint64
	for _, m := range memberships {
		if m.Status == model.MemberStatusPending {
			pendingIDs = append(pendingIDs, m.ChannelID)
		}
	}

	status := model.MemberStatusDenied
	if approve {
		status = model.MemberStatusApproved
	}
	n, err := s.members.DecideAllPending(userID, status)
	if err != nil {
		return 0, err
	}
	if approve {
		for _, chID := range pendingIDs {
			s.bus.ToUser(userID, EventChannelJoined, map[string]any{"channel_id": chID})
		}
	}
	return n, nil
}

// Leave 删行退出；与 denied 不同，不留任何记录
func (s *MembershipService) Leave(userID, channelID uint64) error {
	if _, err := s.members.Find(userID, channelID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotMember
		}
		return err
	}
	if err := s.members.Delete(userID, channelID); err != nil {
		return err
	}
	s.bus.ToUser(userID, EventChannelLeft, map[string]any{"channel_id": channelID})
	return nil
}

// VisibleChannels 分组列表：有效封禁或被踢出的频道对该用户隐藏。
// 过期封禁按未封禁处理（惰性过期，不回写行）。
func (s *MembershipService) VisibleChannels(userID uint64) ([]ChannelGroup, error) {
	channels, err := s.channels.ListActive()
	if err != nil {
		return nil, err
	}
	memberships, err := s.members.ListByUser(userID)
	if err != nil {
		return nil, err
	}
	byChannel := make(map[uint64]*model.ChannelMembership, len(memberships))
	for i := range memberships {
		byChannel[memberships[i].ChannelID] = &memberships[i]
	}

	now := time.Now()
	var groups []ChannelGroup
	index := make(map[string]int)
	for _, ch := range channels {
		view := ChannelView{Channel: ch}
		if m, ok := byChannel[ch.ID]; ok {
			if !m.VisibleAt(now) {
				continue
			}
			view.MemberStatus = effectiveStatus(m, now)
			view.BanExpiresAt = m.BanExpiresAt
		}
		i, ok := index[ch.Category]
		if !ok {
			groups = append(groups, ChannelGroup{Category: ch.Category})
			i = len(groups) - 1
			index[ch.Category] = i
		}
		groups[i].Channels = append(groups[i].Channels, view)
	}
	return groups, nil
}

// UserChannelStatus 当前用户在各频道的成员状态
func (s *MembershipService) UserChannelStatus(userID uint64) (map[uint64]string, error) {
	memberships, err := s.members.ListByUser(userID)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	statuses := make(map[uint64]string, len(memberships))
	for i := range memberships {
		statuses[memberships[i].ChannelID] = effectiveStatus(&memberships[i], now)
	}
	return statuses, nil
}

// CanJoinRoom 实时房间准入：有效封禁拒绝进入
func (s *MembershipService) CanJoinRoom(userID, channelID uint64) error {
	m, err := s.members.Find(userID, channelID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotMember
		}
		return err
	}
	if m.BanActive(time.Now()) {
		return &BannedError{ChannelID: channelID, ExpiresAt: m.BanExpiresAt, Reason: m.BanReason, BannedBy: m.BannedBy}
	}
	if m.Status == model.MemberStatusKicked {
		return ErrKicked
	}
	if m.Status != model.MemberStatusApproved && m.Status != model.MemberStatusBanned {
		return ErrNotMember
	}
	return nil
}

// effectiveStatus 过期封禁对外表现为 approved，存储状态不变
func effectiveStatus(m *model.ChannelMembership, now time.Time) string {
	if m.Status == model.MemberStatusBanned && !m.BanActive(now) {
		return model.MemberStatusApproved
	}
	return m.Status
}
