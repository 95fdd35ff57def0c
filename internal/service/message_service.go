package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"Community_Channels/internal/model"
	"Community_Channels/internal/pkg"
	"Community_Channels/internal/repository/mysql"
	redisrepo "Community_Channels/internal/repository/redis"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 100
)

type MessageService struct {
	channels *mysql.ChannelRepository
	members  *mysql.MembershipRepository
	messages *mysql.MessageRepository
	limiter  *redisrepo.RateLimiter
	bus      Broadcaster
	log      *zap.SugaredLogger
}

func NewMessageService(db *gorm.DB, limiter *redisrepo.RateLimiter, bus Broadcaster, log *zap.SugaredLogger) *MessageService {
	if bus == nil {
		bus = NopBroadcaster{}
	}
	return &MessageService{
		channels: &mysql.ChannelRepository{DB: db},
		members:  &mysql.MembershipRepository{DB: db},
		messages: &mysql.MessageRepository{DB: db},
		limiter:  limiter,
		bus:      bus,
		log:      log,
	}
}

// MessagePage 游标分页结果：游标取本批最旧一条的时间
type MessagePage struct {
	Messages   []model.Message `json:"messages"`
	HasMore    bool            `json:"has_more"`
	NextBefore *time.Time      `json:"next_before,omitempty"`
}

// checkCanPost 成员必须是 approved；有效封禁带上下文报 403；
// 过期封禁按 approved 处理（惰性过期）。再校验频道发言权限。
func (s *MessageService) checkCanPost(user Identity, ch *model.Channel) error {
	m, err := s.members.Find(user.ID, ch.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotMember
		}
		return err
	}
	now := time.Now()
	if m.BanActive(now) {
		return &BannedError{ChannelID: ch.ID, ExpiresAt: m.BanExpiresAt, Reason: m.BanReason, BannedBy: m.BannedBy}
	}
	if m.Status == model.MemberStatusKicked {
		return ErrKicked
	}
	if effectiveStatus(m, now) != model.MemberStatusApproved {
		return ErrNotMember
	}

	switch ch.CanMessage {
	case model.CanMessageModerators:
		if user.Role != pkg.RoleAdmin && !ch.IsModerator(user.ID) {
			return ErrNoPermission
		}
	case model.CanMessageAdmins:
		if user.Role != pkg.RoleAdmin {
			return ErrNoPermission
		}
	}
	return nil
}

// Post 校验通过后以服务器时间落库，推进作者已读指针，再广播给房间
func (s *MessageService) Post(ctx context.Context, user Identity, channelID uint64, content string, replyToID *uint64, mentions []uint64) (*model.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}

	if s.limiter != nil {
		ok, retry, err := s.limiter.Allow(ctx, user.ID, redisrepo.ActionMessage)
		if err != nil {
			s.log.Warnw("rate limiter unavailable, allowing message", "err", err)
		} else if !ok {
			return nil, &RateLimitedError{RetryAfter: retry}
		}
	}

	ch, err := s.channels.FindByID(channelID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChannelNotFound
		}
		return nil, err
	}
	if !ch.IsActive {
		return nil, ErrChannelInactive
	}
	if err := s.checkCanPost(user, ch); err != nil {
		return nil, err
	}

	if replyToID != nil {
		target, err := s.messages.FindByID(*replyToID)
		if err != nil || target.ChannelID != channelID {
			return nil, ErrMessageNotFound
		}
	}

	msg := &model.Message{
		ChannelID: channelID,
		UserID:    user.ID,
		Username:  user.Username,
		Content:   content,
		ReplyToID: replyToID,
		Mentions:  mentions,
		CreatedAt: time.Now(),
	}
	if err := s.messages.Create(msg); err != nil {
		return nil, err
	}

	// 自己发的消息不计未读
	if err := s.members.UpdateLastRead(user.ID, channelID, msg.ID, msg.CreatedAt); err != nil {
		s.log.Warnw("advance last read failed", "user", user.ID, "channel", channelID, "err", err)
	}

	s.bus.ToChannel(channelID, EventNewMessage, msg)
	return msg, nil
}

// Page 取 before 之前最新的 limit 条，翻转为时间正序返回。
// hasMore 以「取满 limit 条」判断；软删消息保留在流里，游标不漂移。
func (s *MessageService) Page(channelID uint64, limit int, before time.Time) (*MessagePage, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if _, err := s.channels.FindByID(channelID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChannelNotFound
		}
		return nil, err
	}

	rows, err := s.messages.PageBefore(channelID, before, limit)
	if err != nil {
		return nil, err
	}

	page := &MessagePage{HasMore: len(rows) == limit}
	if len(rows) > 0 {
		oldest := rows[len(rows)-1].CreatedAt
		page.NextBefore = &oldest
	}
	// 翻转为时间正序
	page.Messages = make([]model.Message, len(rows))
	for i := range rows {
		page.Messages[len(rows)-1-i] = rows[i]
	}
	return page, nil
}

// Delete 作者或频道版主（或管理员）可删；软删后向房间通报
func (s *MessageService) Delete(user Identity, channelID, messageID uint64) error {
	msg, err := s.messages.FindByID(messageID)
	if err != nil || msg.ChannelID != channelID {
		return ErrMessageNotFound
	}

	ch, err := s.channels.FindByID(channelID)
	if err != nil {
		return ErrChannelNotFound
	}
	if msg.UserID != user.ID && user.Role != pkg.RoleAdmin && !ch.IsModerator(user.ID) {
		return ErrNoPermission
	}

	if err := s.messages.SoftDelete(messageID, user.ID); err != nil {
		return err
	}
	s.bus.ToChannel(channelID, EventMessageDeleted, map[string]any{
		"channel_id": channelID,
		"message_id": messageID,
		"deleted_by": user.ID,
	})
	return nil
}

// MarkRead 已读指针推进到频道最新一条
func (s *MessageService) MarkRead(userID, channelID uint64) error {
	if _, err := s.members.Find(userID, channelID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotMember
		}
		return err
	}
	latest, err := s.messages.Latest(channelID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// 空频道：只推进时间
			return s.members.UpdateLastRead(userID, channelID, 0, time.Now())
		}
		return err
	}
	return s.members.UpdateLastRead(userID, channelID, latest.ID, latest.CreatedAt)
}

// UnreadCount 晚于已读指针且他人发送的消息数
func (s *MessageService) UnreadCount(userID, channelID uint64) (int64, error) {
	m, err := s.members.Find(userID, channelID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrNotMember
		}
		return 0, err
	}
	return s.messages.UnreadCount(channelID, userID, m.LastReadAt)
}

// UnreadCounts 一次取全部已加入频道的未读数
func (s *MessageService) UnreadCounts(userID uint64) (map[uint64]int64, error) {
	memberships, err := s.members.ListByUser(userID)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	counts := make(map[uint64]int64)
	for i := range memberships {
		m := &memberships[i]
		if effectiveStatus(m, now) != model.MemberStatusApproved {
			continue
		}
		n, err := s.messages.UnreadCount(m.ChannelID, userID, m.LastReadAt)
		if err != nil {
			return nil, err
		}
		counts[m.ChannelID] = n
	}
	return counts, nil
}

// TypingAllowed 打字指示与消息同档限流；redis 故障放行
func (s *MessageService) TypingAllowed(ctx context.Context, userID uint64) bool {
	if s.limiter == nil {
		return true
	}
	ok, _, err := s.limiter.Allow(ctx, userID, redisrepo.ActionTyping)
	if err != nil {
		s.log.Warnw("rate limiter unavailable, allowing typing", "err", err)
		return true
	}
	return ok
}
