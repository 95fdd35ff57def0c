package service

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"Community_Channels/internal/model"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// testDB 每个测试独立的内存库
func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.Channel{},
		&model.ChannelMembership{},
		&model.Message{},
		&model.NotificationRecord{},
		&model.FeedCheckpoint{},
	))
	return db
}

func testLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

type busEvent struct {
	Kind      string // channel / channel_except / user
	ChannelID uint64
	UserID    uint64
	Event     string
	Data      any
}

// recordingBus 记录服务层发出的实时事件
type recordingBus struct {
	mu     sync.Mutex
	events []busEvent
}

func (b *recordingBus) ToChannel(channelID uint64, event string, data any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, busEvent{Kind: "channel", ChannelID: channelID, Event: event, Data: data})
}

func (b *recordingBus) ToChannelExcept(channelID, exceptUserID uint64, event string, data any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, busEvent{Kind: "channel_except", ChannelID: channelID, UserID: exceptUserID, Event: event, Data: data})
}

func (b *recordingBus) ToUser(userID uint64, event string, data any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, busEvent{Kind: "user", UserID: userID, Event: event, Data: data})
}

func (b *recordingBus) byEvent(event string) []busEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []busEvent
	for _, e := range b.events {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

// mustChannel 建频道
func mustChannel(t *testing.T, db *gorm.DB, ch *model.Channel) *model.Channel {
	t.Helper()
	require.NoError(t, db.Create(ch).Error)
	return ch
}

// channelTree 一父两活跃子、一停用子
func channelTree(t *testing.T, db *gorm.DB) (parent, en, fr *model.Channel) {
	t.Helper()
	parent = mustChannel(t, db, &model.Channel{Name: "announcements", Category: "news", Type: model.ChannelTypeAnnouncement, IsActive: true})
	en = mustChannel(t, db, &model.Channel{Name: "announcements-en", Category: "news", Type: model.ChannelTypeAnnouncement, ParentChannelID: &parent.ID, IsActive: true})
	fr = mustChannel(t, db, &model.Channel{Name: "announcements-fr", Category: "news", Type: model.ChannelTypeAnnouncement, ParentChannelID: &parent.ID, IsActive: true})
	mustChannel(t, db, &model.Channel{Name: "announcements-dead", Category: "news", ParentChannelID: &parent.ID, IsActive: false})
	return parent, en, fr
}

// approveAll 直接写成 approved，跳过申请流程
func approveAll(t *testing.T, db *gorm.DB, userID uint64, channelIDs ...uint64) {
	t.Helper()
	for _, chID := range channelIDs {
		require.NoError(t, db.Create(&model.ChannelMembership{
			UserID:    userID,
			ChannelID: chID,
			Status:    model.MemberStatusApproved,
		}).Error)
	}
}

func membershipOf(t *testing.T, db *gorm.DB, userID, channelID uint64) *model.ChannelMembership {
	t.Helper()
	var m model.ChannelMembership
	require.NoError(t, db.Where("user_id = ? AND channel_id = ?", userID, channelID).First(&m).Error)
	return &m
}

func timePtr(tm time.Time) *time.Time { return &tm }
