package service

import (
	"errors"
	"testing"
	"time"

	"Community_Channels/internal/model"
	"Community_Channels/internal/pkg"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newModerationService(t *testing.T) (*ModerationService, *MembershipService, *recordingBus) {
	db := testDB(t)
	bus := &recordingBus{}
	memberships := NewMembershipService(db, nil, bus, testLogger())
	return NewModerationService(db, memberships, bus, testLogger()), memberships, bus
}

func TestBanCascadeIdentical(t *testing.T) {
	svc, memberships, bus := newModerationService(t)
	db := memberships.channels.DB
	parent, en, fr := channelTree(t, db)
	approveAll(t, db, userX, parent.ID, en.ID, fr.ID)

	ids, err := svc.BanOrKick(admin, parent.ID, userX, 7, false, "spam")
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint64{parent.ID, en.ID, fr.ID}, ids)

	// 级联的每一行状态、过期时间、原因、操作者完全一致
	var expiry *time.Time
	for _, chID := range ids {
		m := membershipOf(t, db, userX, chID)
		assert.Equal(t, model.MemberStatusBanned, m.Status)
		assert.Equal(t, "spam", m.BanReason)
		assert.Equal(t, adminID, m.BannedBy)
		require.NotNil(t, m.BanExpiresAt)
		assert.Nil(t, m.KickedAt)
		if expiry == nil {
			expiry = m.BanExpiresAt
		} else {
			assert.Equal(t, expiry.Unix(), m.BanExpiresAt.Unix())
		}
	}
	assert.WithinDuration(t, time.Now().AddDate(0, 0, 7), *expiry, time.Minute)

	assert.Len(t, bus.byEvent(EventChannelHidden), 3)
}

func TestKickClearsBanFields(t *testing.T) {
	svc, memberships, _ := newModerationService(t)
	db := memberships.channels.DB
	parent, en, fr := channelTree(t, db)
	approveAll(t, db, userX, parent.ID, en.ID, fr.ID)

	_, err := svc.BanOrKick(admin, parent.ID, userX, 7, false, "spam")
	require.NoError(t, err)

	// ban 与 kick 互斥：踢出必须清空封禁元数据
	_, err = svc.BanOrKick(admin, parent.ID, userX, 0, true, "")
	require.NoError(t, err)
	for _, chID := range []uint64{parent.ID, en.ID, fr.ID} {
		m := membershipOf(t, db, userX, chID)
		assert.Equal(t, model.MemberStatusKicked, m.Status)
		assert.NotNil(t, m.KickedAt)
		assert.Equal(t, adminID, m.KickedBy)
		assert.Nil(t, m.BanExpiresAt)
		assert.Empty(t, m.BanReason)
		assert.Zero(t, m.BannedBy)
	}
}

func TestBanLazilyCreatesRows(t *testing.T) {
	svc, memberships, _ := newModerationService(t)
	db := memberships.channels.DB
	parent, en, fr := channelTree(t, db)

	// 目标用户从未申请过，首次管控也要留痕
	_, err := svc.BanOrKick(admin, parent.ID, userX, 3, false, "raid")
	require.NoError(t, err)
	for _, chID := range []uint64{parent.ID, en.ID, fr.ID} {
		assert.Equal(t, model.MemberStatusBanned, membershipOf(t, db, userX, chID).Status)
	}
}

func TestBanCascadeAbortsAtomically(t *testing.T) {
	svc, memberships, bus := newModerationService(t)
	db := memberships.channels.DB
	parent, en, fr := channelTree(t, db)
	approveAll(t, db, userX, parent.ID, en.ID, fr.ID)

	// 注入故障：写到 fr 那一行时报错，整个事务必须回滚
	require.NoError(t, db.Callback().Create().Before("gorm:create").Register("fail_fr", func(tx *gorm.DB) {
		if m, ok := tx.Statement.Dest.(*model.ChannelMembership); ok && m.ChannelID == fr.ID {
			_ = tx.AddError(errors.New("injected failure"))
		}
	}))
	defer db.Callback().Create().Remove("fail_fr")

	_, err := svc.BanOrKick(admin, parent.ID, userX, 7, false, "spam")
	require.Error(t, err)

	// 零行改变
	for _, chID := range []uint64{parent.ID, en.ID, fr.ID} {
		m := membershipOf(t, db, userX, chID)
		assert.Equal(t, model.MemberStatusApproved, m.Status)
		assert.Nil(t, m.BanExpiresAt)
	}
	assert.Empty(t, bus.byEvent(EventChannelHidden))
}

func TestUnbanRestoresCascade(t *testing.T) {
	svc, memberships, bus := newModerationService(t)
	db := memberships.channels.DB
	parent, en, fr := channelTree(t, db)
	approveAll(t, db, userX, parent.ID, en.ID, fr.ID)

	_, err := svc.BanOrKick(admin, parent.ID, userX, 7, false, "spam")
	require.NoError(t, err)

	ids, err := svc.Unban(admin, parent.ID, userX)
	require.NoError(t, err)
	assert.Len(t, ids, 3)
	for _, chID := range []uint64{parent.ID, en.ID, fr.ID} {
		m := membershipOf(t, db, userX, chID)
		assert.Equal(t, model.MemberStatusApproved, m.Status)
		assert.Nil(t, m.BanExpiresAt)
		assert.Empty(t, m.BanReason)
		assert.Zero(t, m.BannedBy)
		assert.Nil(t, m.KickedAt)
	}
	assert.Len(t, bus.byEvent(EventChannelVisible), 3)
}

func TestModerationPermissions(t *testing.T) {
	svc, memberships, _ := newModerationService(t)
	db := memberships.channels.DB
	parent, en, _ := channelTree(t, db)

	plain := Identity{ID: 7, Role: pkg.RoleUser}
	_, err := svc.BanOrKick(plain, parent.ID, userX, 7, false, "")
	assert.ErrorIs(t, err, ErrNoPermission)

	// 父频道版主可以管控
	require.NoError(t, db.Model(parent).Update("moderators", []uint64{7}).Error)
	_, err = svc.BanOrKick(plain, parent.ID, userX, 7, false, "")
	require.NoError(t, err)

	// 子频道不能作为级联根
	_, err = svc.BanOrKick(admin, en.ID, userX, 7, false, "")
	assert.ErrorIs(t, err, ErrNotParentChannel)
}
