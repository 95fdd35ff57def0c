package service

import (
	"context"
	"testing"
	"time"

	"Community_Channels/internal/model"
	"Community_Channels/internal/pkg"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	userX   = uint64(100)
	adminID = uint64(1)
)

var admin = Identity{ID: adminID, Username: "admin", Role: pkg.RoleAdmin}

func newMembershipService(t *testing.T) (*MembershipService, *recordingBus) {
	db := testDB(t)
	bus := &recordingBus{}
	return NewMembershipService(db, nil, bus, testLogger()), bus
}

func TestRequestJoinCascade(t *testing.T) {
	svc, _ := newMembershipService(t)
	parent, en, fr := channelTree(t, svc.channels.DB)

	created, err := svc.RequestJoin(context.Background(), userX, parent.ID)
	require.NoError(t, err)
	// 父频道 + 两个活跃子频道，停用的不算
	assert.ElementsMatch(t, []uint64{parent.ID, en.ID, fr.ID}, created)

	for _, chID := range []uint64{parent.ID, en.ID, fr.ID} {
		assert.Equal(t, model.MemberStatusPending, membershipOf(t, svc.channels.DB, userX, chID).Status)
	}

	// 幂等：重复申请不产生新行，已有行不动
	again, err := svc.RequestJoin(context.Background(), userX, parent.ID)
	require.NoError(t, err)
	assert.Empty(t, again)

	var count int64
	svc.channels.DB.Model(&model.ChannelMembership{}).Where("user_id = ?", userX).Count(&count)
	assert.EqualValues(t, 3, count)
}

func TestRequestJoinValidation(t *testing.T) {
	svc, _ := newMembershipService(t)
	parent, en, _ := channelTree(t, svc.channels.DB)

	// 子频道不能作为申请目标
	_, err := svc.RequestJoin(context.Background(), userX, en.ID)
	assert.ErrorIs(t, err, ErrNotParentChannel)

	_, err = svc.RequestJoin(context.Background(), userX, 9999)
	assert.ErrorIs(t, err, ErrChannelNotFound)

	require.NoError(t, svc.channels.DB.Model(parent).Update("is_active", false).Error)
	_, err = svc.RequestJoin(context.Background(), userX, parent.ID)
	assert.ErrorIs(t, err, ErrChannelInactive)
}

func TestDecide(t *testing.T) {
	svc, bus := newMembershipService(t)
	parent, _, _ := channelTree(t, svc.channels.DB)
	_, err := svc.RequestJoin(context.Background(), userX, parent.ID)
	require.NoError(t, err)

	require.NoError(t, svc.Decide(admin, userX, parent.ID, true))
	assert.Equal(t, model.MemberStatusApproved, membershipOf(t, svc.channels.DB, userX, parent.ID).Status)
	assert.Len(t, bus.byEvent(EventChannelJoined), 1)

	// 已经不是 pending，再审报 not-found
	assert.ErrorIs(t, svc.Decide(admin, userX, parent.ID, true), ErrPendingNotFound)
	assert.ErrorIs(t, svc.Decide(admin, userX, 9999, false), ErrPendingNotFound)

	// 非管理员无权审批
	plain := Identity{ID: 7, Role: pkg.RoleUser}
	assert.ErrorIs(t, svc.Decide(plain, userX, parent.ID, true), ErrNoPermission)
}

func TestDenyKeepsRecord(t *testing.T) {
	svc, _ := newMembershipService(t)
	parent, _, _ := channelTree(t, svc.channels.DB)
	_, err := svc.RequestJoin(context.Background(), userX, parent.ID)
	require.NoError(t, err)

	require.NoError(t, svc.Decide(admin, userX, parent.ID, false))
	// 拒绝保留 denied 行，与退出删行不同
	assert.Equal(t, model.MemberStatusDenied, membershipOf(t, svc.channels.DB, userX, parent.ID).Status)
}

func TestBulkDecide(t *testing.T) {
	svc, bus := newMembershipService(t)
	parent, en, fr := channelTree(t, svc.channels.DB)
	_, err := svc.RequestJoin(context.Background(), userX, parent.ID)
	require.NoError(t, err)

	n, err := svc.BulkDecide(admin, userX, true)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
	for _, chID := range []uint64{parent.ID, en.ID, fr.ID} {
		assert.Equal(t, model.MemberStatusApproved, membershipOf(t, svc.channels.DB, userX, chID).Status)
	}
	assert.Len(t, bus.byEvent(EventChannelJoined), 3)
}

func TestListPendingGroupsByUser(t *testing.T) {
	svc, _ := newMembershipService(t)
	parent, _, _ := channelTree(t, svc.channels.DB)
	_, err := svc.RequestJoin(context.Background(), userX, parent.ID)
	require.NoError(t, err)
	_, err = svc.RequestJoin(context.Background(), userX+1, parent.ID)
	require.NoError(t, err)

	groups, err := svc.ListPending(admin)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Len(t, groups[0].Requests, 3)
	assert.NotEmpty(t, groups[0].Requests[0].ChannelName)

	_, err = svc.ListPending(Identity{ID: 7, Role: pkg.RoleUser})
	assert.ErrorIs(t, err, ErrNoPermission)
}

func TestLeaveDeletesRow(t *testing.T) {
	svc, bus := newMembershipService(t)
	parent, _, _ := channelTree(t, svc.channels.DB)
	approveAll(t, svc.channels.DB, userX, parent.ID)

	require.NoError(t, svc.Leave(userX, parent.ID))
	var count int64
	svc.channels.DB.Model(&model.ChannelMembership{}).Where("user_id = ?", userX).Count(&count)
	assert.Zero(t, count)
	assert.Len(t, bus.byEvent(EventChannelLeft), 1)

	assert.ErrorIs(t, svc.Leave(userX, parent.ID), ErrNotMember)
}

func TestVisibilityLazyBanExpiry(t *testing.T) {
	svc, _ := newMembershipService(t)
	parent, en, fr := channelTree(t, svc.channels.DB)
	approveAll(t, svc.channels.DB, userX, parent.ID, en.ID, fr.ID)

	// 有效封禁：隐藏
	expires := time.Now().Add(24 * time.Hour)
	require.NoError(t, svc.channels.DB.Model(&model.ChannelMembership{}).
		Where("user_id = ?", userX).
		Updates(map[string]any{"status": model.MemberStatusBanned, "ban_expires_at": expires}).Error)

	groups, err := svc.VisibleChannels(userX)
	require.NoError(t, err)
	assert.Empty(t, visibleIDs(groups))

	// 过期封禁：重新可见，对外状态 approved，存储状态仍是 banned
	expired := time.Now().Add(-time.Hour)
	require.NoError(t, svc.channels.DB.Model(&model.ChannelMembership{}).
		Where("user_id = ?", userX).
		Update("ban_expires_at", expired).Error)

	groups, err = svc.VisibleChannels(userX)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint64{parent.ID, en.ID, fr.ID}, visibleIDs(groups))
	for _, g := range groups {
		for _, v := range g.Channels {
			assert.Equal(t, model.MemberStatusApproved, v.MemberStatus)
		}
	}
	assert.Equal(t, model.MemberStatusBanned, membershipOf(t, svc.channels.DB, userX, parent.ID).Status)

	statuses, err := svc.UserChannelStatus(userX)
	require.NoError(t, err)
	assert.Equal(t, model.MemberStatusApproved, statuses[parent.ID])
}

func TestKickedChannelHidden(t *testing.T) {
	svc, _ := newMembershipService(t)
	parent, _, _ := channelTree(t, svc.channels.DB)
	approveAll(t, svc.channels.DB, userX, parent.ID)

	now := time.Now()
	require.NoError(t, svc.channels.DB.Model(&model.ChannelMembership{}).
		Where("user_id = ?", userX).
		Updates(map[string]any{"status": model.MemberStatusKicked, "kicked_at": now}).Error)

	groups, err := svc.VisibleChannels(userX)
	require.NoError(t, err)
	assert.NotContains(t, visibleIDs(groups), parent.ID)
}

func TestCanJoinRoom(t *testing.T) {
	svc, _ := newMembershipService(t)
	parent, _, _ := channelTree(t, svc.channels.DB)
	approveAll(t, svc.channels.DB, userX, parent.ID)

	require.NoError(t, svc.CanJoinRoom(userX, parent.ID))
	assert.ErrorIs(t, svc.CanJoinRoom(userX+1, parent.ID), ErrNotMember)

	expires := time.Now().Add(time.Hour)
	require.NoError(t, svc.channels.DB.Model(&model.ChannelMembership{}).
		Where("user_id = ?", userX).
		Updates(map[string]any{"status": model.MemberStatusBanned, "ban_expires_at": expires}).Error)

	var banned *BannedError
	err := svc.CanJoinRoom(userX, parent.ID)
	require.ErrorAs(t, err, &banned)
	assert.NotNil(t, banned.ExpiresAt)

	// 封禁过期后可进房
	require.NoError(t, svc.channels.DB.Model(&model.ChannelMembership{}).
		Where("user_id = ?", userX).
		Update("ban_expires_at", timePtr(time.Now().Add(-time.Minute))).Error)
	require.NoError(t, svc.CanJoinRoom(userX, parent.ID))
}

func visibleIDs(groups []ChannelGroup) []uint64 {
	var ids []uint64
	for _, g := range groups {
		for _, v := range g.Channels {
			if v.MemberStatus != "" {
				ids = append(ids, v.ID)
			}
		}
	}
	return ids
}
