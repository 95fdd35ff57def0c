package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"Community_Channels/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type fakePublisher struct {
	sent    []string
	failKey string
}

func (p *fakePublisher) Send(ctx context.Context, key string, value []byte) error {
	if key == p.failKey {
		return errors.New("broker unreachable")
	}
	p.sent = append(p.sent, string(value))
	return nil
}

func outboxDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.NotificationRecord{}))
	return db
}

func TestOutboxDrain(t *testing.T) {
	db := outboxDB(t)
	require.NoError(t, db.Create(&model.NotificationRecord{UserID: 7, Type: "channel", Title: "a"}).Error)
	require.NoError(t, db.Create(&model.NotificationRecord{UserID: 8, Type: "channel", Title: "b"}).Error)

	pub := &fakePublisher{failKey: "8"}
	relayer := NewOutboxRelayer(db, pub, zap.NewNop().Sugar())
	relayer.drainOnce(context.Background())

	// 成功的标记 sent，失败的累加 retry 留待下一轮
	var rows []model.NotificationRecord
	require.NoError(t, db.Order("id").Find(&rows).Error)
	require.Len(t, rows, 2)
	assert.Equal(t, int8(model.NotifyOutboxSent), rows[0].OutboxStatus)
	assert.Equal(t, int8(model.NotifyOutboxPending), rows[1].OutboxStatus)
	assert.Equal(t, 1, rows[1].Retry)

	// 线上格式不带外发簿记字段
	require.Len(t, pub.sent, 1)
	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(pub.sent[0]), &payload))
	assert.NotContains(t, payload, "OutboxStatus")
	assert.EqualValues(t, 7, payload["user_id"])

	// 恢复后下一轮补投
	pub.failKey = ""
	relayer.drainOnce(context.Background())
	require.NoError(t, db.Order("id").Find(&rows).Error)
	assert.Equal(t, int8(model.NotifyOutboxSent), rows[1].OutboxStatus)
}
