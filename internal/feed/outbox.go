package feed

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"Community_Channels/internal/pkg"
	"Community_Channels/internal/repository/mysql"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Publisher 通知外发出口；生产环境是 pkg.KafkaProducer
type Publisher interface {
	Send(ctx context.Context, key string, value []byte) error
}

// OutboxRelayer 把外部服务新插入的通知行发布到通知 topic。
// 失败只累加重试计数，下一轮继续投；状态在行上，多次投递无害。
type OutboxRelayer struct {
	repo      *mysql.NotificationRepository
	producer  Publisher
	batchSize int
	interval  time.Duration
	log       *zap.SugaredLogger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewOutboxRelayer(db *gorm.DB, producer Publisher, log *zap.SugaredLogger) *OutboxRelayer {
	return &OutboxRelayer{
		repo:      &mysql.NotificationRepository{DB: db},
		producer:  producer,
		batchSize: 200,
		interval:  time.Second,
		log:       log,
	}
}

func (r *OutboxRelayer) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.run(ctx)
	}()
}

func (r *OutboxRelayer) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
}

func (r *OutboxRelayer) run(ctx context.Context) {
	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.drainOnce(ctx)
		}
	}
}

func (r *OutboxRelayer) drainOnce(ctx context.Context) {
	rows, err := r.repo.ListUnpublished(ctx, r.batchSize)
	if err != nil {
		r.log.Warnw("notification outbox query failed", "err", err)
		return
	}
	for i := range rows {
		rec := rows[i]
		// 外发簿记字段不序列化（json:"-"），线上只有业务字段
		payload, err := json.Marshal(&rec)
		if err != nil {
			r.log.Warnw("marshal notification failed", "id", rec.ID, "err", err)
			continue
		}
		if err := r.producer.Send(ctx, pkg.MakeKeyFromID(rec.UserID), payload); err != nil {
			r.log.Warnw("publish notification failed", "id", rec.ID, "err", err)
			_ = r.repo.MarkRetry(ctx, rec.ID)
			continue
		}
		_ = r.repo.MarkSent(ctx, rec.ID)
	}
}
