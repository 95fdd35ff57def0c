package feed

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"Community_Channels/internal/model"
	"Community_Channels/internal/pkg"
	"Community_Channels/internal/service"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	// PipelineName 检查点表里的行名
	PipelineName = "notifications"

	// 固定重连间隔；如需有界退避改这一处
	reconnectBackoff = 5 * time.Second
)

// Position 不透明续读位置的实际内容
type Position struct {
	Partition int   `json:"partition"`
	Offset    int64 `json:"offset"`
}

// Source 可续读的通知流；kafka.Reader 天然满足
type Source interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// SourceFactory 按给定位置打开流，重连时再次调用
type SourceFactory func(pos Position) (Source, error)

// CheckpointStore 续读位置的持久化
type CheckpointStore interface {
	Load(name string) (*model.FeedCheckpoint, error)
	Save(name, position string, processedAt time.Time) error
}

// Pipeline 通知变更流：新通知记录 -> 用户私有房间。
// at-least-once：检查点严格在投递之后写，投递后崩溃会重投，消费端按通知 id 幂等。
type Pipeline struct {
	name        string
	factory     SourceFactory
	checkpoints CheckpointStore
	bus         service.Broadcaster
	log         *zap.SugaredLogger
	backoff     time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewPipeline(factory SourceFactory, checkpoints CheckpointStore, bus service.Broadcaster, log *zap.SugaredLogger) *Pipeline {
	return &Pipeline{
		name:        PipelineName,
		factory:     factory,
		checkpoints: checkpoints,
		bus:         bus,
		log:         log,
		backoff:     reconnectBackoff,
	}
}

// KafkaSourceFactory 默认实现：单分区通知 topic
func KafkaSourceFactory(cfg pkg.KafkaConfig) SourceFactory {
	return func(pos Position) (Source, error) {
		return pkg.NewKafkaReader(cfg, pos.Partition, pos.Offset), nil
	}
}

func (p *Pipeline) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.run(ctx)
	}()
}

func (p *Pipeline) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

// loadPosition 没有检查点就从最早的记录开始
func (p *Pipeline) loadPosition() Position {
	pos := Position{Offset: kafka.FirstOffset}
	cp, err := p.checkpoints.Load(p.name)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			p.log.Warnw("load feed checkpoint failed, starting from beginning", "err", err)
		}
		return pos
	}
	if err := json.Unmarshal([]byte(cp.Position), &pos); err != nil {
		p.log.Warnw("corrupt feed checkpoint, starting from beginning", "err", err)
		return Position{Offset: kafka.FirstOffset}
	}
	return pos
}

// run 错误/断开后固定间隔重连，从最后一次成功的检查点续读；绝不让宿主进程退出
func (p *Pipeline) run(ctx context.Context) {
	for {
		pos := p.loadPosition()
		src, err := p.factory(pos)
		if err != nil {
			p.log.Warnw("open notification feed failed", "err", err)
		} else {
			p.log.Infow("notification feed watching", "partition", pos.Partition, "offset", pos.Offset)
			p.consume(ctx, src)
			_ = src.Close()
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(p.backoff):
		}
	}
}

func (p *Pipeline) consume(ctx context.Context, src Source) {
	for {
		msg, err := src.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() == nil {
				p.log.Warnw("notification feed interrupted", "err", err)
			}
			return
		}
		p.deliver(&msg)
	}
}

// deliver 先转发再写检查点；顺序不能反，宁可重投不可漏投
func (p *Pipeline) deliver(msg *kafka.Message) {
	var rec model.NotificationRecord
	if err := json.Unmarshal(msg.Value, &rec); err != nil {
		p.log.Warnw("skip malformed notification record", "offset", msg.Offset, "err", err)
	} else {
		p.bus.ToUser(rec.UserID, service.EventNotificationReceived, rec)
	}

	pos, _ := json.Marshal(Position{Partition: msg.Partition, Offset: msg.Offset + 1})
	if err := p.checkpoints.Save(p.name, string(pos), time.Now()); err != nil {
		// 写失败只记录：下次重启会从旧检查点重投这条
		p.log.Warnw("save feed checkpoint failed", "offset", msg.Offset, "err", err)
	}
}
