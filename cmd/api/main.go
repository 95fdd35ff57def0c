package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"

	"Community_Channels/internal/feed"
	"Community_Channels/internal/handler"
	"Community_Channels/internal/model"
	"Community_Channels/internal/pkg"
	"Community_Channels/internal/repository/mysql"
	"Community_Channels/internal/repository/redis"
	"Community_Channels/internal/router"
	"Community_Channels/internal/service"
	"Community_Channels/internal/ws"

	"github.com/joho/godotenv"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	_ = godotenv.Load()

	log := pkg.NewLogger("channels-api")
	defer log.Sync()

	dsn := envOr("MYSQL_DSN", "user:password@tcp(127.0.0.1:3306)/channels?charset=utf8mb4&parseTime=True")
	if err := mysql.InitDB(dsn); err != nil {
		log.Fatalw("mysql init failed", "err", err)
	}

	// 自动建表（开发阶段 OK）
	mysql.DB.AutoMigrate(
		&model.Channel{},
		&model.ChannelMembership{},
		&model.Message{},
		&model.NotificationRecord{},
		&model.FeedCheckpoint{},
	)

	// 限流是建议性的：redis 连不上照常启动，运行期 fail-open
	var limiter *redis.RateLimiter
	if err := redis.Init(envOr("REDIS_ADDR", "127.0.0.1:6379"), os.Getenv("REDIS_PASSWORD"), 0); err != nil {
		log.Warnw("redis unavailable, rate limiting disabled", "err", err)
	} else {
		limiter = redis.NewRateLimiter()
		defer redis.Close()
	}

	// 实时扇出：进程级单例，显式启动/停止
	hub := ws.NewHub(log)
	go hub.Run()
	defer hub.Stop()

	memberships := service.NewMembershipService(mysql.DB, limiter, hub, log)
	messages := service.NewMessageService(mysql.DB, limiter, hub, log)
	moderation := service.NewModerationService(mysql.DB, memberships, hub, log)

	// 通知变更流：kafka 未配置时降级为「无实时推送」，不阻塞启动
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg := pkg.KafkaConfig{
			Brokers: strings.Split(brokers, ","),
			Topic:   envOr("KAFKA_NOTIFY_TOPIC", "notifications"),
		}

		producer, err := pkg.NewKafkaProducer(cfg)
		if err != nil {
			log.Warnw("kafka producer init failed, notification outbox disabled", "err", err)
		} else {
			relayer := feed.NewOutboxRelayer(mysql.DB, producer, log)
			relayer.Start()
			defer relayer.Stop()
			defer producer.Close()
		}

		pipeline := feed.NewPipeline(
			feed.KafkaSourceFactory(cfg),
			&mysql.CheckpointRepository{DB: mysql.DB},
			hub,
			log,
		)
		pipeline.Start()
		defer pipeline.Stop()
	} else {
		log.Warnw("KAFKA_BROKERS not set, notification feed disabled")
	}

	r := router.InitRouter(router.Handlers{
		Channel:    handler.NewChannelHandler(memberships),
		Message:    handler.NewMessageHandler(messages),
		Membership: handler.NewMembershipHandler(memberships),
		Moderation: handler.NewModerationHandler(moderation),
		WS:         ws.NewHandler(hub, messages, memberships),
	})

	go func() {
		if err := r.Run(envOr("LISTEN_ADDR", ":8080")); err != nil {
			log.Fatalw("http server stopped", "err", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Infow("shutting down")
}
