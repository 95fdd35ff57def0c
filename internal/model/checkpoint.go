package model

import "time"

// FeedCheckpoint 每条管道一行；Position 是不透明的续读位置（JSON 编码的 topic/partition/offset）。
// 只有在成功投递之后才允许更新，宁可重投也不能丢。
type FeedCheckpoint struct {
	Name            string    `gorm:"primaryKey;size:64"`
	Position        string    `gorm:"type:json;not null"`
	LastProcessedAt time.Time `gorm:"not null"`
	UpdatedAt       time.Time
}

func (FeedCheckpoint) TableName() string { return "feed_checkpoints" }
