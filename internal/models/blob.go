package models

import "time"

// Blob 键值存储的一行，值为 JSON 文本
// Version 每次写入加一，用于多个进程共用一个数据库时检测并发修改
type Blob struct {
	Key       string    `gorm:"column:blob_key;primaryKey;size:191" json:"key"`
	Value     string    `gorm:"type:text;not null" json:"value"`
	Version   int64     `gorm:"not null;default:1" json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Blob) TableName() string {
	return "blobs"
}
