// Package model 定义了知识库中流转的数据结构。
package model

import "time"

// 文档类型：普通文档按分块存储，问答文档按问题存储。
const (
	TypeDoc = "doc"
	TypeQA  = "qa"
)

// DocumentRecord 是每次上传对应的登记记录，对应 documents 表或 registry.json 中的一项。
type DocumentRecord struct {
	DocID     string    `gorm:"type:varchar(36);primaryKey;column:doc_id" json:"doc_id"`
	Type      string    `gorm:"type:varchar(8);not null;column:type" json:"type"`
	Filename  string    `gorm:"type:varchar(255);not null;column:filename" json:"filename"`
	Count     int       `gorm:"not null;column:count" json:"count"`
	CreatedAt time.Time `gorm:"not null;index;column:created_at" json:"created_at"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (DocumentRecord) TableName() string {
	return "documents"
}
