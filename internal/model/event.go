package model

import "time"

// 文档生命周期事件类型。
const (
	EventDocumentIngested = "document.ingested"
	EventDocumentDeleted  = "document.deleted"
	EventStoreCleared     = "store.cleared"
)

// DocumentEvent 是发布到 Kafka 的文档生命周期事件。
type DocumentEvent struct {
	Event      string    `json:"event"`
	DocID      string    `json:"doc_id,omitempty"`
	Type       string    `json:"type,omitempty"`
	Filename   string    `json:"filename,omitempty"`
	Count      int       `json:"count,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
