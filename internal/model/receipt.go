package model

import "time"

// PublishReceipt identifies a published audit record.
type PublishReceipt struct {
	RecordID       string    `json:"record_id"`
	Publisher      string    `json:"publisher"`
	TopicID        string    `json:"topic_id,omitempty"`
	SequenceNumber int64     `json:"sequence_number,omitempty"`
	TransactionID  string    `json:"transaction_id,omitempty"`
	PublishedAt    time.Time `json:"published_at"`
}
