package models

import "time"

// Message is one unit of monitored content, normalized by an ingest adapter.
// Immutable once created; consumed exactly once by the classifier.
type Message struct {
	ID         string    `db:"id" json:"id"`
	ChildID    int64     `db:"child_id" json:"child_id"`
	App        string    `db:"app" json:"app"`
	Sender     string    `db:"sender" json:"sender"`
	Text       string    `db:"text" json:"text"`
	ReceivedAt time.Time `db:"received_at" json:"received_at"`
}

// Channel is a monitored conversation source on one platform for one child.
// LastCollectedMessageID is the high-water mark for collector polling.
type Channel struct {
	ID                     int64  `db:"id" json:"id"`
	ChildID                int64  `db:"child_id" json:"child_id"`
	App                    string `db:"app" json:"app"`
	ExternalID             int64  `db:"external_id" json:"external_id"`
	MonitoringActive       bool   `db:"monitoring_active" json:"monitoring_active"`
	LastCollectedMessageID int64  `db:"last_collected_message_id" json:"last_collected_message_id"`
}
