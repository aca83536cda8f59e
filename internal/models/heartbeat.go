package models

// Heartbeat represents one immutable monitor check result
type Heartbeat struct {
	ID             int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	MonitorID      string    `json:"monitor_id" gorm:"not null;index"`
	Timestamp      Timestamp `json:"timestamp" gorm:"column:timestamp;not null"`
	Status         string    `json:"status" gorm:"not null"` // up or down
	ResponseTimeMs *float64  `json:"response_time_ms" gorm:"column:response_time_ms"`
}

// TableName specifies the table name for Heartbeat
func (Heartbeat) TableName() string {
	return "heartbeats"
}

// HeartbeatStats summarizes the heartbeats of one monitor within a window.
type HeartbeatStats struct {
	Total        int64   `gorm:"column:total"`
	Up           int64   `gorm:"column:up"`
	LatencySum   float64 `gorm:"column:latency_sum"`
	LatencyCount int64   `gorm:"column:latency_count"`
}
