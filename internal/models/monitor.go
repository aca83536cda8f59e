package models

import (
	"encoding/json"

	"gorm.io/gorm"
)

// Monitor kinds
const (
	KindHTTP = "http"
	KindTCP  = "tcp"
	KindPing = "ping"
	KindDNS  = "dns"
	KindPush = "push"
)

// Monitor statuses
const (
	StatusUnknown     = "unknown"
	StatusUp          = "up"
	StatusDown        = "down"
	StatusPaused      = "paused"
	StatusMaintenance = "maintenance"
)

// Kinds lists every recognized monitor kind.
var Kinds = []string{KindHTTP, KindTCP, KindPing, KindDNS, KindPush}

// IsValidKind reports whether kind is a recognized protocol.
func IsValidKind(kind string) bool {
	for _, k := range Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// IsAdministrative reports whether status is set by an operator rather than
// by check execution.
func IsAdministrative(status string) bool {
	return status == StatusPaused || status == StatusMaintenance
}

// Monitor represents a monitor configuration and its latest observed state
type Monitor struct {
	ID             string     `json:"id" gorm:"primaryKey"`
	Name           string     `json:"name" gorm:"not null"`
	Type           string     `json:"type" gorm:"not null"`
	Target         string     `json:"target" gorm:"not null"`
	IntervalS      int        `json:"interval_s" gorm:"column:interval_s;default:60"`
	TimeoutS       int        `json:"timeout_s" gorm:"column:timeout_s;default:10"`
	Retries        int        `json:"retries" gorm:"default:0"`
	Status         string     `json:"status" gorm:"default:'unknown'"`
	UpSince        *Timestamp `json:"up_since"`
	LastCheck      *Timestamp `json:"last_check"`
	ResponseTimeMs *float64   `json:"response_time_ms" gorm:"column:response_time_ms"`
	CertExpiryDays *int       `json:"cert_expiry_days" gorm:"column:cert_expiry_days"`
	Tags           []string   `json:"tags" gorm:"-"`
	TagsRaw        string     `json:"-" gorm:"column:tags"`
	CreatedAt      Timestamp  `json:"created_at" gorm:"autoCreateTime:false"`
}

// TableName specifies the table name for Monitor
func (Monitor) TableName() string {
	return "monitors"
}

// BeforeSave marshals Tags into TagsRaw (GORM hook)
func (m *Monitor) BeforeSave(tx *gorm.DB) error {
	tags := m.Tags
	if tags == nil {
		tags = []string{}
	}
	raw, err := json.Marshal(tags)
	if err != nil {
		return err
	}
	m.TagsRaw = string(raw)
	return nil
}

// AfterFind unmarshals TagsRaw into Tags (GORM hook)
func (m *Monitor) AfterFind(tx *gorm.DB) error {
	m.Tags = []string{}
	if m.TagsRaw != "" {
		return json.Unmarshal([]byte(m.TagsRaw), &m.Tags)
	}
	return nil
}

// IsUp reports the last known up/down state as a boolean.
func (m *Monitor) IsUp() bool {
	return m.Status == StatusUp
}
