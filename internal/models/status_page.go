package models

import (
	"encoding/json"

	"gorm.io/gorm"
)

// Status page themes
const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

// StatusPage represents a public status page over a pinned set of monitors
type StatusPage struct {
	ID          string   `json:"id" gorm:"primaryKey"`
	Name        string   `json:"name" gorm:"not null"`
	Slug        string   `json:"slug" gorm:"uniqueIndex;not null"`
	MonitorIDs  []string `json:"monitors" gorm:"-"`
	MonitorsRaw string   `json:"-" gorm:"column:monitors"`
	Description string   `json:"description"`
	LogoURL     string   `json:"logo_url" gorm:"column:logo_url"`
	Theme       string   `json:"theme" gorm:"default:'light'"`
}

// TableName specifies the table name for StatusPage
func (StatusPage) TableName() string {
	return "status_pages"
}

// BeforeSave marshals MonitorIDs into MonitorsRaw (GORM hook)
func (p *StatusPage) BeforeSave(tx *gorm.DB) error {
	ids := p.MonitorIDs
	if ids == nil {
		ids = []string{}
	}
	raw, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	p.MonitorsRaw = string(raw)
	return nil
}

// AfterFind unmarshals MonitorsRaw into MonitorIDs (GORM hook)
func (p *StatusPage) AfterFind(tx *gorm.DB) error {
	p.MonitorIDs = []string{}
	if p.MonitorsRaw != "" {
		return json.Unmarshal([]byte(p.MonitorsRaw), &p.MonitorIDs)
	}
	return nil
}

// MonitorSummary is the render-ready state of one monitor on a status page.
type MonitorSummary struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Type           string     `json:"type"`
	Status         string     `json:"status"`
	ResponseTimeMs *float64   `json:"response_time_ms"`
	LastCheck      *Timestamp `json:"last_check"`
	UpSince        *Timestamp `json:"up_since"`
	Uptime24h      float64    `json:"uptime_24h"`
	Uptime30d      float64    `json:"uptime_30d"`
}

// StatusPageWithMonitors is a status page with its monitors resolved
type StatusPageWithMonitors struct {
	StatusPage
	Monitors []MonitorSummary `json:"monitors"`
}
