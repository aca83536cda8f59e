package models

// Incident is a contiguous span of downtime for one monitor. An incident
// with a nil ResolvedAt is open.
type Incident struct {
	ID         string     `json:"id" gorm:"primaryKey"`
	MonitorID  string     `json:"monitor_id" gorm:"not null;index"`
	StartedAt  Timestamp  `json:"started_at" gorm:"not null"`
	ResolvedAt *Timestamp `json:"resolved_at"`
	DurationS  *int64     `json:"duration_s" gorm:"column:duration_s"`
	Cause      string     `json:"cause"`
	Notified   bool       `json:"notified" gorm:"default:false"`
}

// TableName specifies the table name for Incident
func (Incident) TableName() string {
	return "incidents"
}

// IsOpen reports whether the incident is still unresolved.
func (i *Incident) IsOpen() bool {
	return i.ResolvedAt == nil
}

// IncidentFilter narrows an incident listing.
type IncidentFilter struct {
	MonitorID string
	OpenOnly  bool
}
