package engine

import "errors"

var (
	ErrInvalidProtocol  = errors.New("invalid protocol")
	ErrInvalidTarget    = errors.New("invalid target")
	ErrQuotaExceeded    = errors.New("monitor quota exceeded")
	ErrIntervalTooShort = errors.New("interval below plan minimum")
	ErrMonitorNotFound  = errors.New("monitor not found")
	ErrSlugNotFound     = errors.New("status page not found")

	ErrStatusPageQuotaExceeded = errors.New("status page quota exceeded")
	ErrSlugTaken               = errors.New("status page slug already taken")
	ErrInvalidStatusPage       = errors.New("invalid status page")
	ErrNotPushMonitor          = errors.New("monitor does not accept pushes")
	ErrInvalidStatus           = errors.New("invalid administrative status")
	ErrIncidentNotFound        = errors.New("incident not found")
)
