package dto

import "time"

// Realtime event types.
const (
	EventReportCreated       = "report.created"
	EventReportStatusChanged = "report.status_changed"
	EventReportAssigned      = "report.assigned"
	EventReportConversation  = "report.conversation"
)

// ReportEvent is pushed to subscribers when a report changes. It carries identifiers
// and state only; clients refetch the report through the role-filtered endpoints.
type ReportEvent struct {
	Type        string    `json:"type"`
	ReportID    uint      `json:"reportId"`
	Title       string    `json:"title"`
	Status      string    `json:"status"`
	StatusLabel string    `json:"statusLabel"`
	ActorID     uint      `json:"actorId"`
	ActorRole   string    `json:"actorRole"`
	Recipients  []string  `json:"-"`
	OccurredAt  time.Time `json:"occurredAt"`
}
