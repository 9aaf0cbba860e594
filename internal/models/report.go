package models

import (
	"errors"
	"strings"
	"time"
)

// ReportStatus is the lifecycle state of a report.
type ReportStatus string

const (
	StatusPending    ReportStatus = "pending"
	StatusInProgress ReportStatus = "in-progress"
	StatusResolved   ReportStatus = "resolved"
	StatusRejected   ReportStatus = "rejected"
)

// clientResolvedLabel is what the mobile client calls a resolved report.
const clientResolvedLabel = "completed"

// ErrInvalidStatus is returned for status strings outside the accepted vocabulary.
var ErrInvalidStatus = errors.New("invalid report status")

// ParseReportStatus maps request vocabulary onto canonical statuses.
// "completed" is accepted as an alias of resolved.
func ParseReportStatus(raw string) (ReportStatus, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(StatusPending):
		return StatusPending, nil
	case string(StatusInProgress):
		return StatusInProgress, nil
	case string(StatusResolved), clientResolvedLabel:
		return StatusResolved, nil
	case string(StatusRejected):
		return StatusRejected, nil
	default:
		return "", ErrInvalidStatus
	}
}

// ClientLabel returns the label shown by clients.
func (s ReportStatus) ClientLabel() string {
	if s == StatusResolved {
		return clientResolvedLabel
	}
	return string(s)
}

// IsClosed reports whether staff can no longer move the report.
func (s ReportStatus) IsClosed() bool {
	return s == StatusResolved || s == StatusRejected
}

// Priority ranks how urgent a report is.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// ErrInvalidPriority is returned for unknown priority strings.
var ErrInvalidPriority = errors.New("invalid report priority")

// ParsePriority normalises a priority; an empty value means medium.
func ParsePriority(raw string) (Priority, error) {
	switch Priority(strings.ToLower(strings.TrimSpace(raw))) {
	case "", PriorityMedium:
		return PriorityMedium, nil
	case PriorityLow:
		return PriorityLow, nil
	case PriorityHigh:
		return PriorityHigh, nil
	case PriorityUrgent:
		return PriorityUrgent, nil
	default:
		return "", ErrInvalidPriority
	}
}

// Location pins a report to a room.
type Location struct {
	Building string `gorm:"size:128" json:"building"`
	Room     string `gorm:"size:64" json:"room"`
}

// Report is a facility issue filed by a student.
type Report struct {
	ID              uint                  `gorm:"primaryKey" json:"id"`
	Title           string                `gorm:"size:255;not null" json:"title"`
	Description     string                `gorm:"type:text" json:"description"`
	Location        Location              `gorm:"embedded;embeddedPrefix:location_" json:"location"`
	Photo           string                `gorm:"size:512" json:"photo,omitempty"`
	Priority        Priority              `gorm:"size:16;not null" json:"priority"`
	Status          ReportStatus          `gorm:"size:16;not null;index" json:"status"`
	StudentID       string                `gorm:"size:32;index" json:"student_id"`
	StudentName     string                `gorm:"size:255" json:"student_name"`
	CreatedBy       uint                  `gorm:"not null;index" json:"created_by"`
	AssignedTo      string                `gorm:"size:32;index" json:"assigned_to"`
	AssignedToName  string                `gorm:"size:255" json:"assigned_to_name"`
	WasEverAssigned bool                  `gorm:"not null" json:"was_ever_assigned"`
	RejectionNote   string                `gorm:"type:text" json:"rejection_note"`
	AssignmentNote  string                `gorm:"type:text" json:"assignment_note"`
	Notes           []ReportNote          `gorm:"foreignKey:ReportID;constraint:OnDelete:CASCADE" json:"notes"`
	Conversation    []ConversationMessage `gorm:"foreignKey:ReportID;constraint:OnDelete:CASCADE" json:"conversation"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

// IsAssigned reports whether a staff member currently owns the report.
func (r Report) IsAssigned() bool {
	return strings.TrimSpace(r.AssignedTo) != ""
}

// Assign routes the report to a staff member, or unassigns it for an empty id.
// WasEverAssigned is never cleared once set.
func (r *Report) Assign(staffID, staffName string) {
	r.AssignedTo = strings.TrimSpace(staffID)
	if r.AssignedTo == "" {
		r.AssignedToName = ""
		return
	}
	r.AssignedToName = staffName
	r.WasEverAssigned = true
}

// NoteType classifies a timeline entry.
type NoteType string

const (
	NoteTypeStatusChange NoteType = "status_change"
	NoteTypeAssignment   NoteType = "assignment"
	NoteTypeGeneral      NoteType = "general"
)

// NoteSchemaVersion is stamped on every note written by this service.
// Earlier rows may lack a note type and are backfilled on startup.
const NoteSchemaVersion = 2

// InferNoteType picks the note type for a mutation.
func InferNoteType(statusChanged, assignmentChanged bool) NoteType {
	switch {
	case statusChanged:
		return NoteTypeStatusChange
	case assignmentChanged:
		return NoteTypeAssignment
	default:
		return NoteTypeGeneral
	}
}

// ReportNote is one entry on a report's timeline.
type ReportNote struct {
	ID            uint         `gorm:"primaryKey" json:"id"`
	ReportID      uint         `gorm:"not null;index" json:"report_id"`
	ByUserID      uint         `json:"by_user_id"`
	ByName        string       `gorm:"size:255" json:"by_name"`
	ByRole        Role         `gorm:"size:16" json:"by_role"`
	Text          string       `gorm:"type:text;not null" json:"text"`
	StatusAtTime  ReportStatus `gorm:"size:16" json:"status_at_time,omitempty"`
	NoteType      NoteType     `gorm:"size:32;index" json:"note_type,omitempty"`
	SchemaVersion int          `gorm:"not null;default:1" json:"-"`
	CreatedAt     time.Time    `json:"created_at"`
}

// ConversationMessage is a chat line between an admin and the assigned staff member.
type ConversationMessage struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ReportID    uint      `gorm:"not null;index" json:"report_id"`
	SenderID    uint      `gorm:"not null" json:"sender_id"`
	SenderName  string    `gorm:"size:255" json:"sender_name"`
	SenderRole  Role      `gorm:"size:16" json:"sender_role"`
	SenderImage string    `gorm:"size:512" json:"sender_image,omitempty"`
	Message     string    `gorm:"type:text;not null" json:"message"`
	CreatedAt   time.Time `json:"created_at"`
}
