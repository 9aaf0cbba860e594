package service

import (
	"errors"
	"strings"

	"github.com/noah-isme/campusfix-api/internal/models"
)

var (
	// ErrReportForbidden is returned when the caller may not see or change the report.
	ErrReportForbidden = errors.New("not allowed to access this report")
	// ErrReportClosed is returned when staff try to move a resolved or rejected report.
	ErrReportClosed = errors.New("report is closed and can no longer be updated")
	// ErrInvalidTransition is returned for status changes the caller's role does not allow.
	ErrInvalidTransition = errors.New("status transition not allowed")
	// ErrRejectionNoteRequired is returned when an admin rejects without a note.
	ErrRejectionNoteRequired = errors.New("a note is required to reject a report")
)

type transition struct {
	from models.ReportStatus
	to   models.ReportStatus
}

// staffTransitions lists the only moves staff may make on a report assigned to them.
var staffTransitions = map[transition]struct{}{
	{models.StatusPending, models.StatusInProgress}:    {},
	{models.StatusInProgress, models.StatusInProgress}: {},
	{models.StatusInProgress, models.StatusResolved}:   {},
}

// CheckTransition decides whether caller may move report to target.
func CheckTransition(caller models.User, report models.Report, target models.ReportStatus, note string) error {
	switch caller.Role {
	case models.RoleStaff:
		if !AssignedToStaff(caller, report) {
			return ErrReportForbidden
		}
		if report.Status.IsClosed() {
			return ErrReportClosed
		}
		if _, ok := staffTransitions[transition{report.Status, target}]; !ok {
			return ErrInvalidTransition
		}
		return nil
	case models.RoleAdmin:
		if target != models.StatusRejected {
			return nil
		}
		if strings.TrimSpace(note) == "" {
			return ErrRejectionNoteRequired
		}
		if report.Status != models.StatusPending && report.Status != models.StatusRejected {
			return ErrInvalidTransition
		}
		return nil
	case models.RoleStudent:
		return ErrReportForbidden
	default:
		return ErrReportForbidden
	}
}

// AssignedToStaff reports whether the report is currently routed to the caller.
func AssignedToStaff(caller models.User, report models.Report) bool {
	return caller.Role == models.RoleStaff &&
		report.IsAssigned() &&
		report.AssignedTo == strings.TrimSpace(caller.StaffID)
}

// StudentVisibleNote reports whether a student may read the note.
// Untyped notes only exist until the startup backfill has run.
func StudentVisibleNote(note models.ReportNote, reportStatus models.ReportStatus) bool {
	switch note.NoteType {
	case models.NoteTypeStatusChange:
		return true
	case models.NoteTypeAssignment:
		return false
	default:
		return note.StatusAtTime != "" || reportStatus == models.StatusRejected
	}
}

// FilterNotesForStudent keeps the notes a student may read, preserving order.
func FilterNotesForStudent(notes []models.ReportNote, reportStatus models.ReportStatus) []models.ReportNote {
	visible := make([]models.ReportNote, 0, len(notes))
	for _, note := range notes {
		if StudentVisibleNote(note, reportStatus) {
			visible = append(visible, note)
		}
	}
	return visible
}

// RejectedFeedNotes gates the campus-wide rejected feed. A report qualifies when it was
// rejected without ever being routed to staff and still has a note a student may read.
func RejectedFeedNotes(report models.Report) ([]models.ReportNote, bool) {
	if report.Status != models.StatusRejected || report.WasEverAssigned || report.IsAssigned() {
		return nil, false
	}
	notes := FilterNotesForStudent(report.Notes, report.Status)
	if len(notes) == 0 {
		return nil, false
	}
	return notes, true
}
