package dto

import (
	"time"

	"github.com/noah-isme/campusfix-api/internal/models"
)

// LocationPayload identifies where an issue is.
type LocationPayload struct {
	Building string `json:"building" validate:"required,max=128"`
	Room     string `json:"room" validate:"required,max=64"`
}

// ReportCreateRequest is submitted by a student filing an issue.
type ReportCreateRequest struct {
	Title       string          `json:"title" validate:"required,max=255"`
	Description string          `json:"description" validate:"required,max=5000"`
	Location    LocationPayload `json:"location" validate:"required"`
	Photo       string          `json:"photo" validate:"omitempty,url,max=512"`
	Priority    string          `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
}

// ReportUpdateRequest patches status, assignment and/or appends a note.
type ReportUpdateRequest struct {
	Status     *string `json:"status" validate:"omitempty,max=32"`
	AdminNotes *string `json:"adminNotes" validate:"omitempty,max=2000"`
	AssignedTo *string `json:"assignedTo" validate:"omitempty,max=32"`
}

// ConversationMessageRequest posts a message on the admin/staff thread.
type ConversationMessageRequest struct {
	Message string `json:"message" validate:"required,max=2000"`
}

// PurgeReportsRequest re-confirms the admin password before deleting every report.
type PurgeReportsRequest struct {
	Password string `json:"password" validate:"required,max=72"`
}

// PurgeReportsResponse reports how many reports were removed.
type PurgeReportsResponse struct {
	Deleted int64 `json:"deleted"`
}

// ReportListFilter narrows staff/admin report listings.
type ReportListFilter struct {
	AssignedTo string
	Status     string
}

// ReportNoteResponse is a timeline entry.
type ReportNoteResponse struct {
	ID           uint      `json:"id"`
	ByUserID     uint      `json:"byUserId"`
	ByName       string    `json:"byName"`
	ByRole       string    `json:"byRole"`
	Text         string    `json:"text"`
	StatusAtTime string    `json:"statusAtTime,omitempty"`
	NoteType     string    `json:"noteType"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ConversationMessageResponse is an admin/staff chat line.
type ConversationMessageResponse struct {
	ID          uint      `json:"id"`
	Sender      uint      `json:"sender"`
	SenderName  string    `json:"senderName"`
	SenderRole  string    `json:"senderRole"`
	SenderImage string    `json:"senderImage,omitempty"`
	Message     string    `json:"message"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ReportResponse is the serialised report. Fields left empty are omitted from student views.
type ReportResponse struct {
	ID                uint                          `json:"id"`
	Title             string                        `json:"title"`
	Description       string                        `json:"description"`
	Location          LocationPayload               `json:"location"`
	Photo             string                        `json:"photo,omitempty"`
	Priority          string                        `json:"priority"`
	Status            string                        `json:"status"`
	StatusLabel       string                        `json:"statusLabel"`
	StudentID         string                        `json:"studentId"`
	StudentName       string                        `json:"studentName"`
	CreatedBy         uint                          `json:"createdBy"`
	AssignedTo        string                        `json:"assignedTo,omitempty"`
	AssignedToName    string                        `json:"assignedToName,omitempty"`
	WasEverAssigned   *bool                         `json:"wasEverAssigned,omitempty"`
	RejectionNote     string                        `json:"rejectionNote,omitempty"`
	AssignmentNote    string                        `json:"assignmentNote,omitempty"`
	Notes             []ReportNoteResponse          `json:"notes"`
	ConversationNotes []ConversationMessageResponse `json:"conversationNotes,omitempty"`
	CreatedAt         time.Time                     `json:"createdAt"`
	UpdatedAt         time.Time                     `json:"updatedAt"`
}

// NewReportResponse renders the unfiltered view used for staff and admins.
func NewReportResponse(report models.Report) ReportResponse {
	response := baseReportResponse(report)
	response.AssignedTo = report.AssignedTo
	response.AssignedToName = report.AssignedToName
	everAssigned := report.WasEverAssigned
	response.WasEverAssigned = &everAssigned
	response.AssignmentNote = report.AssignmentNote
	response.Notes = NewReportNoteResponseSlice(report.Notes)

	conversation := make([]ConversationMessageResponse, 0, len(report.Conversation))
	for _, message := range report.Conversation {
		conversation = append(conversation, NewConversationMessageResponse(message))
	}
	response.ConversationNotes = conversation
	return response
}

// NewStudentReportResponse renders the student view with the already filtered notes.
// Staff routing details and the admin/staff thread are left out.
func NewStudentReportResponse(report models.Report, visibleNotes []models.ReportNote) ReportResponse {
	response := baseReportResponse(report)
	response.Notes = NewReportNoteResponseSlice(visibleNotes)
	return response
}

func baseReportResponse(report models.Report) ReportResponse {
	return ReportResponse{
		ID:          report.ID,
		Title:       report.Title,
		Description: report.Description,
		Location: LocationPayload{
			Building: report.Location.Building,
			Room:     report.Location.Room,
		},
		Photo:         report.Photo,
		Priority:      string(report.Priority),
		Status:        string(report.Status),
		StatusLabel:   report.Status.ClientLabel(),
		StudentID:     report.StudentID,
		StudentName:   report.StudentName,
		CreatedBy:     report.CreatedBy,
		RejectionNote: report.RejectionNote,
		CreatedAt:     report.CreatedAt,
		UpdatedAt:     report.UpdatedAt,
	}
}

// NewReportNoteResponseSlice converts timeline entries.
func NewReportNoteResponseSlice(notes []models.ReportNote) []ReportNoteResponse {
	out := make([]ReportNoteResponse, 0, len(notes))
	for _, note := range notes {
		out = append(out, ReportNoteResponse{
			ID:           note.ID,
			ByUserID:     note.ByUserID,
			ByName:       note.ByName,
			ByRole:       note.ByRole.String(),
			Text:         note.Text,
			StatusAtTime: string(note.StatusAtTime),
			NoteType:     string(note.NoteType),
			CreatedAt:    note.CreatedAt,
		})
	}
	return out
}

// NewConversationMessageResponse converts a chat line.
func NewConversationMessageResponse(message models.ConversationMessage) ConversationMessageResponse {
	return ConversationMessageResponse{
		ID:          message.ID,
		Sender:      message.SenderID,
		SenderName:  message.SenderName,
		SenderRole:  message.SenderRole.String(),
		SenderImage: message.SenderImage,
		Message:     message.Message,
		CreatedAt:   message.CreatedAt,
	}
}
