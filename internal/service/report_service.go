package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/campusfix-api/internal/dto"
	"github.com/noah-isme/campusfix-api/internal/models"
	"github.com/noah-isme/campusfix-api/internal/observability"
	"github.com/noah-isme/campusfix-api/internal/repository"
)

var (
	// ErrReportNotFound indicates the report id is unknown.
	ErrReportNotFound = errors.New("report not found")
	// ErrReportConflict is returned when another request changed the report first.
	ErrReportConflict = errors.New("report was updated by another request, reload and retry")
	// ErrEmptyUpdate is returned for a patch that changes nothing.
	ErrEmptyUpdate = errors.New("nothing to update")
	// ErrUnknownStaff is returned when assigning to a staff id with no account.
	ErrUnknownStaff = errors.New("assigned staff member does not exist")
	// ErrEmptyMessage is returned when a message is empty after sanitising.
	ErrEmptyMessage = errors.New("message must not be empty")
)

// StatsInvalidator drops cached aggregates after a report or the staff roster changes.
type StatsInvalidator interface {
	Invalidate(ctx context.Context)
}

// ReportService implements the report lifecycle and role-scoped reads.
type ReportService interface {
	Create(ctx context.Context, caller models.User, req dto.ReportCreateRequest) (dto.ReportResponse, error)
	ListMine(ctx context.Context, caller models.User) ([]dto.ReportResponse, error)
	List(ctx context.Context, caller models.User, filter dto.ReportListFilter) ([]dto.ReportResponse, error)
	ListAssignedToMe(ctx context.Context, caller models.User) ([]dto.ReportResponse, error)
	ListRejected(ctx context.Context, caller models.User) ([]dto.ReportResponse, error)
	Get(ctx context.Context, caller models.User, id uint) (dto.ReportResponse, error)
	Update(ctx context.Context, caller models.User, id uint, req dto.ReportUpdateRequest) (dto.ReportResponse, error)
	AddConversationMessage(ctx context.Context, caller models.User, id uint, req dto.ConversationMessageRequest) (dto.ConversationMessageResponse, error)
	PurgeAll(ctx context.Context, caller models.User, req dto.PurgeReportsRequest) (dto.PurgeReportsResponse, error)
}

type reportService struct {
	reports   repository.ReportRepository
	users     repository.UserRepository
	hasher    PasswordHasher
	activity  ActivityRecorder
	stats     StatsInvalidator
	events    EventPublisher
	validator *validator.Validate
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewReportService wires the lifecycle engine. activity, stats and events may be nil.
func NewReportService(
	reports repository.ReportRepository,
	users repository.UserRepository,
	hasher PasswordHasher,
	activity ActivityRecorder,
	stats StatsInvalidator,
	events EventPublisher,
	validate *validator.Validate,
	logger zerolog.Logger,
) ReportService {
	return &reportService{
		reports:   reports,
		users:     users,
		hasher:    hasher,
		activity:  activity,
		stats:     stats,
		events:    events,
		validator: validate,
		logger:    logger.With().Str("component", "report_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/campusfix-api/internal/service/report"),
	}
}

func (s *reportService) Create(ctx context.Context, caller models.User, req dto.ReportCreateRequest) (dto.ReportResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.ReportResponse{}, err
	}

	priority, err := models.ParsePriority(req.Priority)
	if err != nil {
		return dto.ReportResponse{}, err
	}

	report := models.Report{
		Title:       cleanText(req.Title),
		Description: cleanText(req.Description),
		Location: models.Location{
			Building: cleanText(req.Location.Building),
			Room:     cleanText(req.Location.Room),
		},
		Photo:       strings.TrimSpace(req.Photo),
		Priority:    priority,
		Status:      models.StatusPending,
		StudentID:   caller.LoginID(),
		StudentName: caller.Name,
		CreatedBy:   caller.ID,
	}
	if report.Title == "" {
		return dto.ReportResponse{}, fmt.Errorf("%w: title is empty after sanitising", ErrEmptyMessage)
	}

	if err := s.reports.Create(ctx, &report); err != nil {
		return dto.ReportResponse{}, fmt.Errorf("create report: %w", err)
	}

	observability.ReportsCreated().WithLabelValues(string(report.Priority)).Inc()
	s.afterMutation(ctx, caller, report, "report.created", map[string]interface{}{"priority": string(report.Priority)})
	s.publish(ctx, caller, report, dto.EventReportCreated, RecipientRole(models.RoleAdmin))

	return s.present(caller, report), nil
}

func (s *reportService) ListMine(ctx context.Context, caller models.User) ([]dto.ReportResponse, error) {
	reports, err := s.reports.List(ctx, repository.ReportFilter{CreatedBy: &caller.ID})
	if err != nil {
		return nil, fmt.Errorf("list own reports: %w", err)
	}
	return s.presentAll(caller, reports), nil
}

func (s *reportService) List(ctx context.Context, caller models.User, filter dto.ReportListFilter) ([]dto.ReportResponse, error) {
	if caller.Role != models.RoleAdmin && caller.Role != models.RoleStaff {
		return nil, ErrReportForbidden
	}

	query := repository.ReportFilter{}
	if assignee := strings.TrimSpace(filter.AssignedTo); assignee != "" {
		query.AssignedTo = &assignee
	}
	if raw := strings.TrimSpace(filter.Status); raw != "" {
		status, err := models.ParseReportStatus(raw)
		if err != nil {
			return nil, err
		}
		query.Status = status
	}

	reports, err := s.reports.List(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	return s.presentAll(caller, reports), nil
}

func (s *reportService) ListAssignedToMe(ctx context.Context, caller models.User) ([]dto.ReportResponse, error) {
	staffID := strings.TrimSpace(caller.StaffID)
	if caller.Role != models.RoleStaff || staffID == "" {
		return nil, ErrReportForbidden
	}

	reports, err := s.reports.List(ctx, repository.ReportFilter{AssignedTo: &staffID})
	if err != nil {
		return nil, fmt.Errorf("list assigned reports: %w", err)
	}
	return s.presentAll(caller, reports), nil
}

func (s *reportService) ListRejected(ctx context.Context, caller models.User) ([]dto.ReportResponse, error) {
	if caller.Role != models.RoleStudent {
		return nil, ErrReportForbidden
	}

	reports, err := s.reports.List(ctx, repository.ReportFilter{Status: models.StatusRejected, NeverAssigned: true})
	if err != nil {
		return nil, fmt.Errorf("list rejected reports: %w", err)
	}

	responses := make([]dto.ReportResponse, 0, len(reports))
	for _, report := range reports {
		notes, ok := RejectedFeedNotes(report)
		if !ok {
			continue
		}
		responses = append(responses, dto.NewStudentReportResponse(report, notes))
	}
	return responses, nil
}

func (s *reportService) Get(ctx context.Context, caller models.User, id uint) (dto.ReportResponse, error) {
	report, err := s.load(ctx, id)
	if err != nil {
		return dto.ReportResponse{}, err
	}

	// Staff read the same unfiltered documents the staff/admin listing returns.
	// Students only reach single reports through the rejected feed gate; their own
	// reports come from ListMine.
	switch caller.Role {
	case models.RoleAdmin, models.RoleStaff:
		return dto.NewReportResponse(report), nil
	case models.RoleStudent:
		notes, ok := RejectedFeedNotes(report)
		if !ok {
			return dto.ReportResponse{}, ErrReportForbidden
		}
		return dto.NewStudentReportResponse(report, notes), nil
	default:
		return dto.ReportResponse{}, ErrReportForbidden
	}
}

func (s *reportService) Update(ctx context.Context, caller models.User, id uint, req dto.ReportUpdateRequest) (dto.ReportResponse, error) {
	ctx, span := s.tracer.Start(ctx, "reports.update", trace.WithAttributes(
		attribute.Int("report.id", int(id)),
		attribute.String("actor.role", caller.Role.String()),
	))
	defer span.End()

	if err := s.validator.Struct(req); err != nil {
		return dto.ReportResponse{}, err
	}

	report, err := s.load(ctx, id)
	if err != nil {
		span.RecordError(err)
		return dto.ReportResponse{}, err
	}

	change, err := s.planUpdate(ctx, caller, report, req)
	if err != nil {
		span.RecordError(err)
		return dto.ReportResponse{}, err
	}

	updated, err := s.reports.ApplyChange(ctx, change.ReportChange)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "apply change failed")
		switch {
		case errors.Is(err, repository.ErrReportStale):
			return dto.ReportResponse{}, ErrReportConflict
		case errors.Is(err, gorm.ErrRecordNotFound):
			return dto.ReportResponse{}, ErrReportNotFound
		default:
			return dto.ReportResponse{}, fmt.Errorf("apply report change: %w", err)
		}
	}

	if change.statusChanged {
		observability.ReportTransitions().WithLabelValues(string(report.Status), string(updated.Status), caller.Role.String()).Inc()
	}

	metadata := map[string]interface{}{
		"from_status": string(report.Status),
		"to_status":   string(updated.Status),
	}
	if change.assignmentChanged {
		metadata["assigned_to"] = updated.AssignedTo
	}
	s.afterMutation(ctx, caller, updated, "report.updated", metadata)

	if change.statusChanged {
		s.publish(ctx, caller, updated, dto.EventReportStatusChanged,
			RecipientUser(updated.CreatedBy), RecipientStaff(updated.AssignedTo), RecipientRole(models.RoleAdmin))
	}
	if change.assignmentChanged && updated.IsAssigned() {
		s.publish(ctx, caller, updated, dto.EventReportAssigned,
			RecipientStaff(updated.AssignedTo), RecipientRole(models.RoleAdmin))
	}

	span.SetStatus(codes.Ok, "updated")
	return s.present(caller, updated), nil
}

type plannedChange struct {
	repository.ReportChange
	statusChanged     bool
	assignmentChanged bool
}

// planUpdate authorises the patch and turns it into a single store mutation.
func (s *reportService) planUpdate(ctx context.Context, caller models.User, report models.Report, req dto.ReportUpdateRequest) (plannedChange, error) {
	switch caller.Role {
	case models.RoleAdmin:
	case models.RoleStaff:
		if !AssignedToStaff(caller, report) {
			return plannedChange{}, ErrReportForbidden
		}
		if req.AssignedTo != nil {
			return plannedChange{}, ErrReportForbidden
		}
	default:
		return plannedChange{}, ErrReportForbidden
	}

	note := ""
	if req.AdminNotes != nil {
		note = cleanText(*req.AdminNotes)
	}
	if req.Status == nil && req.AssignedTo == nil && note == "" {
		return plannedChange{}, ErrEmptyUpdate
	}

	plan := plannedChange{ReportChange: repository.ReportChange{
		ReportID:       report.ID,
		ExpectedStatus: report.Status,
		Updates:        map[string]interface{}{},
	}}

	resulting := report.Status
	if req.Status != nil {
		target, err := models.ParseReportStatus(*req.Status)
		if err != nil {
			return plannedChange{}, err
		}
		if err := CheckTransition(caller, report, target, note); err != nil {
			return plannedChange{}, err
		}
		if target != report.Status {
			plan.statusChanged = true
			plan.Updates["status"] = target
		}
		if target == models.StatusRejected {
			plan.Updates["rejection_note"] = note
		}
		resulting = target
	}

	if req.AssignedTo != nil {
		assignee := strings.TrimSpace(*req.AssignedTo)
		name := ""
		if assignee != "" {
			staff, err := s.users.FindStaff(ctx, assignee)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return plannedChange{}, ErrUnknownStaff
				}
				return plannedChange{}, fmt.Errorf("find staff: %w", err)
			}
			name = staff.Name
		}

		next := report
		next.Assign(assignee, name)
		plan.assignmentChanged = next.AssignedTo != report.AssignedTo
		plan.Updates["assigned_to"] = next.AssignedTo
		plan.Updates["assigned_to_name"] = next.AssignedToName
		if next.WasEverAssigned {
			plan.Updates["was_ever_assigned"] = true
		}
		if next.IsAssigned() && note != "" {
			plan.Updates["assignment_note"] = note
		}
	}

	if note != "" {
		plan.Note = &models.ReportNote{
			ByUserID:      caller.ID,
			ByName:        caller.Name,
			ByRole:        caller.Role,
			Text:          note,
			StatusAtTime:  resulting,
			NoteType:      models.InferNoteType(plan.statusChanged, plan.assignmentChanged),
			SchemaVersion: models.NoteSchemaVersion,
		}
	}

	return plan, nil
}

func (s *reportService) AddConversationMessage(ctx context.Context, caller models.User, id uint, req dto.ConversationMessageRequest) (dto.ConversationMessageResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.ConversationMessageResponse{}, err
	}

	report, err := s.load(ctx, id)
	if err != nil {
		return dto.ConversationMessageResponse{}, err
	}
	if caller.Role != models.RoleAdmin && !AssignedToStaff(caller, report) {
		return dto.ConversationMessageResponse{}, ErrReportForbidden
	}

	text := cleanText(req.Message)
	if text == "" {
		return dto.ConversationMessageResponse{}, ErrEmptyMessage
	}

	message := models.ConversationMessage{
		ReportID:    report.ID,
		SenderID:    caller.ID,
		SenderName:  caller.Name,
		SenderRole:  caller.Role,
		SenderImage: caller.ProfileImage,
		Message:     text,
	}
	if err := s.reports.AppendConversation(ctx, &message); err != nil {
		return dto.ConversationMessageResponse{}, fmt.Errorf("append conversation: %w", err)
	}

	s.publish(ctx, caller, report, dto.EventReportConversation,
		RecipientStaff(report.AssignedTo), RecipientRole(models.RoleAdmin))

	return dto.NewConversationMessageResponse(message), nil
}

func (s *reportService) PurgeAll(ctx context.Context, caller models.User, req dto.PurgeReportsRequest) (dto.PurgeReportsResponse, error) {
	if caller.Role != models.RoleAdmin {
		return dto.PurgeReportsResponse{}, ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.PurgeReportsResponse{}, err
	}
	if err := s.hasher.Check(caller.PasswordHash, req.Password); err != nil {
		return dto.PurgeReportsResponse{}, ErrInvalidCredentials
	}

	deleted, err := s.reports.DeleteAll(ctx)
	if err != nil {
		return dto.PurgeReportsResponse{}, fmt.Errorf("delete reports: %w", err)
	}

	s.logger.Warn().Uint("admin_id", caller.ID).Int64("deleted", deleted).Msg("all reports purged")
	s.record(ctx, ActivityEntry{
		ActorID:    caller.ID,
		ActorRole:  caller.Role.String(),
		Action:     "report.purged",
		EntityType: models.EntityReport,
		Metadata:   map[string]interface{}{"deleted": deleted},
	})
	if s.stats != nil {
		s.stats.Invalidate(ctx)
	}

	return dto.PurgeReportsResponse{Deleted: deleted}, nil
}

func (s *reportService) load(ctx context.Context, id uint) (models.Report, error) {
	report, err := s.reports.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Report{}, ErrReportNotFound
		}
		return models.Report{}, fmt.Errorf("load report: %w", err)
	}
	return report, nil
}

func (s *reportService) present(caller models.User, report models.Report) dto.ReportResponse {
	if caller.Role == models.RoleStudent {
		return dto.NewStudentReportResponse(report, FilterNotesForStudent(report.Notes, report.Status))
	}
	return dto.NewReportResponse(report)
}

func (s *reportService) presentAll(caller models.User, reports []models.Report) []dto.ReportResponse {
	responses := make([]dto.ReportResponse, 0, len(reports))
	for _, report := range reports {
		responses = append(responses, s.present(caller, report))
	}
	return responses
}

func (s *reportService) afterMutation(ctx context.Context, caller models.User, report models.Report, action string, metadata map[string]interface{}) {
	s.record(ctx, ActivityEntry{
		ActorID:    caller.ID,
		ActorRole:  caller.Role.String(),
		Action:     action,
		EntityType: models.EntityReport,
		EntityID:   &report.ID,
		Metadata:   metadata,
	})
	if s.stats != nil {
		s.stats.Invalidate(ctx)
	}
}

func (s *reportService) record(ctx context.Context, entry ActivityEntry) {
	if s.activity == nil {
		return
	}
	if _, err := s.activity.Record(ctx, entry); err != nil {
		s.logger.Warn().Err(err).Str("action", entry.Action).Msg("failed to record activity")
	}
}

func (s *reportService) publish(ctx context.Context, caller models.User, report models.Report, eventType string, recipients ...string) {
	if s.events == nil {
		return
	}
	s.events.Publish(ctx, dto.ReportEvent{
		Type:        eventType,
		ReportID:    report.ID,
		Title:       report.Title,
		Status:      string(report.Status),
		StatusLabel: report.Status.ClientLabel(),
		ActorID:     caller.ID,
		ActorRole:   caller.Role.String(),
		Recipients:  recipients,
		OccurredAt:  time.Now().UTC(),
	})
}
