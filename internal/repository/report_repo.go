package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/campusfix-api/internal/models"
)

// ErrReportStale is returned when a report changed between read and write.
var ErrReportStale = errors.New("report was modified concurrently")

// ReportFilter narrows report listings. Zero values mean no constraint.
type ReportFilter struct {
	CreatedBy     *uint
	AssignedTo    *string
	Status        models.ReportStatus
	NeverAssigned bool
}

// ReportChange is a single atomic mutation of a report. The update only applies
// while the stored status still equals ExpectedStatus; Note is appended in the
// same transaction.
type ReportChange struct {
	ReportID       uint
	ExpectedStatus models.ReportStatus
	Updates        map[string]interface{}
	Note           *models.ReportNote
}

// AssigneeStatusCount is one bucket of the staff workload aggregate.
type AssigneeStatusCount struct {
	AssignedTo     string
	AssignedToName string
	Status         models.ReportStatus
	Count          int64
}

// ReportRepository persists reports together with their timelines.
type ReportRepository interface {
	Create(ctx context.Context, report *models.Report) error
	GetByID(ctx context.Context, id uint) (models.Report, error)
	List(ctx context.Context, filter ReportFilter) ([]models.Report, error)
	ApplyChange(ctx context.Context, change ReportChange) (models.Report, error)
	AppendConversation(ctx context.Context, message *models.ConversationMessage) error
	DeleteAll(ctx context.Context) (int64, error)
	CountByAssigneeAndStatus(ctx context.Context) ([]AssigneeStatusCount, error)
	BackfillLegacyNotes(ctx context.Context) (int64, error)
}

type reportRepository struct {
	db *gorm.DB
}

// NewReportRepository creates a report repository backed by GORM.
func NewReportRepository(db *gorm.DB) ReportRepository {
	return &reportRepository{db: db}
}

func (r *reportRepository) Create(ctx context.Context, report *models.Report) error {
	return r.db.WithContext(ctx).Create(report).Error
}

func (r *reportRepository) GetByID(ctx context.Context, id uint) (models.Report, error) {
	var report models.Report
	if err := r.withTimeline(r.db.WithContext(ctx)).First(&report, id).Error; err != nil {
		return models.Report{}, err
	}
	return report, nil
}

func (r *reportRepository) List(ctx context.Context, filter ReportFilter) ([]models.Report, error) {
	query := r.withTimeline(r.db.WithContext(ctx).Model(&models.Report{}))

	if filter.CreatedBy != nil {
		query = query.Where("created_by = ?", *filter.CreatedBy)
	}
	if filter.AssignedTo != nil {
		query = query.Where("assigned_to = ?", *filter.AssignedTo)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.NeverAssigned {
		query = query.
			Where("was_ever_assigned = ?", false).
			Where("assigned_to = '' OR assigned_to IS NULL")
	}

	var reports []models.Report
	if err := query.Order("created_at DESC, id DESC").Find(&reports).Error; err != nil {
		return nil, err
	}
	return reports, nil
}

func (r *reportRepository) ApplyChange(ctx context.Context, change ReportChange) (models.Report, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := make(map[string]interface{}, len(change.Updates)+1)
		for column, value := range change.Updates {
			updates[column] = value
		}
		updates["updated_at"] = time.Now().UTC()

		result := tx.Model(&models.Report{}).
			Where("id = ? AND status = ?", change.ReportID, change.ExpectedStatus).
			Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			var exists int64
			if err := tx.Model(&models.Report{}).Where("id = ?", change.ReportID).Count(&exists).Error; err != nil {
				return err
			}
			if exists == 0 {
				return gorm.ErrRecordNotFound
			}
			return ErrReportStale
		}

		if change.Note != nil {
			change.Note.ReportID = change.ReportID
			if err := tx.Create(change.Note).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return models.Report{}, err
	}

	return r.GetByID(ctx, change.ReportID)
}

func (r *reportRepository) AppendConversation(ctx context.Context, message *models.ConversationMessage) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(message).Error; err != nil {
			return err
		}
		return tx.Model(&models.Report{}).
			Where("id = ?", message.ReportID).
			Update("updated_at", time.Now().UTC()).Error
	})
}

func (r *reportRepository) DeleteAll(ctx context.Context) (int64, error) {
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.ReportNote{}).Error; err != nil {
			return err
		}
		if err := tx.Where("1 = 1").Delete(&models.ConversationMessage{}).Error; err != nil {
			return err
		}
		result := tx.Where("1 = 1").Delete(&models.Report{})
		if result.Error != nil {
			return result.Error
		}
		deleted = result.RowsAffected
		return nil
	})
	return deleted, err
}

func (r *reportRepository) CountByAssigneeAndStatus(ctx context.Context) ([]AssigneeStatusCount, error) {
	var rows []AssigneeStatusCount
	err := r.db.WithContext(ctx).
		Model(&models.Report{}).
		Select("assigned_to, MAX(assigned_to_name) AS assigned_to_name, status, COUNT(*) AS count").
		Where("assigned_to <> ''").
		Group("assigned_to, status").
		Order("assigned_to ASC, status ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// BackfillLegacyNotes types notes written before note types existed. Notes that
// captured a status become status changes, the rest become general notes.
func (r *reportRepository) BackfillLegacyNotes(ctx context.Context) (int64, error) {
	var touched int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		legacy := func() *gorm.DB {
			return tx.Model(&models.ReportNote{}).Where("schema_version < ?", models.NoteSchemaVersion)
		}

		steps := []*gorm.DB{
			legacy().
				Where("note_type IS NULL OR note_type = ''").
				Where("status_at_time <> ''").
				Updates(map[string]interface{}{"note_type": models.NoteTypeStatusChange, "schema_version": models.NoteSchemaVersion}),
			legacy().
				Where("note_type IS NULL OR note_type = ''").
				Updates(map[string]interface{}{"note_type": models.NoteTypeGeneral, "schema_version": models.NoteSchemaVersion}),
			legacy().
				Update("schema_version", models.NoteSchemaVersion),
		}
		for _, step := range steps {
			if step.Error != nil {
				return step.Error
			}
			touched += step.RowsAffected
		}
		return nil
	})
	return touched, err
}

func (r *reportRepository) withTimeline(query *gorm.DB) *gorm.DB {
	return query.
		Preload("Notes", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC, id ASC")
		}).
		Preload("Conversation", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC, id ASC")
		})
}
