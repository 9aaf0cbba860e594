package repository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/campusfix-api/internal/models"
)

// ActivityLogFilter narrows the audit trail. EntityID is only honoured together with
// EntityType, so "report 12" never matches "user 12". ActionPrefix selects a whole
// namespace such as "report." and is ignored when Action is set.
type ActivityLogFilter struct {
	Page         int
	PageSize     int
	ActorID      *uint
	Action       string
	ActionPrefix string
	EntityType   string
	EntityID     *uint
	Since        *time.Time
}

// ActivityLogRepository persists the audit trail of report and account actions.
type ActivityLogRepository interface {
	Create(ctx context.Context, entry *models.ActivityLog) error
	List(ctx context.Context, filter ActivityLogFilter) ([]models.ActivityLog, int64, error)
}

type activityLogRepository struct {
	db *gorm.DB
}

// NewActivityLogRepository constructs the activity log repository.
func NewActivityLogRepository(db *gorm.DB) ActivityLogRepository {
	return &activityLogRepository{db: db}
}

func (r *activityLogRepository) Create(ctx context.Context, entry *models.ActivityLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// List returns one page of matching entries, newest first, with the unpaged total.
func (r *activityLogRepository) List(ctx context.Context, filter ActivityLogFilter) ([]models.ActivityLog, int64, error) {
	matching := r.db.WithContext(ctx).Model(&models.ActivityLog{}).Scopes(filter.scope)

	var total int64
	if err := matching.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []models.ActivityLog{}, 0, nil
	}

	var entries []models.ActivityLog
	err := matching.
		Scopes(paginate(filter.Page, filter.PageSize)).
		Order("created_at DESC").
		Order("id DESC").
		Find(&entries).Error
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func (f ActivityLogFilter) scope(db *gorm.DB) *gorm.DB {
	if f.ActorID != nil {
		db = db.Where("actor_id = ?", *f.ActorID)
	}

	switch {
	case f.Action != "":
		db = db.Where("action = ?", f.Action)
	case f.ActionPrefix != "":
		db = db.Where(`action LIKE ? ESCAPE '\'`, likePrefix(f.ActionPrefix))
	}

	if f.EntityType != "" {
		db = db.Where("entity_type = ?", f.EntityType)
		if f.EntityID != nil {
			db = db.Where("entity_id = ?", *f.EntityID)
		}
	}

	if f.Since != nil {
		db = db.Where("created_at >= ?", *f.Since)
	}
	return db
}

func paginate(page, size int) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if size <= 0 {
			return db
		}
		if page <= 0 {
			page = 1
		}
		return db.Offset((page - 1) * size).Limit(size)
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePrefix(prefix string) string {
	return likeEscaper.Replace(prefix) + "%"
}
