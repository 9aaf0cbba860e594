package repository

import (
	"context"
	"strconv"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/campusfix-api/internal/models"
)

// SequenceRepository hands out monotonically increasing identifiers.
type SequenceRepository interface {
	NextStaffID(ctx context.Context) (int64, error)
}

type sequenceRepository struct {
	db *gorm.DB
}

// NewSequenceRepository constructs the counter-backed sequence repository.
func NewSequenceRepository(db *gorm.DB) SequenceRepository {
	return &sequenceRepository{db: db}
}

// NextStaffID increments the staff id counter inside a transaction. The row lock taken
// by the UPDATE serialises concurrent callers, so no two calls observe the same value.
// The counter is seeded on first use from the highest staff id already stored.
func (r *sequenceRepository) NextStaffID(ctx context.Context) (int64, error) {
	var next int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.Counter{}).Where("name = ?", models.CounterStaffID).Count(&existing).Error; err != nil {
			return err
		}

		if existing == 0 {
			seed, err := highestStaffID(tx)
			if err != nil {
				return err
			}
			counter := models.Counter{Name: models.CounterStaffID, Value: seed}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&counter).Error; err != nil {
				return err
			}
		}

		update := tx.Model(&models.Counter{}).
			Where("name = ?", models.CounterStaffID).
			Update("value", gorm.Expr("value + ?", 1))
		if update.Error != nil {
			return update.Error
		}

		var counter models.Counter
		if err := tx.Where("name = ?", models.CounterStaffID).First(&counter).Error; err != nil {
			return err
		}
		next = counter.Value
		return nil
	})
	if err != nil {
		return 0, err
	}
	return next, nil
}

func highestStaffID(tx *gorm.DB) (int64, error) {
	var staffIDs []string
	if err := tx.Model(&models.User{}).Where("role = ?", models.RoleStaff).Pluck("staff_id", &staffIDs).Error; err != nil {
		return 0, err
	}

	highest := models.StaffIDFloor
	for _, raw := range staffIDs {
		value, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		if value > highest {
			highest = value
		}
	}
	return highest, nil
}
