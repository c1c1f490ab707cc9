package postgres

import (
	"context"

	"github.com/acanas/selftest-service/internal/models"
	"github.com/acanas/selftest-service/internal/repositories"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PrintPostgreSQL struct {
	db *gorm.DB
}

func NewPrintPostgreSQL(db *gorm.DB) repositories.PrintRepository {
	return &PrintPostgreSQL{db: db}
}

func (p PrintPostgreSQL) Create(ctx context.Context, print *models.TestPrint) error {
	return p.db.WithContext(ctx).Create(print).Error
}

func (p PrintPostgreSQL) GetByID(ctx context.Context, id uint) (*models.TestPrint, error) {
	var print models.TestPrint
	if err := p.db.WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("test_print_questions.position ASC")
		}).
		First(&print, id).Error; err != nil {
		return nil, err
	}
	return &print, nil
}

// SaveAnswers upserts every printed question's answer text keyed by
// (print_id, position) and refreshes the non-blank counter. The upsert makes
// repeated saves idempotent.
func (p PrintPostgreSQL) SaveAnswers(ctx context.Context, print *models.TestPrint) error {
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range print.Questions {
			pq := &print.Questions[i]
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "print_id"}, {Name: "position"}},
				DoUpdates: clause.AssignmentColumns([]string{"answer_text"}),
			}).Create(pq).Error; err != nil {
				return err
			}
		}

		return tx.Model(&models.TestPrint{}).
			Where("id = ?", print.ID).
			Update("num_not_blank", print.NumNotBlank).Error
	})
}

// Finalize persists the sent transition, per-question scores and totals in
// one transaction.
func (p PrintPostgreSQL) Finalize(ctx context.Context, print *models.TestPrint) error {
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range print.Questions {
			pq := &print.Questions[i]
			if err := tx.Model(&models.PrintedQuestion{}).
				Where("print_id = ? AND position = ?", pq.PrintID, pq.Position).
				Updates(map[string]interface{}{
					"answer_text": pq.AnswerText,
					"score":       pq.Score,
				}).Error; err != nil {
				return err
			}
		}

		return tx.Model(&models.TestPrint{}).
			Where("id = ?", print.ID).
			Updates(map[string]interface{}{
				"sent":                true,
				"visible_to_teachers": print.VisibleToTeachers,
				"end_time":            print.EndTime,
				"score":               print.Score,
				"num_not_blank":       print.NumNotBlank,
			}).Error
	})
}

func (p PrintPostgreSQL) GetLastPrint(ctx context.Context, userID, courseID uint) (*models.TestPrint, error) {
	var print models.TestPrint
	if err := p.db.WithContext(ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Order("start_time DESC").
		First(&print).Error; err != nil {
		return nil, err
	}
	return &print, nil
}

func (p PrintPostgreSQL) List(ctx context.Context, filters repositories.PrintFilters) ([]*models.TestPrint, int64, error) {
	var prints []*models.TestPrint
	var total int64

	// apply filter first
	query := p.db.WithContext(ctx).Model(&models.TestPrint{})
	query = p.applyFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// then apply pagination and sorting
	order := "start_time DESC"
	if filters.SortOrder == "asc" {
		order = "start_time ASC"
	}
	query = query.Order(order)
	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}

	if err := query.Preload("Questions", func(db *gorm.DB) *gorm.DB {
		return db.Order("test_print_questions.position ASC")
	}).Find(&prints).Error; err != nil {
		return nil, 0, err
	}

	return prints, total, nil
}

func (p PrintPostgreSQL) DeleteByUserAndCourse(ctx context.Context, userID, courseID uint) error {
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []uint
		if err := tx.Model(&models.TestPrint{}).
			Where("user_id = ? AND course_id = ?", userID, courseID).
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		if err := tx.Where("print_id IN ?", ids).
			Delete(&models.PrintedQuestion{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.TestPrint{}, ids).Error
	})
}

func (p PrintPostgreSQL) applyFilters(query *gorm.DB, filters repositories.PrintFilters) *gorm.DB {
	query = query.Where("course_id = ?", filters.CourseID)

	if filters.UserID != nil {
		query = query.Where("user_id = ?", *filters.UserID)
	}
	if filters.Sent != nil {
		query = query.Where("sent = ?", *filters.Sent)
	}
	if filters.VisibleToTeachers != nil {
		query = query.Where("visible_to_teachers = ?", *filters.VisibleToTeachers)
	}
	if filters.DateFrom != nil {
		query = query.Where("start_time >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("start_time <= ?", *filters.DateTo)
	}

	return query
}
