package postgres

import (
	"context"

	"github.com/acanas/selftest-service/internal/models"
	"github.com/acanas/selftest-service/internal/repositories"
	"gorm.io/gorm"
)

type QuestionPostgreSQL struct {
	db *gorm.DB
}

func NewQuestionPostgreSQL(db *gorm.DB) repositories.QuestionRepository {
	return &QuestionPostgreSQL{db: db}
}

func (q QuestionPostgreSQL) GetByID(ctx context.Context, id uint) (*models.Question, error) {
	var question models.Question
	if err := q.db.WithContext(ctx).
		Preload("Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("question_options.position ASC")
		}).
		Preload("Tags").
		First(&question, id).Error; err != nil {
		return nil, err
	}
	return &question, nil
}

// FindRandom lets the database do the uniform selection, the same way the
// question list is randomized for print generation.
func (q QuestionPostgreSQL) FindRandom(ctx context.Context, filters repositories.QuestionFilters, count int) ([]*models.Question, error) {
	var questions []*models.Question

	query := q.db.WithContext(ctx).Model(&models.Question{})
	query = q.applyFilters(query, filters)

	if err := query.
		Preload("Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("question_options.position ASC")
		}).
		Preload("Tags").
		Order("RANDOM()").
		Limit(count).
		Find(&questions).Error; err != nil {
		return nil, err
	}

	return questions, nil
}

func (q QuestionPostgreSQL) GetTags(ctx context.Context, questionID uint) ([]*models.Tag, error) {
	var tags []*models.Tag
	if err := q.db.WithContext(ctx).
		Joins("JOIN question_tags ON question_tags.tag_id = tags.id").
		Where("question_tags.question_id = ?", questionID).
		Where("tags.hidden = ?", false).
		Order("tags.name ASC").
		Find(&tags).Error; err != nil {
		return nil, err
	}
	return tags, nil
}

func (q QuestionPostgreSQL) applyFilters(query *gorm.DB, filters repositories.QuestionFilters) *gorm.DB {
	query = query.Where("questions.course_id = ?", filters.CourseID)

	if len(filters.TagIDs) > 0 {
		query = query.
			Joins("JOIN question_tags ON question_tags.question_id = questions.id").
			Where("question_tags.tag_id IN ?", filters.TagIDs).
			Distinct()
	}
	if len(filters.AnswerTypes) > 0 {
		query = query.Where("questions.type IN ?", filters.AnswerTypes)
	}
	if filters.EditedFrom != nil {
		query = query.Where("questions.edit_time >= ?", *filters.EditedFrom)
	}
	if filters.EditedTo != nil {
		query = query.Where("questions.edit_time <= ?", *filters.EditedTo)
	}

	return query
}
