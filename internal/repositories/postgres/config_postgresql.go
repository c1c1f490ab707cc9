package postgres

import (
	"context"

	"github.com/acanas/selftest-service/internal/models"
	"github.com/acanas/selftest-service/internal/repositories"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ConfigPostgreSQL struct {
	db *gorm.DB
}

func NewConfigPostgreSQL(db *gorm.DB) repositories.ConfigRepository {
	return &ConfigPostgreSQL{db: db}
}

func (c ConfigPostgreSQL) GetByCourse(ctx context.Context, courseID uint) (*models.TestConfig, error) {
	var cfg models.TestConfig
	if err := c.db.WithContext(ctx).
		Where("course_id = ?", courseID).
		First(&cfg).Error; err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c ConfigPostgreSQL) Upsert(ctx context.Context, cfg *models.TestConfig) error {
	return c.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "course_id"}},
		UpdateAll: true,
	}).Create(cfg).Error
}

type UserPostgreSQL struct {
	db *gorm.DB
}

func NewUserPostgreSQL(db *gorm.DB) repositories.UserRepository {
	return &UserPostgreSQL{db: db}
}

func (u UserPostgreSQL) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := u.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// ===== AGGREGATE =====

type repository struct {
	question repositories.QuestionRepository
	print    repositories.PrintRepository
	config   repositories.ConfigRepository
	user     repositories.UserRepository
}

// NewRepository wires all gorm-backed stores over one database handle.
func NewRepository(db *gorm.DB) repositories.Repository {
	return &repository{
		question: NewQuestionPostgreSQL(db),
		print:    NewPrintPostgreSQL(db),
		config:   NewConfigPostgreSQL(db),
		user:     NewUserPostgreSQL(db),
	}
}

func (r *repository) Question() repositories.QuestionRepository { return r.question }
func (r *repository) Print() repositories.PrintRepository       { return r.print }
func (r *repository) Config() repositories.ConfigRepository     { return r.config }
func (r *repository) User() repositories.UserRepository         { return r.user }
