package services

import (
	"context"
	"fmt"

	"github.com/acanas/selftest-service/internal/models"
	"github.com/acanas/selftest-service/internal/repositories"
	"github.com/acanas/selftest-service/internal/utils"
)

// ConfigService manages per-course test configuration.
type ConfigService struct {
	repo      repositories.Repository
	validator *utils.Validator
	logger    utils.Logger
}

func NewConfigService(repo repositories.Repository, validator *utils.Validator, logger utils.Logger) *ConfigService {
	return &ConfigService{
		repo:      repo,
		validator: validator,
		logger:    logger,
	}
}

// Resolve loads the course configuration, falling back to the documented
// defaults when the course has none stored. The fallback is not persisted.
func (s *ConfigService) Resolve(ctx context.Context, courseID uint) (*models.TestConfig, error) {
	cfg, err := s.repo.Config().GetByCourse(ctx, courseID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return models.DefaultTestConfig(courseID), nil
		}
		return nil, fmt.Errorf("failed to load test config for course %d: %w", courseID, err)
	}
	return cfg, nil
}

// UpdateConfigRequest carries a full replacement configuration for one
// course.
type UpdateConfigRequest struct {
	Min                         int               `json:"min" validate:"required,min=1,max=100"`
	Def                         int               `json:"def" validate:"required,min=1,max=100"`
	Max                         int               `json:"max" validate:"required,min=1,max=100"`
	MinTimeNextPrintPerQuestion int64             `json:"min_time_next_print_per_question" validate:"min=0"`
	Visibility                  models.Visibility `json:"visibility" validate:"visibility_mask"`
	Pluggable                   models.Pluggable  `json:"pluggable" validate:"omitempty,oneof=unknown N Y"`
}

// Update replaces the course configuration. Only privileged users may call
// it; the handler enforces that through the requester's role.
func (s *ConfigService) Update(ctx context.Context, requesterID uint, courseID uint, req *UpdateConfigRequest) (*models.TestConfig, error) {
	requester, err := s.repo.User().GetByID(ctx, requesterID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user %d: %w", requesterID, err)
	}
	if !requester.Role.IsPrivileged() {
		return nil, NewPermissionError(requesterID, courseID, "test_config", "update", "only teachers and admins may change the test configuration")
	}

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	cfg := &models.TestConfig{
		CourseID:                    courseID,
		Min:                         req.Min,
		Def:                         req.Def,
		Max:                         req.Max,
		MinTimeNextPrintPerQuestion: req.MinTimeNextPrintPerQuestion,
		Visibility:                  req.Visibility,
		Pluggable:                   req.Pluggable,
	}
	if cfg.Pluggable == "" {
		cfg.Pluggable = models.PluggableUnknown
	}
	if err := cfg.CheckInvariants(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidationFailed, err.Error())
	}

	if err := s.repo.Config().Upsert(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to save test config for course %d: %w", courseID, err)
	}

	s.logger.Info("Test config updated",
		"course_id", courseID,
		"requester_id", requesterID,
		"min", cfg.Min, "def", cfg.Def, "max", cfg.Max,
		"visibility", cfg.Visibility)

	return cfg, nil
}
