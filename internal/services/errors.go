package services

import (
	"errors"
	"fmt"
	"time"

	apperrors "github.com/acanas/selftest-service/internal/errors"
)

// ===== COMMON SERVICE ERRORS =====

var (
	// Generic errors
	ErrNotFound         = errors.New("resource not found")
	ErrForbidden        = errors.New("forbidden - insufficient permissions")
	ErrValidationFailed = errors.New("validation failed")

	// Print specific errors
	ErrPrintNotFound = errors.New("print not found")

	// ErrPrintAlreadySent rejects any mutation of a sent print. Saving or
	// re-finalizing after the send transition is a replay or programming
	// error and must leave stored state untouched.
	ErrPrintAlreadySent = errors.New("print already sent")

	// ErrNoMatchingQuestions is recoverable: the caller adjusts the filter
	// and retries.
	ErrNoMatchingQuestions = errors.New("no questions match the filter")

	// Question bank conditions
	ErrQuestionNotFound = errors.New("question not found")

	// User errors
	ErrUserNotFound = errors.New("user not found")
	ErrInvalidRole  = errors.New("invalid user role")
)

// ===== CUSTOM ERROR TYPES =====

// Use shared validation errors from errors package
type ValidationError = apperrors.ValidationError
type ValidationErrors = apperrors.ValidationErrors

// ConfigOutOfRangeError reports a requested question count outside the
// course's configured bounds, carrying the valid range for display.
type ConfigOutOfRangeError struct {
	Requested int `json:"requested"`
	Min       int `json:"min"`
	Max       int `json:"max"`
}

func (e *ConfigOutOfRangeError) Error() string {
	return fmt.Sprintf("requested %d questions, allowed range is [%d, %d]", e.Requested, e.Min, e.Max)
}

// ThrottleViolationError reports a print requested before the minimum wait
// elapsed, carrying the allowed timestamp for display.
type ThrottleViolationError struct {
	AllowedAt time.Time `json:"allowed_at"`
}

func (e *ThrottleViolationError) Error() string {
	return fmt.Sprintf("next print not allowed until %s", e.AllowedAt.Format(time.RFC3339))
}

type PermissionError struct {
	UserID     uint   `json:"user_id"`
	ResourceID uint   `json:"resource_id"`
	Resource   string `json:"resource"`
	Action     string `json:"action"`
	Reason     string `json:"reason"`
}

func (pe *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: user %d cannot %s %s %d - %s",
		pe.UserID, pe.Action, pe.Resource, pe.ResourceID, pe.Reason)
}

// ===== ERROR HELPERS =====

func NewPermissionError(userID, resourceID uint, resource, action, reason string) *PermissionError {
	return &PermissionError{
		UserID:     userID,
		ResourceID: resourceID,
		Resource:   resource,
		Action:     action,
		Reason:     reason,
	}
}

// IsNotFound checks if error represents a "not found" condition
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrPrintNotFound) ||
		errors.Is(err, ErrQuestionNotFound) ||
		errors.Is(err, ErrUserNotFound)
}

// IsForbidden checks if error represents a permission failure
func IsForbidden(err error) bool {
	if errors.Is(err, ErrForbidden) {
		return true
	}
	var pe *PermissionError
	return errors.As(err, &pe)
}

// IsValidation checks if error represents a validation failure
func IsValidation(err error) bool {
	if errors.Is(err, ErrValidationFailed) {
		return true
	}
	var ve apperrors.ValidationErrors
	if errors.As(err, &ve) {
		return true
	}
	var core *ConfigOutOfRangeError
	return errors.As(err, &core)
}

// IsThrottleViolation checks if error represents the minimum-wait rejection
func IsThrottleViolation(err error) bool {
	var tve *ThrottleViolationError
	return errors.As(err, &tve)
}

// IsConflict checks if error represents a lifecycle conflict
func IsConflict(err error) bool {
	return errors.Is(err, ErrPrintAlreadySent)
}
