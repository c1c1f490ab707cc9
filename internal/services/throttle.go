package services

import (
	"time"

	"github.com/acanas/selftest-service/internal/cache"
	"github.com/acanas/selftest-service/internal/models"
)

// NextAllowedTime returns the earliest instant a new print may start given
// the previous one. The waiting period scales with the size of the previous
// print so that generating many questions buys proportionally more cooldown.
func NextAllowedTime(last *cache.LastPrint, cfg *models.TestConfig) time.Time {
	if last == nil {
		return time.Time{}
	}
	wait := time.Duration(int64(last.NumQuestions)*cfg.MinTimeNextPrintPerQuestion) * time.Second
	return last.StartTime.Add(wait)
}

// CheckThrottle enforces the per-course cooldown between prints. Privileged
// roles are exempt. A nil return means the user may generate a new print now.
func CheckThrottle(role models.UserRole, last *cache.LastPrint, cfg *models.TestConfig, now time.Time) *ThrottleViolationError {
	if role.BypassesThrottle() {
		return nil
	}
	allowedAt := NextAllowedTime(last, cfg)
	if now.Before(allowedAt) {
		return &ThrottleViolationError{AllowedAt: allowedAt}
	}
	return nil
}
