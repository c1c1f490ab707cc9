package models

import (
	"fmt"
	"time"
)

// Pluggable is the tri-state flag telling whether the course's tests are
// reachable from an external plugin. It is configuration only; this service
// never acts on it beyond storing and returning it.
type Pluggable string

const (
	PluggableUnknown Pluggable = "unknown"
	PluggableNo      Pluggable = "N"
	PluggableYes     Pluggable = "Y"
)

const (
	// MaxQuestionsPerPrint is the hard ceiling no course configuration may
	// exceed.
	MaxQuestionsPerPrint = 100

	DefaultMinQuestions = 1
	DefaultDefQuestions = 20
	DefaultMaxQuestions = 30
)

// TestConfig is the per-course test configuration. It is loaded once per
// request and passed by reference through the engine; the engine never
// mutates it.
type TestConfig struct {
	CourseID uint `json:"course_id" gorm:"primaryKey;autoIncrement:false"`

	Min int `json:"min" gorm:"not null;default:1" validate:"min=1,max=100"`
	Def int `json:"def" gorm:"not null;default:20" validate:"min=1,max=100"`
	Max int `json:"max" gorm:"not null;default:30" validate:"min=1,max=100"`

	// MinTimeNextPrintPerQuestion is the throttle coefficient in seconds:
	// after a print of N questions the user must wait N times this long
	// before the next one.
	MinTimeNextPrintPerQuestion int64 `json:"min_time_next_print_per_question" gorm:"not null;default:0" validate:"min=0"`

	Visibility Visibility `json:"visibility" gorm:"not null;default:15"`
	Pluggable  Pluggable  `json:"pluggable" gorm:"size:10;default:unknown" validate:"omitempty,oneof=unknown N Y"`

	UpdatedAt time.Time `json:"updated_at"`
}

func (TestConfig) TableName() string {
	return "test_configs"
}

// DefaultTestConfig is the documented fallback when a course has no stored
// configuration.
func DefaultTestConfig(courseID uint) *TestConfig {
	return &TestConfig{
		CourseID:   courseID,
		Min:        DefaultMinQuestions,
		Def:        DefaultDefQuestions,
		Max:        DefaultMaxQuestions,
		Visibility: DefaultVisibility,
		Pluggable:  PluggableUnknown,
	}
}

// CheckInvariants validates Min <= Def <= Max <= ceiling and the visibility
// mask width.
func (c *TestConfig) CheckInvariants() error {
	if c.Min < 1 || c.Min > c.Def || c.Def > c.Max {
		return fmt.Errorf("question counts must satisfy 1 <= min <= def <= max, got %d/%d/%d", c.Min, c.Def, c.Max)
	}
	if c.Max > MaxQuestionsPerPrint {
		return fmt.Errorf("max questions %d exceeds ceiling of %d", c.Max, MaxQuestionsPerPrint)
	}
	if !c.Visibility.Valid() {
		return fmt.Errorf("visibility mask %d out of range", c.Visibility)
	}
	if c.MinTimeNextPrintPerQuestion < 0 {
		return fmt.Errorf("min time per question must not be negative")
	}
	return nil
}
