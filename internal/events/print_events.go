package events

import (
	"time"

	"github.com/ThreeDotsLabs/watermill"
)

type PrintEventType string

const (
	PrintCreated   PrintEventType = "print.created"
	PrintFinalized PrintEventType = "print.finalized"
)

// PrintEvent is published whenever a print is generated or sent. Downstream
// consumers (notification and analytics services) react to them; this
// service never consumes its own events.
type PrintEvent struct {
	ID        string         `json:"id"`
	Type      PrintEventType `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Source    string         `json:"source"`
	Version   string         `json:"version"`

	PrintID      uint `json:"print_id"`
	UserID       uint `json:"user_id"`
	CourseID     uint `json:"course_id"`
	NumQuestions int  `json:"num_questions"`

	// Finalization payload, zero-valued on print.created.
	NumNotBlank       int     `json:"num_not_blank,omitempty"`
	Score             float64 `json:"score,omitempty"`
	VisibleToTeachers bool    `json:"visible_to_teachers,omitempty"`
}

const (
	eventSource  = "selftest-service"
	eventVersion = "1.0"
)

// NewPrintCreatedEvent builds the event announcing a freshly compiled print.
func NewPrintCreatedEvent(printID, userID, courseID uint, numQuestions int) *PrintEvent {
	return &PrintEvent{
		ID:           watermill.NewUUID(),
		Type:         PrintCreated,
		Timestamp:    time.Now(),
		Source:       eventSource,
		Version:      eventVersion,
		PrintID:      printID,
		UserID:       userID,
		CourseID:     courseID,
		NumQuestions: numQuestions,
	}
}

// NewPrintFinalizedEvent builds the event announcing a sent, scored print.
func NewPrintFinalizedEvent(printID, userID, courseID uint, numQuestions, numNotBlank int, score float64, visibleToTeachers bool) *PrintEvent {
	return &PrintEvent{
		ID:                watermill.NewUUID(),
		Type:              PrintFinalized,
		Timestamp:         time.Now(),
		Source:            eventSource,
		Version:           eventVersion,
		PrintID:           printID,
		UserID:            userID,
		CourseID:          courseID,
		NumQuestions:      numQuestions,
		NumNotBlank:       numNotBlank,
		Score:             score,
		VisibleToTeachers: visibleToTeachers,
	}
}
