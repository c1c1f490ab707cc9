package services

import (
	"context"
	"fmt"

	"github.com/acanas/selftest-service/internal/repositories"
	"github.com/acanas/selftest-service/internal/utils"
	"github.com/xuri/excelize/v2"
)

// ExportService renders course results as spreadsheets for teachers.
type ExportService struct {
	repo   repositories.Repository
	prints *PrintService
	logger utils.Logger
}

func NewExportService(repo repositories.Repository, prints *PrintService, logger utils.Logger) *ExportService {
	return &ExportService{
		repo:   repo,
		prints: prints,
		logger: logger,
	}
}

// ExportCourseResults writes the course's disclosed results to an xlsx
// workbook, one row per sent print. Only privileged users may export; the
// listing applies the same disclosure rules as the results view, so
// undisclosed prints never reach the file.
func (s *ExportService) ExportCourseResults(ctx context.Context, requesterID uint, filters repositories.PrintFilters) ([]byte, error) {
	requester, err := s.repo.User().GetByID(ctx, requesterID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user %d: %w", requesterID, err)
	}
	if !requester.Role.IsPrivileged() {
		return nil, NewPermissionError(requesterID, filters.CourseID, "results", "export", "only teachers and admins may export results")
	}

	prints, _, err := s.prints.ListResults(ctx, requesterID, filters)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	sheetName := "Results"

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	headers := []string{
		"User ID", "Started At", "Finished At",
		"Questions", "Answered", "Score", "Grade",
	}
	for i, header := range headers {
		cell := fmt.Sprintf("%c1", 'A'+i)
		f.SetCellValue(sheetName, cell, header)
	}

	const timeLayout = "2006-01-02 15:04:05"
	for rowIndex, print := range prints {
		row := []interface{}{
			print.UserID,
			print.StartTime.Format(timeLayout),
		}
		if print.EndTime != nil {
			row = append(row, print.EndTime.Format(timeLayout))
		} else {
			row = append(row, "")
		}
		row = append(row,
			print.NumQuestions,
			print.NumNotBlank,
			print.Score,
			Grade(print.NumQuestions, print.Score, DefaultMaxGrade),
		)

		for colIndex, value := range row {
			cell := fmt.Sprintf("%c%d", 'A'+colIndex, rowIndex+2)
			f.SetCellValue(sheetName, cell, value)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}

	s.logger.Info("Course results exported",
		"requester_id", requesterID,
		"course_id", filters.CourseID,
		"num_prints", len(prints))

	return buf.Bytes(), nil
}
