package services

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/acanas/selftest-service/internal/models"
	"github.com/acanas/selftest-service/internal/repositories"
	"github.com/acanas/selftest-service/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func newExportServiceFixture(t *testing.T) (*printServiceFixture, *ExportService) {
	t.Helper()

	f := newPrintServiceFixture(t)
	logger := utils.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	return f, NewExportService(f.repo, f.service, logger)
}

func TestExportService_ExportCourseResults(t *testing.T) {
	f, export := newExportServiceFixture(t)
	ctx := context.Background()

	print := sentPrint(7)
	print.NumQuestions = 2
	print.Score = 1.5

	f.repo.userRepo.On("GetByID", ctx, uint(9)).Return(testTeacher(9), nil)
	f.repo.printRepo.On("List", ctx, mock.Anything).Return([]*models.TestPrint{print}, int64(1), nil)

	data, err := export.ExportCourseResults(ctx, 9, repositories.PrintFilters{CourseID: 1})
	require.NoError(t, err)

	wb, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer wb.Close()

	rows, err := wb.GetRows("Results")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "User ID", rows[0][0])
	assert.Equal(t, "7", rows[1][0])
	assert.Equal(t, "2", rows[1][3])
	assert.Equal(t, "1.5", rows[1][5])
	assert.Equal(t, "7.5", rows[1][6])
}

func TestExportService_ExportCourseResults_StudentForbidden(t *testing.T) {
	f, export := newExportServiceFixture(t)
	ctx := context.Background()

	f.repo.userRepo.On("GetByID", ctx, uint(7)).Return(testStudent(7), nil)

	_, err := export.ExportCourseResults(ctx, 7, repositories.PrintFilters{CourseID: 1})
	assert.True(t, IsForbidden(err))
	f.repo.printRepo.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
}
