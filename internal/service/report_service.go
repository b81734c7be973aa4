package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/meal-queue-api/internal/models"
	appErrors "github.com/noah-isme/meal-queue-api/pkg/errors"
	"github.com/noah-isme/meal-queue-api/pkg/export"
)

// Report formats.
const (
	ReportFormatCSV = "csv"
	ReportFormatPDF = "pdf"
)

var dailyReportHeaders = []string{"Grupo", "Categoría", "Docente", "Presentes", "Comen", "No comen", "Refuerzos"}

type reportStore interface {
	Today() time.Time
	ListAttendanceByDate(ctx context.Context, day time.Time) ([]models.AttendanceRecord, error)
}

type reportRenderer interface {
	ContentType() string
	Extension() string
	Render(data export.Dataset) ([]byte, error)
}

// ReportFile is a rendered download.
type ReportFile struct {
	Filename    string
	ContentType string
	Body        []byte
}

// ReportService renders the daily attendance report.
type ReportService struct {
	store     reportStore
	renderers map[string]reportRenderer
	title     string
	logger    *zap.Logger
}

// NewReportService constructs the report service with the CSV and PDF renderers.
func NewReportService(store reportStore, title string, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(title) == "" {
		title = "Reporte diario de comedor"
	}
	return &ReportService{
		store: store,
		renderers: map[string]reportRenderer{
			ReportFormatCSV: export.NewCSVExporter(),
			ReportFormatPDF: export.NewPDFExporter(),
		},
		title:  title,
		logger: logger,
	}
}

// Daily renders the attendance of a day. Administrators only.
func (s *ReportService) Daily(ctx context.Context, actor models.Actor, date, format string) (*ReportFile, error) {
	switch actor.Role {
	case models.RoleAdministrator:
	case models.RoleTeacher:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only administrators can export reports")
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "unrecognised role")
	}

	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = ReportFormatCSV
	}
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Validation("format must be csv or pdf")
	}

	day := s.store.Today()
	if strings.TrimSpace(date) != "" {
		parsed, err := models.ParseDay(strings.TrimSpace(date))
		if err != nil {
			return nil, appErrors.Validation("date must use the YYYY-MM-DD format")
		}
		day = parsed
	}

	records, err := s.store.ListAttendanceByDate(ctx, day)
	if err != nil {
		return nil, storeError(err, "attendance records")
	}

	body, err := renderer.Render(s.dataset(day, records))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report")
	}
	s.logger.Info("daily report rendered", zap.String("format", format), zap.Int("rows", len(records)), zap.String("actor_id", actor.ID))

	return &ReportFile{
		Filename:    fmt.Sprintf("comedor-%s.%s", day.Format("2006-01-02"), renderer.Extension()),
		ContentType: renderer.ContentType(),
		Body:        body,
	}, nil
}

func (s *ReportService) dataset(day time.Time, records []models.AttendanceRecord) export.Dataset {
	var present, eating, notEating, reinforcements int
	rows := make([]map[string]string, 0, len(records))
	for _, rec := range records {
		present += rec.StudentsPresent
		eating += rec.StudentsEating
		notEating += rec.StudentsNotEating
		reinforcements += rec.ReinforcementsUsed
		rows = append(rows, map[string]string{
			"Grupo":     rec.GroupName,
			"Categoría": string(rec.GroupCategory),
			"Docente":   rec.RegistrantName,
			"Presentes": strconv.Itoa(rec.StudentsPresent),
			"Comen":     strconv.Itoa(rec.StudentsEating),
			"No comen":  strconv.Itoa(rec.StudentsNotEating),
			"Refuerzos": strconv.Itoa(rec.ReinforcementsUsed),
		})
	}
	return export.Dataset{
		Title:    s.title,
		Subtitle: day.Format("2006-01-02"),
		Headers:  dailyReportHeaders,
		Rows:     rows,
		Totals: map[string]string{
			"Grupo":     "Total",
			"Presentes": strconv.Itoa(present),
			"Comen":     strconv.Itoa(eating),
			"No comen":  strconv.Itoa(notEating),
			"Refuerzos": strconv.Itoa(reinforcements),
		},
	}
}
