package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sfd-aulas-api/internal/dto"
	"github.com/noah-isme/sfd-aulas-api/internal/models"
	"github.com/noah-isme/sfd-aulas-api/pkg/clock"
	appErrors "github.com/noah-isme/sfd-aulas-api/pkg/errors"
	"github.com/noah-isme/sfd-aulas-api/pkg/export"
)

// ExportFormat selects the rendered file type.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

var weekdayLabels = [...]string{"Dom", "Lun", "Mar", "Mié", "Jue", "Vie", "Sáb"}

var sessionStatusLabels = map[models.SessionStatus]string{
	models.SessionStatusScheduled:   "Programada",
	models.SessionStatusRescheduled: "Reprogramada",
	models.SessionStatusReplacement: "Docente reemplazo",
}

type aulaReader interface {
	Get(ctx context.Context, id string) (*dto.AulaDetail, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportFile is a rendered calendar ready to be streamed.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService renders an aula's session calendar as CSV or PDF.
type ExportService struct {
	aulas    aulaReader
	teachers teacherLookup
	clock    *clock.Clock
	csv      csvRenderer
	pdf      pdfRenderer
	logger   *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(aulas aulaReader, teachers teacherLookup, clk *clock.Clock, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter(true)
	}
	if pdf == nil {
		pdf = export.NewPDFExporter(true)
	}
	return &ExportService{aulas: aulas, teachers: teachers, clock: clk, csv: csv, pdf: pdf, logger: logger}
}

// ExportSessions renders the calendar of one aula.
func (s *ExportService) ExportSessions(ctx context.Context, aulaID string, format ExportFormat) (*ExportFile, error) {
	if format == "" {
		format = ExportFormatCSV
	}
	if format != ExportFormatCSV && format != ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
	detail, err := s.aulas.Get(ctx, aulaID)
	if err != nil {
		return nil, err
	}

	dataset := s.buildDataset(ctx, detail)
	title := fmt.Sprintf("%s · %s ciclo %d", detail.Code, detail.Program, detail.Cycle)

	var (
		payload     []byte
		contentType string
	)
	switch format {
	case ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
		contentType = "application/pdf"
	default:
		payload, err = s.csv.Render(dataset)
		contentType = "text/csv; charset=utf-8"
	}
	if err != nil {
		s.logger.Error("session export failed", zap.String("aula_id", aulaID), zap.String("format", string(format)), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	return &ExportFile{
		Filename:    s.filename(detail, format),
		ContentType: contentType,
		Data:        payload,
	}, nil
}

func (s *ExportService) buildDataset(ctx context.Context, detail *dto.AulaDetail) export.Dataset {
	headers := []string{"Sesión", "Fecha", "Día", "Inicio", "Fin", "Estado", "Docente"}
	now := s.clock.Now()
	names := map[string]string{}

	rows := make([]map[string]string, 0, len(detail.Sessions))
	for _, session := range detail.Sessions {
		teacherID := detail.TeacherID
		if session.OverrideTeacherID != nil {
			teacherID = *session.OverrideTeacherID
		} else if session.AssignedTeacherID != nil {
			teacherID = *session.AssignedTeacherID
		}
		status := sessionStatusLabels[session.Status]
		if now.After(session.EndsAt) {
			status += " (dictada)"
		}
		rows = append(rows, map[string]string{
			"Sesión":  strconv.Itoa(session.Number),
			"Fecha":   s.clock.FormatDate(session.Date),
			"Día":     weekdayLabels[session.Date.In(s.clock.Location()).Weekday()],
			"Inicio":  session.StartsAt.In(s.clock.Location()).Format("15:04"),
			"Fin":     session.EndsAt.In(s.clock.Location()).Format("15:04"),
			"Estado":  strings.TrimSpace(status),
			"Docente": s.teacherName(ctx, teacherID, names),
		})
	}

	notes := []string{
		fmt.Sprintf("Frecuencia: %s · Horario: %s - %s", detail.Frequency, detail.StartTime, detail.EndTime),
		fmt.Sprintf("Sesiones dictadas: %d de %d", detail.SessionsCompleted, len(detail.Sessions)),
		fmt.Sprintf("Generado: %s", now.Format(time.RFC3339)),
	}
	return export.Dataset{Headers: headers, Rows: rows, Notes: notes}
}

func (s *ExportService) teacherName(ctx context.Context, id string, cache map[string]string) string {
	if id == "" {
		return ""
	}
	if name, ok := cache[id]; ok {
		return name
	}
	name := id
	if s.teachers != nil {
		if teacher, err := s.teachers.FindByID(ctx, id); err == nil {
			name = teacher.FullName
		}
	}
	cache[id] = name
	return name
}

func (s *ExportService) filename(detail *dto.AulaDetail, format ExportFormat) string {
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-")
	code := replacer.Replace(strings.TrimSpace(detail.Code))
	if code == "" {
		code = detail.ID
	}
	return fmt.Sprintf("sesiones_%s_ciclo%d_%s.%s", code, detail.Cycle, s.clock.Now().Format("20060102"), format)
}
