package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/campus-request-api/internal/models"
	"github.com/noah-isme/campus-request-api/pkg/clock"
	appErrors "github.com/noah-isme/campus-request-api/pkg/errors"
	"github.com/noah-isme/campus-request-api/pkg/export"
)

// Supported export formats.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

var requestExportColumns = []string{"ID", "Owner", "Category", "Status", "Semester", "Submitted", "Estimated", "Processed By", "Note"}

type requestLister interface {
	ListAll(ctx context.Context) ([]models.Request, error)
	ListByCategory(ctx context.Context, category string) ([]models.Request, error)
}

type tableWriter interface {
	Write(w io.Writer, table export.Table) error
	ContentType() string
	Extension() string
}

// ExportService renders request listings for staff.
type ExportService struct {
	requests requestLister
	writers  map[string]tableWriter
	clock    clock.Clock
	logger   *zap.Logger
}

// NewExportService constructs an ExportService with CSV and PDF writers.
func NewExportService(requests requestLister, c clock.Clock, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		requests: requests,
		writers: map[string]tableWriter{
			ExportFormatCSV: export.NewCSVExporter(),
			ExportFormatPDF: export.NewPDFExporter(2.4, 1, 1.2, 1, 1, 1.4, 1.4, 1, 2),
		},
		clock:  clock.OrSystem(c),
		logger: logger,
	}
}

// ExportMeta describes a rendered export.
type ExportMeta struct {
	Filename    string
	ContentType string
	Rows        int
}

// Meta validates format and returns how the export will be served.
func (s *ExportService) Meta(format, category string) (ExportMeta, error) {
	writer, err := s.writer(format)
	if err != nil {
		return ExportMeta{}, err
	}
	name := "requests"
	if category != "" {
		name += "-" + slug(category)
	}
	return ExportMeta{
		Filename:    fmt.Sprintf("%s-%s.%s", name, s.clock.Now().Format("20060102-150405"), writer.Extension()),
		ContentType: writer.ContentType(),
	}, nil
}

// Export writes requests, optionally limited to category, to w.
func (s *ExportService) Export(ctx context.Context, w io.Writer, format, category string) (ExportMeta, error) {
	meta, err := s.Meta(format, category)
	if err != nil {
		return meta, err
	}

	var list []models.Request
	if category == "" {
		list, err = s.requests.ListAll(ctx)
	} else {
		list, err = s.requests.ListByCategory(ctx, category)
	}
	if err != nil {
		return meta, err
	}

	table := RequestTable(list, category)
	if err := s.writers[strings.ToLower(format)].Write(w, table); err != nil {
		return meta, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	meta.Rows = len(list)
	s.logger.Info("requests exported", zap.String("format", format), zap.String("category", category), zap.Int("rows", meta.Rows))
	return meta, nil
}

// RequestTable converts requests into an export table.
func RequestTable(list []models.Request, category string) export.Table {
	title := "Requests"
	if category != "" {
		title += " - " + category
	}
	rows := make([][]string, 0, len(list))
	for _, req := range list {
		rows = append(rows, []string{
			req.ID,
			req.Owner,
			req.Category,
			string(req.Status),
			models.SemesterOf(req.SubmittedAt),
			req.SubmittedAt.UTC().Format(time.RFC3339),
			req.EstimatedCompletion.UTC().Format(time.RFC3339),
			deref(req.ProcessedBy),
			deref(req.Note),
		})
	}
	return export.Table{Title: title, Columns: requestExportColumns, Rows: rows}
}

func (s *ExportService) writer(format string) (tableWriter, error) {
	writer, ok := s.writers[strings.ToLower(format)]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	return writer, nil
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func slug(value string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(value) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return strings.Trim(b.String(), "-")
}
