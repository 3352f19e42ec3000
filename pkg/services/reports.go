package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/trace-app/trace-dashboard/pkg/apperrors"
	"github.com/trace-app/trace-dashboard/pkg/auth"
	"github.com/trace-app/trace-dashboard/pkg/models"
	"github.com/trace-app/trace-dashboard/pkg/polling"
)

// ReportService generates AI reports and tracks their progress.
type ReportService struct {
	backend  GenAIBackend
	engine   *polling.Engine
	loading  *LoadState
	reporter reporter
}

// NewReportService creates a report service.
func NewReportService(backend GenAIBackend, engine *polling.Engine, loading *LoadState, notifier *Notifier, logger *zap.Logger) *ReportService {
	return &ReportService{
		backend:  backend,
		engine:   engine,
		loading:  loading,
		reporter: reporter{notifier: notifier, logger: logger.Named("reports")},
	}
}

// LoadAll replaces the project's reports and polls the ones still generating.
func (s *ReportService) LoadAll(ctx context.Context, projectID string) ([]models.Report, error) {
	done := s.loading.Begin(LoadReports)
	defer done()

	reports, err := polling.LoadAll(ctx, s.engine, polling.ReportKind, projectID, func(ctx context.Context) ([]models.Report, error) {
		return s.backend.ListReports(ctx, projectID)
	}, s.fetch(ctx, projectID))
	if err != nil {
		return nil, s.reporter.fail("load reports", err, zap.String("project_id", projectID))
	}
	return reports, nil
}

// Generate asks for a report over params' window.
func (s *ReportService) Generate(ctx context.Context, projectID string, params models.ReportParams) (models.Report, error) {
	if params.StartTime.IsZero() || params.EndTime.IsZero() || params.EndTime.Before(params.StartTime) {
		err := fmt.Errorf("report window must have a start before its end: %w", apperrors.ErrInvalidInput)
		return models.Report{}, s.reporter.fail("generate report", err, zap.String("project_id", projectID))
	}

	report, err := polling.Submit(ctx, s.engine, polling.ReportKind, projectID, func(ctx context.Context) (models.Report, error) {
		return s.backend.GenerateReport(ctx, projectID, params)
	}, s.fetch(ctx, projectID))
	if err != nil {
		return models.Report{}, s.reporter.fail("generate report", err, zap.String("project_id", projectID))
	}
	return report, nil
}

// LoadContent fetches one report. A report still generating is polled.
func (s *ReportService) LoadContent(ctx context.Context, projectID, reportID string) (models.Report, error) {
	report, err := s.backend.GetReport(ctx, projectID, reportID)
	if err != nil {
		return models.Report{}, s.reporter.fail("load report", err,
			zap.String("project_id", projectID),
			zap.String("report_id", reportID))
	}
	return polling.Track(s.engine, polling.ReportKind, projectID, report, s.fetch(ctx, projectID)), nil
}

func (s *ReportService) fetch(reqCtx context.Context, projectID string) polling.FetchFunc[models.Report] {
	return func(ctx context.Context, id string) (models.Report, error) {
		return s.backend.GetReport(auth.Detach(ctx, reqCtx), projectID, id)
	}
}
