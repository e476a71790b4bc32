package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/studymate/studyplan-api/internal/models"
)

type dbPinger interface {
	PingContext(ctx context.Context) error
}

type cachePinger interface {
	Ping(ctx context.Context) error
}

type outcomeReader interface {
	RecentOutcomes(ctx context.Context, limit int) ([]models.ExtractionRunStatus, error)
}

// healthProbeWindow is how many finished extraction runs inform the model
// gateway verdict.
const healthProbeWindow = 20

// HealthService aggregates dependency probes into one report. The database
// is the only hard dependency; redis and the model gateway degrade the
// verdict without failing it.
type HealthService struct {
	db     dbPinger
	cache  cachePinger
	runs   outcomeReader
	logger *zap.Logger
}

// NewHealthService constructs a HealthService.
func NewHealthService(db dbPinger, cache cachePinger, runs outcomeReader, logger *zap.Logger) *HealthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthService{db: db, cache: cache, runs: runs, logger: logger}
}

// Check probes each dependency and grades the service.
func (s *HealthService) Check(ctx context.Context) *models.HealthReport {
	report := &models.HealthReport{
		Status:    models.HealthStatusHealthy,
		Checks:    map[string]models.HealthCheck{},
		CheckedAt: time.Now().UTC(),
	}

	report.Checks["database"] = s.checkDatabase(ctx)
	report.Checks["cache"] = s.checkCache(ctx)
	report.Checks["model_gateway"] = s.checkModelGateway(ctx)

	if report.Checks["database"].Status == models.HealthStatusUnhealthy {
		report.Status = models.HealthStatusUnhealthy
		return report
	}
	for _, check := range report.Checks {
		if check.Status != models.HealthStatusHealthy {
			report.Status = models.HealthStatusDegraded
			break
		}
	}
	return report
}

func (s *HealthService) checkDatabase(ctx context.Context) models.HealthCheck {
	if s.db == nil {
		return models.HealthCheck{Status: models.HealthStatusUnhealthy, Detail: "not configured"}
	}
	start := time.Now()
	if err := s.db.PingContext(ctx); err != nil {
		s.logger.Error("database ping failed", zap.Error(err))
		return models.HealthCheck{Status: models.HealthStatusUnhealthy, Detail: err.Error()}
	}
	return models.HealthCheck{Status: models.HealthStatusHealthy, Latency: time.Since(start).String()}
}

func (s *HealthService) checkCache(ctx context.Context) models.HealthCheck {
	if s.cache == nil {
		return models.HealthCheck{Status: models.HealthStatusDegraded, Detail: "not configured"}
	}
	start := time.Now()
	if err := s.cache.Ping(ctx); err != nil {
		s.logger.Warn("cache ping failed", zap.Error(err))
		return models.HealthCheck{Status: models.HealthStatusDegraded, Detail: err.Error()}
	}
	return models.HealthCheck{Status: models.HealthStatusHealthy, Latency: time.Since(start).String()}
}

// checkModelGateway infers gateway health from recent extraction outcomes
// rather than issuing a billable probe call.
func (s *HealthService) checkModelGateway(ctx context.Context) models.HealthCheck {
	if s.runs == nil {
		return models.HealthCheck{Status: models.HealthStatusHealthy, Detail: "no probe configured"}
	}
	outcomes, err := s.runs.RecentOutcomes(ctx, healthProbeWindow)
	if err != nil {
		s.logger.Warn("failed to read extraction outcomes", zap.Error(err))
		return models.HealthCheck{Status: models.HealthStatusDegraded, Detail: "outcome history unavailable"}
	}
	if len(outcomes) == 0 {
		return models.HealthCheck{Status: models.HealthStatusHealthy, Detail: "no recent runs"}
	}
	var failed int
	for _, status := range outcomes {
		if status == models.ExtractionRunStatusFailed {
			failed++
		}
	}
	if failed*2 > len(outcomes) {
		return models.HealthCheck{Status: models.HealthStatusDegraded, Detail: "majority of recent runs failed"}
	}
	return models.HealthCheck{Status: models.HealthStatusHealthy}
}
