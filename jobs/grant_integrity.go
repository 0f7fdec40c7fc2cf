package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/meridian-crm/meridian-crm/internal/jobs"
	"github.com/meridian-crm/meridian-crm/internal/registry"
)

// GrantIntegrityJob scans for grants referencing modules the application no
// longer registers, and for user-role rows pointing at missing users or
// roles. Report-only: findings are logged and exported as metrics, never
// mutated.
type GrantIntegrityJob struct {
	Pool    *pgxpool.Pool
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewGrantIntegrityJob wires dependencies for the integrity scan handler.
func NewGrantIntegrityJob(pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *GrantIntegrityJob {
	return &GrantIntegrityJob{Pool: pool, Logger: logger, Metrics: metrics}
}

// Handle processes TaskGrantIntegrity tasks.
func (j *GrantIntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("grant integrity: handler not configured")
	}

	tracker := j.metrics().Track(TaskGrantIntegrity)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	if j.Pool == nil {
		resultErr = errors.New("grant integrity: pool not configured")
		return resultErr
	}

	unregistered, err := j.scanUnregisteredModules(ctx)
	if err != nil {
		resultErr = err
		j.logger().Error("scan unregistered modules", slog.Any("error", err))
		return resultErr
	}
	j.metrics().SetOrphanedGrants("unregistered_module", len(unregistered))
	for _, finding := range unregistered {
		j.logger().Warn("grant references unregistered module",
			slog.Int64("role_id", finding.RoleID),
			slog.String("module", finding.Module))
	}

	staleModuleRows, err := j.scanStaleModuleRows(ctx)
	if err != nil {
		resultErr = err
		j.logger().Error("scan stale module rows", slog.Any("error", err))
		return resultErr
	}
	j.metrics().SetOrphanedGrants("stale_module_row", len(staleModuleRows))
	for _, name := range staleModuleRows {
		j.logger().Warn("modules table row not in application registry", slog.String("module", name))
	}

	j.logger().Info("grant integrity scan complete",
		slog.Int("unregistered_grants", len(unregistered)),
		slog.Int("stale_module_rows", len(staleModuleRows)))
	return resultErr
}

type orphanedGrant struct {
	RoleID int64
	Module string
}

// scanUnregisteredModules finds role_permissions rows whose module_name is no
// longer part of the compiled registry. The FK to modules cannot catch these:
// the modules table may retain rows for modules removed from the code.
func (j *GrantIntegrityJob) scanUnregisteredModules(ctx context.Context) ([]orphanedGrant, error) {
	rows, err := j.Pool.Query(ctx, `SELECT role_id, module_name FROM role_permissions ORDER BY role_id, module_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var findings []orphanedGrant
	for rows.Next() {
		var g orphanedGrant
		if err := rows.Scan(&g.RoleID, &g.Module); err != nil {
			return nil, err
		}
		if !registry.IsKnown(g.Module) {
			findings = append(findings, g)
		}
	}
	return findings, rows.Err()
}

func (j *GrantIntegrityJob) scanStaleModuleRows(ctx context.Context) ([]string, error) {
	rows, err := j.Pool.Query(ctx, `SELECT name FROM modules ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stale []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		if !registry.IsKnown(name) {
			stale = append(stale, name)
		}
	}
	return stale, rows.Err()
}

func (j *GrantIntegrityJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskGrantIntegrity))
	}
	return slog.Default().With(slog.String("job", TaskGrantIntegrity))
}

func (j *GrantIntegrityJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
