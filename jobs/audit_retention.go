package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/meridian-crm/meridian-crm/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// defaultRetainDays keeps roughly one quarter of administration history.
const defaultRetainDays = 90

// AuditRetentionJob removes audit log rows past the retention window.
type AuditRetentionJob struct {
	Pool    *pgxpool.Pool
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewAuditRetentionJob wires dependencies for the retention handler.
func NewAuditRetentionJob(pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *AuditRetentionJob {
	return &AuditRetentionJob{
		Pool:    pool,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes TaskAuditRetention tasks.
func (j *AuditRetentionJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("audit retention: handler not configured")
	}
	var payload AuditRetentionPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.RetainDays <= 0 {
		payload.RetainDays = defaultRetainDays
	}

	tracker := j.metrics().Track(TaskAuditRetention)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	if j.Pool == nil {
		resultErr = errors.New("audit retention: pool not configured")
		return resultErr
	}

	cutoff := j.now().AddDate(0, 0, -payload.RetainDays)
	tag, err := j.Pool.Exec(ctx, `DELETE FROM audit_logs WHERE occurred_at < $1`, cutoff)
	if err != nil {
		resultErr = err
		j.logger().Error("audit retention sweep", slog.Any("error", err))
		return resultErr
	}

	j.logger().Info("audit retention sweep complete",
		slog.Int64("deleted", tag.RowsAffected()),
		slog.Int("retain_days", payload.RetainDays))
	return resultErr
}

func (j *AuditRetentionJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskAuditRetention))
	}
	return slog.Default().With(slog.String("job", TaskAuditRetention))
}

func (j *AuditRetentionJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *AuditRetentionJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
