// AngelaMos | 2026
// tasks.go

package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel/attribute"

	"github.com/carterperez-dev/academic-core/internal/core"
)

const (
	QueueDefault = "default"

	TaskPurgeExpiredTokens = "auth:purge_expired_tokens"
)

type PurgeExpiredTokensPayload struct {
	RequestedBy string `json:"requested_by,omitempty"`
}

func NewPurgeExpiredTokensTask(requestedBy string) (*asynq.Task, error) {
	body, err := json.Marshal(PurgeExpiredTokensPayload{RequestedBy: requestedBy})
	if err != nil {
		return nil, fmt.Errorf("marshal purge payload: %w", err)
	}

	return asynq.NewTask(
		TaskPurgeExpiredTokens,
		body,
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(3),
		asynq.Timeout(time.Minute),
	), nil
}

// PurgeFunc deletes refresh tokens that expired long enough ago and
// reports how many rows went.
type PurgeFunc func(ctx context.Context) (int64, error)

type PurgeJob struct {
	purge  PurgeFunc
	logger *slog.Logger
}

func NewPurgeJob(purge PurgeFunc, logger *slog.Logger) *PurgeJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &PurgeJob{purge: purge, logger: logger}
}

func (j *PurgeJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	ctx, span := core.StartSpan(ctx, "jobs.purge_expired_tokens")
	defer func() { core.EndSpan(span, err) }()

	var payload PurgeExpiredTokensPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("decode purge payload: %w", asynq.SkipRetry)
		}
	}

	start := time.Now()
	n, err := j.purge(ctx)
	if err != nil {
		j.logger.ErrorContext(ctx, "purge expired tokens failed", "error", err)
		return fmt.Errorf("purge expired tokens: %w", err)
	}

	span.SetAttributes(attribute.Int64("purge.deleted", n))
	j.logger.InfoContext(ctx, "expired tokens purged",
		"deleted", n,
		"requested_by", payload.RequestedBy,
		"duration", time.Since(start).String(),
	)

	return nil
}
