// AngelaMos | 2026
// tasks_test.go

package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPurgeTaskShape(t *testing.T) {
	task, err := NewPurgeExpiredTokensTask("admin-1")
	require.NoError(t, err)

	assert.Equal(t, TaskPurgeExpiredTokens, task.Type())
	assert.JSONEq(t, `{"requested_by":"admin-1"}`, string(task.Payload()))
}

func TestPurgeJobRunsPurge(t *testing.T) {
	calls := 0
	job := NewPurgeJob(func(context.Context) (int64, error) {
		calls++
		return 7, nil
	}, nil)

	task, err := NewPurgeExpiredTokensTask("")
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, 1, calls)
}

func TestPurgeJobAcceptsEmptyPayload(t *testing.T) {
	job := NewPurgeJob(func(context.Context) (int64, error) { return 0, nil }, nil)

	require.NoError(t, job.Handle(context.Background(), asynq.NewTask(TaskPurgeExpiredTokens, nil)))
}

func TestPurgeJobFailures(t *testing.T) {
	boom := errors.New("db down")
	job := NewPurgeJob(func(context.Context) (int64, error) { return 0, boom }, nil)

	err := job.Handle(context.Background(), asynq.NewTask(TaskPurgeExpiredTokens, nil))
	require.ErrorIs(t, err, boom)

	err = job.Handle(context.Background(), asynq.NewTask(TaskPurgeExpiredTokens, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestNewWorkerRejectsBadCron(t *testing.T) {
	task, err := NewPurgeExpiredTokensTask("")
	require.NoError(t, err)

	_, err = NewWorker(WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: "127.0.0.1:0"},
		Cron:      []CronRegistration{{Spec: "not a schedule", Task: task}},
	})
	require.Error(t, err)

	_, err = NewWorker(WorkerConfig{})
	require.Error(t, err)
}
