package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cashback-service/internal/services"
	"cashback-service/pkg/common"
)

type stubRetrier struct {
	ids    []string
	result *services.RetryResult
	err    error
}

func (s *stubRetrier) RetryMint(_ context.Context, id string) (*services.RetryResult, error) {
	s.ids = append(s.ids, id)
	return s.result, s.err
}

func TestNewMintRetryTask(t *testing.T) {
	task, err := NewMintRetryTask(MintRetryPayload{TransactionID: "t1"})
	require.NoError(t, err)
	assert.Equal(t, TypeMintRetry, task.Type())

	var p MintRetryPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &p))
	assert.Equal(t, "t1", p.TransactionID)
}

func TestHandleMintRetry(t *testing.T) {
	retrier := &stubRetrier{result: &services.RetryResult{Success: true, NFTTokenID: "3"}}
	w := NewWorker(retrier)

	task, _ := NewMintRetryTask(MintRetryPayload{TransactionID: "t1"})
	require.NoError(t, w.HandleMintRetry(context.Background(), task))
	assert.Equal(t, []string{"t1"}, retrier.ids)
}

func TestHandleMintRetryFailures(t *testing.T) {
	ctx := context.Background()

	bad := asynq.NewTask(TypeMintRetry, []byte("{"))
	err := NewWorker(&stubRetrier{}).HandleMintRetry(ctx, bad)
	assert.ErrorIs(t, err, asynq.SkipRetry)

	empty, _ := NewMintRetryTask(MintRetryPayload{})
	err = NewWorker(&stubRetrier{}).HandleMintRetry(ctx, empty)
	assert.ErrorIs(t, err, asynq.SkipRetry)

	task, _ := NewMintRetryTask(MintRetryPayload{TransactionID: "gone"})
	err = NewWorker(&stubRetrier{err: common.NotFound("Transaction not found")}).HandleMintRetry(ctx, task)
	assert.ErrorIs(t, err, asynq.SkipRetry)

	// Transient failures are retried by asynq.
	err = NewWorker(&stubRetrier{err: errors.New("db down")}).HandleMintRetry(ctx, task)
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)

	err = NewWorker(&stubRetrier{result: &services.RetryResult{Error: "rpc down"}}).HandleMintRetry(ctx, task)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rpc down")
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}
