package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"cashback-service/internal/services"
	"cashback-service/pkg/common"
)

// Retrier is the slice of the mint retry service the worker drives.
type Retrier interface {
	RetryMint(ctx context.Context, transactionID string) (*services.RetryResult, error)
}

var (
	_ Retrier               = (*services.MintRetryService)(nil)
	_ services.MintEnqueuer = (*Queue)(nil)
)

type Worker struct {
	Retry Retrier
}

func NewWorker(retry Retrier) *Worker {
	return &Worker{
		Retry: retry,
	}
}

func (w *Worker) HandleMintRetry(ctx context.Context, t *asynq.Task) error {
	var p MintRetryPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("json.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}
	if p.TransactionID == "" {
		return fmt.Errorf("empty transaction id: %w", asynq.SkipRetry)
	}

	res, err := w.Retry.RetryMint(ctx, p.TransactionID)
	if err != nil {
		var appErr *common.AppError
		if errors.As(err, &appErr) && appErr.Kind == common.KindNotFound {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}
	if !res.Success {
		// Returning an error hands the task back to asynq's retry schedule.
		return fmt.Errorf("mint retry for %s failed: %s", p.TransactionID, res.Error)
	}

	logrus.WithFields(logrus.Fields{
		"transaction_id": p.TransactionID,
		"token_id":       res.NFTTokenID,
		"already_minted": res.AlreadyMinted,
	}).Info("Mint retry completed")
	return nil
}

// NewServeMux registers every task handler.
func NewServeMux(w *Worker) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeMintRetry, w.HandleMintRetry)
	return mux
}

func StartWorker(redisOpt asynq.RedisClientOpt, retry Retrier) {
	srv := asynq.NewServer(
		redisOpt,
		asynq.Config{
			// Specify how many concurrent workers to use
			Concurrency: 10,
			// Optionally specify multiple queues with different priority.
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			Logger: logrus.StandardLogger(),
		},
	)

	mux := NewServeMux(NewWorker(retry))

	if err := srv.Run(mux); err != nil {
		logrus.Fatalf("could not run server: %v", err)
	}
}
