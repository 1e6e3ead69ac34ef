package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

// Task Types
const (
	TypeMintRetry = "nft:mint-retry"
)

const mintRetryQueue = "default"

type MintRetryPayload struct {
	TransactionID string `json:"transaction_id"`
}

// Task Creators

func NewMintRetryTask(payload MintRetryPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeMintRetry, data), nil
}

// Queue enqueues mint retries. One task per transaction can be in flight;
// a second enqueue for the same id is a no-op.
type Queue struct {
	Client  *asynq.Client
	Delay   time.Duration
	Retries int
}

func NewQueue(client *asynq.Client) *Queue {
	return &Queue{Client: client, Delay: 5 * time.Second, Retries: 5}
}

func (q *Queue) EnqueueMintRetry(ctx context.Context, transactionID string) error {
	task, err := NewMintRetryTask(MintRetryPayload{TransactionID: transactionID})
	if err != nil {
		return err
	}

	info, err := q.Client.EnqueueContext(ctx, task,
		asynq.TaskID(fmt.Sprintf("mint-retry:%s", transactionID)),
		asynq.Queue(mintRetryQueue),
		asynq.MaxRetry(q.Retries),
		asynq.ProcessIn(q.Delay),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		logrus.WithField("transaction_id", transactionID).Debug("Mint retry already queued")
		return nil
	}
	if err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{"transaction_id": transactionID, "task_id": info.ID}).Info("Mint retry queued")
	return nil
}
