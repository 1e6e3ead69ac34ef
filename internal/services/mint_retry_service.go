package services

import (
	"context"
	"errors"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"cashback-service/internal/repository"
	"cashback-service/pkg/common"
)

type RetryResult struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transactionId"`
	Queued        bool   `json:"queued,omitempty"`
	AlreadyMinted bool   `json:"alreadyMinted,omitempty"`
	NFTTokenID    string `json:"nftTokenId,omitempty"`
	Error         string `json:"error,omitempty"`
}

// MintRetryService re-attempts mints for transactions left in
// pending_contract_update. Retries are idempotent: a transaction that already
// carries a token id is never minted again.
type MintRetryService struct {
	Store    Store
	Minter   Minter
	Enqueuer MintEnqueuer
	Batch    int
}

func NewMintRetryService(store Store, minter Minter, enqueuer MintEnqueuer, batch int) *MintRetryService {
	if batch <= 0 {
		batch = 50
	}
	return &MintRetryService{Store: store, Minter: minter, Enqueuer: enqueuer, Batch: batch}
}

// RetryMint mints the NFT for one transaction now.
func (s *MintRetryService) RetryMint(ctx context.Context, transactionID string) (*RetryResult, error) {
	t, err := s.Store.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, lookupError(err, "Transaction not found")
	}
	if t.NFTTokenID != nil {
		return &RetryResult{Success: true, TransactionID: t.ID, AlreadyMinted: true, NFTTokenID: *t.NFTTokenID}, nil
	}

	partnerName := "Unknown Partner"
	if p, err := s.Store.GetPartner(ctx, t.PartnerID); err == nil {
		partnerName = p.Name
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, common.Internal("Internal server error", err)
	}

	mint := s.Minter.Mint(ctx, MintRequest{
		WalletAddress:   t.WalletAddress,
		PartnerName:     partnerName,
		CashbackAmount:  t.CashbackAmount,
		SaleAmount:      t.SaleAmount,
		Currency:        t.Currency,
		Status:          t.Status,
		TransactionDate: t.TransactionDate,
		FanTokenID:      derefOr(t.FanTokenID, ""),
	})
	if err := s.Store.UpdateTransaction(ctx, t.ID, MintUpdates(mint)); err != nil {
		logrus.WithError(err).WithField("id", t.ID).Error("Error saving NFT result")
		return nil, common.Internal("Failed to update transaction", err)
	}

	logger := logrus.WithFields(logrus.Fields{"id": t.ID, "nft_minted": mint.Success})
	if !mint.Success {
		logger.WithField("error", mint.Error).Warn("Mint retry failed")
		return &RetryResult{TransactionID: t.ID, Error: mint.Error}, nil
	}
	logger.WithField("token_id", mint.TokenID).Info("Mint retry succeeded")
	return &RetryResult{Success: true, TransactionID: t.ID, NFTTokenID: mint.TokenID}, nil
}

// Schedule queues a retry for the worker, or runs it inline when no queue is
// configured.
func (s *MintRetryService) Schedule(ctx context.Context, transactionID string) (*RetryResult, error) {
	if s.Enqueuer == nil {
		return s.RetryMint(ctx, transactionID)
	}

	t, err := s.Store.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, lookupError(err, "Transaction not found")
	}
	if t.NFTTokenID != nil {
		return &RetryResult{Success: true, TransactionID: t.ID, AlreadyMinted: true, NFTTokenID: *t.NFTTokenID}, nil
	}
	if err := s.Enqueuer.EnqueueMintRetry(ctx, t.ID); err != nil {
		return nil, common.Integration("Failed to queue mint retry", err)
	}
	return &RetryResult{Success: true, TransactionID: t.ID, Queued: true}, nil
}

// SchedulePending queues retries for the oldest pending mints and returns how
// many were queued.
func (s *MintRetryService) SchedulePending(ctx context.Context) (int, error) {
	rows, err := s.Store.ListPendingMints(ctx, s.Batch)
	if err != nil {
		return 0, err
	}

	queued := 0
	for _, t := range rows {
		var err error
		if s.Enqueuer != nil {
			err = s.Enqueuer.EnqueueMintRetry(ctx, t.ID)
		} else {
			_, err = s.RetryMint(ctx, t.ID)
		}
		if err != nil {
			logrus.WithError(err).WithField("id", t.ID).Error("Error scheduling mint retry")
			continue
		}
		queued++
	}
	return queued, nil
}

// StartScheduler runs SchedulePending on spec. The returned cron must be
// stopped on shutdown.
func (s *MintRetryService) StartScheduler(spec string) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		logrus.Info("Running scheduled mint retry task...")
		n, err := s.SchedulePending(context.Background())
		if err != nil {
			logrus.WithError(err).Error("Error listing pending mints")
			return
		}
		logrus.WithField("queued", n).Info("Mint retry task finished")
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	logrus.WithField("spec", spec).Info("Mint retry scheduler started")
	return c, nil
}
