package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"cashback-service/internal/affiliate"
	"cashback-service/internal/models"
	"cashback-service/internal/repository"
	"cashback-service/pkg/common"
)

// PostbackService reconciles affiliate postbacks into affiliate_transactions
// and mints the cashback NFT for new transactions.
type PostbackService struct {
	Store  Store
	Helper *HelperService
	Minter Minter
	Parser *affiliate.Parser
	Now    func() time.Time
}

func NewPostbackService(store Store, helper *HelperService, minter Minter, parser *affiliate.Parser) *PostbackService {
	return &PostbackService{
		Store:  store,
		Helper: helper,
		Minter: minter,
		Parser: parser,
		Now:    time.Now,
	}
}

// postbackOutcome is what gets written to postback_logs when the call returns.
type postbackOutcome struct {
	processed     bool
	message       string
	transactionID string
}

func (o *postbackOutcome) fail(msg string) {
	o.processed = false
	o.message = msg
}

// HandlePostback processes one webhook delivery. Exactly one postback log row
// is written per call, whatever the outcome.
func (s *PostbackService) HandlePostback(ctx context.Context, network affiliate.Network, payload map[string]interface{}) (*common.WebhookResponse, error) {
	var outcome postbackOutcome
	defer func() {
		s.Helper.LogPostback(ctx, network, payload, outcome.processed, outcome.message, outcome.transactionID)
	}()

	logger := logrus.WithField("network", network)

	np, err := s.Parser.Parse(network, payload)
	if err != nil {
		outcome.fail(err.Error())
		return nil, common.InvalidInput(err.Error())
	}
	logger = logger.WithField("transaction_id", np.TransactionID)

	ref, err := affiliate.DecodeClickReference(np.ClickReference)
	if err != nil {
		outcome.fail(affiliate.ErrInvalidClickReference.Error())
		return nil, common.InvalidInput(affiliate.ErrInvalidClickReference.Error())
	}

	if np.TransactionID == "" {
		outcome.fail(affiliate.ErrMissingTransactionID.Error())
		return nil, common.InvalidInput(affiliate.ErrMissingTransactionID.Error())
	}

	existing, err := s.Store.FindTransaction(ctx, network, np.TransactionID)
	switch {
	case err == nil:
		return s.redelivered(ctx, existing, np, &outcome)
	case !errors.Is(err, repository.ErrNotFound):
		logger.WithError(err).Error("Error looking up transaction")
		outcome.fail(err.Error())
		return nil, common.Internal("Internal server error", err)
	}

	user, err := s.Store.GetUser(ctx, ref.UserID)
	if err != nil {
		msg := fmt.Sprintf("User not found for ID: %s", ref.UserID)
		logger.WithError(err).Error(msg)
		outcome.fail(msg)
		return nil, lookupError(err, "User not found")
	}

	partner, err := s.Store.FindPartnerByAdvertiser(ctx, network, np.AdvertiserID)
	if err != nil {
		msg := fmt.Sprintf("Partner not found for advertiser ID: %s", np.AdvertiserID)
		logger.WithError(err).Error(msg)
		outcome.fail(msg)
		return nil, lookupError(err, "Partner not found")
	}

	cashback := affiliate.Cashback(np.SaleAmount, partner.BaseRate)
	logger.WithFields(logrus.Fields{
		"sale_amount":         np.SaleAmount.String(),
		"cashback_percent":    partner.BaseRate.String(),
		"cashback_amount":     cashback.String(),
		"received_commission": np.CommissionAmount.String(),
	}).Info("Cashback calculated")

	raw, _ := json.Marshal(payload)
	t := &models.AffiliateTransaction{
		UserID:           user.ID,
		WalletAddress:    user.WalletAddress,
		PartnerID:        partner.ID,
		FanTokenID:       strPtr(ref.FanTokenID),
		TransactionID:    np.TransactionID,
		OrderID:          strPtr(np.OrderRef),
		ClickReference:   np.ClickReference,
		SaleAmount:       np.SaleAmount,
		CommissionAmount: np.CommissionAmount,
		CashbackPercent:  partner.BaseRate,
		CashbackAmount:   cashback,
		Currency:         np.Currency,
		AffiliateNetwork: string(network),
		AdvertiserID:     np.AdvertiserID,
		Status:           np.Status,
		TransactionDate:  np.TransactionDate,
		RawData:          raw,
	}
	if t.Status == models.StatusConfirmed {
		now := s.Now()
		t.ConfirmationDate = &now
	}

	if err := s.Store.CreateTransaction(ctx, t); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// A concurrent delivery inserted the row first.
			existing, findErr := s.Store.FindTransaction(ctx, network, np.TransactionID)
			if findErr == nil {
				return s.redelivered(ctx, existing, np, &outcome)
			}
			err = findErr
		}
		logger.WithError(err).Error("Error inserting transaction")
		outcome.fail(err.Error())
		return nil, common.Internal("Failed to record transaction", err)
	}
	outcome.transactionID = t.ID

	mint := s.Minter.Mint(ctx, MintRequest{
		WalletAddress:   user.WalletAddress,
		PartnerName:     partner.Name,
		CashbackAmount:  cashback,
		SaleAmount:      np.SaleAmount,
		Currency:        np.Currency,
		Status:          models.StatusPending,
		TransactionDate: np.TransactionDate,
		FanTokenID:      ref.FanTokenID,
	})
	if !mint.Success {
		logger.WithField("error", mint.Error).Warn("NFT minting failed, metadata kept for retry")
	}
	if err := s.Store.UpdateTransaction(ctx, t.ID, MintUpdates(mint)); err != nil {
		logger.WithError(err).Error("Error saving NFT result")
	}

	outcome.processed = true
	logger.WithFields(logrus.Fields{
		"id":         t.ID,
		"user_id":    user.ID,
		"partner_id": partner.ID,
		"status":     t.Status,
		"nft_minted": mint.Success,
	}).Info("Transaction recorded successfully")

	resp := &common.WebhookResponse{
		Success:       true,
		Message:       "Transaction recorded successfully",
		TransactionID: t.ID,
		NFTMinted:     mint.Success,
	}
	if mint.Success {
		resp.NFTTokenID = strPtr(mint.TokenID)
	}
	return resp, nil
}

// redelivered handles a postback for a transaction already on record. A
// changed status is applied; an unchanged one is a no-op.
func (s *PostbackService) redelivered(ctx context.Context, existing *models.AffiliateTransaction, np affiliate.NormalizedPostback, outcome *postbackOutcome) (*common.WebhookResponse, error) {
	outcome.transactionID = existing.ID

	if existing.Status == np.Status {
		outcome.processed = true
		outcome.message = "Duplicate transaction"
		return &common.WebhookResponse{
			Success:       true,
			Message:       "Transaction already processed",
			TransactionID: existing.ID,
		}, nil
	}

	if err := s.Store.UpdateTransaction(ctx, existing.ID, StatusUpdates(existing, np.Status, s.Now())); err != nil {
		outcome.fail(err.Error())
		return nil, common.Internal("Failed to update transaction", err)
	}

	logrus.WithFields(logrus.Fields{
		"id":          existing.ID,
		"from_status": existing.Status,
		"to_status":   np.Status,
		"nft_token":   derefOr(existing.NFTTokenID, ""),
	}).Info("Transaction status updated")

	outcome.processed = true
	outcome.message = "Duplicate transaction - status updated"
	return &common.WebhookResponse{
		Success:       true,
		Message:       "Transaction status updated",
		TransactionID: existing.ID,
	}, nil
}

func lookupError(err error, notFoundMsg string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return common.NotFound(notFoundMsg)
	}
	return common.Internal("Internal server error", err)
}
