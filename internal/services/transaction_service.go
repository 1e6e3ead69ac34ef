package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"cashback-service/internal/models"
	"cashback-service/internal/repository"
	"cashback-service/pkg/common"
)

type PurchasePartner struct {
	Name *string `json:"name"`
	Logo *string `json:"logo"`
	URL  *string `json:"url"`
}

// Purchase is the pre-reconciliation purchase shape still used by older clients.
type Purchase struct {
	ID              string          `json:"id"`
	WalletAddress   string          `json:"wallet_address"`
	PartnerID       string          `json:"partner_id"`
	PurchaseValue   decimal.Decimal `json:"purchase_value"`
	CashbackPercent decimal.Decimal `json:"cashback_percent"`
	CashbackAmount  decimal.Decimal `json:"cashback_amount"`
	Date            time.Time       `json:"date"`
	Status          string          `json:"status"`
	Currency        string          `json:"currency"`
	Partners        PurchasePartner `json:"partners"`
}

type UserNFT struct {
	TokenID          *string         `json:"tokenId"`
	ContractAddress  *string         `json:"contractAddress"`
	TransactionHash  *string         `json:"transactionHash"`
	PartnerName      *string         `json:"partnerName"`
	PartnerLogo      *string         `json:"partnerLogo"`
	CashbackAmount   decimal.Decimal `json:"cashbackAmount"`
	Currency         string          `json:"currency"`
	SaleAmount       decimal.Decimal `json:"saleAmount"`
	Network          string          `json:"network"`
	Status           string          `json:"status"`
	TransactionDate  time.Time       `json:"transactionDate"`
	ConfirmationDate *time.Time      `json:"confirmationDate"`
}

type ConfirmResult struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	TransactionID string `json:"transactionId"`
	NFTUpdated    bool   `json:"nftUpdated"`
}

type NFTStatusMetadata struct {
	Status           string     `json:"status"`
	ConfirmationDate *time.Time `json:"confirmation_date"`
	Notes            string     `json:"notes,omitempty"`
}

type NFTStatusResult struct {
	Success   bool              `json:"success"`
	TokenID   string            `json:"tokenId"`
	NewStatus string            `json:"newStatus"`
	Metadata  NFTStatusMetadata `json:"metadata"`
}

// TransactionService serves the user and admin read paths over reconciled
// transactions, plus manual status changes.
type TransactionService struct {
	Store Store
	Now   func() time.Time
}

func NewTransactionService(store Store) *TransactionService {
	return &TransactionService{Store: store, Now: time.Now}
}

func (s *TransactionService) List(ctx context.Context, f repository.TransactionFilter) ([]models.TransactionView, error) {
	rows, err := s.Store.ListTransactionViews(ctx, f)
	if err != nil {
		logrus.WithError(err).WithField("user_id", f.UserID).Error("Error fetching transactions")
		return nil, common.Internal("Failed to fetch transactions", err)
	}
	return rows, nil
}

func (s *TransactionService) Purchases(ctx context.Context, userID string) ([]Purchase, error) {
	rows, err := s.Store.ListTransactionViews(ctx, repository.TransactionFilter{UserID: userID})
	if err != nil {
		logrus.WithError(err).WithField("user_id", userID).Error("Error fetching purchases")
		return nil, common.Internal("Failed to fetch purchases", err)
	}

	out := make([]Purchase, 0, len(rows))
	for _, t := range rows {
		out = append(out, Purchase{
			ID:              t.ID,
			WalletAddress:   t.WalletAddress,
			PartnerID:       t.PartnerID,
			PurchaseValue:   t.SaleAmount,
			CashbackPercent: t.CashbackPercent,
			CashbackAmount:  t.CashbackAmount,
			Date:            t.TransactionDate,
			Status:          t.Status,
			Currency:        t.Currency,
			Partners: PurchasePartner{
				Name: t.PartnerName,
				Logo: t.PartnerLogo,
				URL:  t.PartnerURL,
			},
		})
	}
	return out, nil
}

func (s *TransactionService) Stats(ctx context.Context, userID string) (repository.TransactionStats, error) {
	stats, err := s.Store.UserStats(ctx, userID)
	if err != nil {
		logrus.WithError(err).WithField("user_id", userID).Error("Error fetching statistics")
		return stats, common.Internal("Failed to fetch statistics", err)
	}
	return stats, nil
}

func (s *TransactionService) UserNFTs(ctx context.Context, userID string) ([]UserNFT, error) {
	rows, err := s.Store.ListTransactionViews(ctx, repository.TransactionFilter{UserID: userID, OnlyMinted: true})
	if err != nil {
		logrus.WithError(err).WithField("user_id", userID).Error("Error fetching NFTs")
		return nil, common.Internal("Failed to fetch NFTs", err)
	}

	out := make([]UserNFT, 0, len(rows))
	for _, t := range rows {
		out = append(out, UserNFT{
			TokenID:          t.NFTTokenID,
			ContractAddress:  t.NFTContractAddress,
			TransactionHash:  t.NFTTransactionHash,
			PartnerName:      t.PartnerName,
			PartnerLogo:      t.PartnerLogo,
			CashbackAmount:   t.CashbackAmount,
			Currency:         t.Currency,
			SaleAmount:       t.SaleAmount,
			Network:          t.AffiliateNetwork,
			Status:           t.Status,
			TransactionDate:  t.TransactionDate,
			ConfirmationDate: t.ConfirmationDate,
		})
	}
	return out, nil
}

func (s *TransactionService) PostbackLogs(ctx context.Context, f repository.PostbackLogFilter) ([]models.PostbackLog, error) {
	logs, err := s.Store.ListPostbackLogs(ctx, f)
	if err != nil {
		logrus.WithError(err).Error("Error fetching postback logs")
		return nil, common.Internal("Failed to fetch postback logs", err)
	}
	return logs, nil
}

func validAdminStatus(status string) bool {
	switch status {
	case models.StatusConfirmed, models.StatusRejected, models.StatusCancelled:
		return true
	}
	return false
}

// ConfirmCashback applies an admin status decision. When the transaction has
// a minted NFT its stored metadata is annotated with the new status.
func (s *TransactionService) ConfirmCashback(ctx context.Context, transactionID, status, notes string) (*ConfirmResult, error) {
	if !validAdminStatus(status) {
		return nil, common.InvalidInput("Invalid status. Must be: confirmed, rejected, or cancelled")
	}

	t, err := s.Store.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, lookupError(err, "Transaction not found")
	}

	updates := StatusUpdates(t, status, s.Now())
	if t.NFTTokenID == nil {
		// No NFT to annotate; leave metadata as recorded.
		delete(updates, "nft_metadata")
	}
	updates["admin_notes"] = strPtr(notes)

	if err := s.Store.UpdateTransaction(ctx, t.ID, updates); err != nil {
		logrus.WithError(err).WithField("id", t.ID).Error("Error updating transaction")
		return nil, common.Internal("Failed to update transaction", err)
	}

	logger := logrus.WithFields(logrus.Fields{"id": t.ID, "status": status})
	if t.NFTTokenID != nil {
		logger = logger.WithField("nft_token_id", *t.NFTTokenID)
	}
	logger.Info("Transaction status changed by admin")

	return &ConfirmResult{
		Success:       true,
		Message:       fmt.Sprintf("Transaction %s successfully", status),
		TransactionID: transactionID,
		NFTUpdated:    t.NFTTokenID != nil,
	}, nil
}

// UpdateNFTStatus changes the status of the transaction behind tokenID.
func (s *TransactionService) UpdateNFTStatus(ctx context.Context, tokenID, status, notes string) (*NFTStatusResult, error) {
	if !validAdminStatus(status) && status != models.StatusPending {
		return nil, common.InvalidInput("Invalid status. Must be: confirmed, rejected, or cancelled")
	}

	t, err := s.Store.GetTransactionByTokenID(ctx, tokenID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, common.NotFound("NFT not found")
		}
		return nil, common.Internal("Internal server error", err)
	}

	now := s.Now()
	updates := StatusUpdates(t, status, now)
	updates["admin_notes"] = strPtr(notes)
	if err := s.Store.UpdateTransaction(ctx, t.ID, updates); err != nil {
		return nil, common.Internal("Failed to update transaction", err)
	}

	meta := NFTStatusMetadata{Status: status, Notes: notes}
	if status == models.StatusConfirmed {
		meta.ConfirmationDate = &now
	}
	logrus.WithFields(logrus.Fields{"token_id": tokenID, "status": status}).Info("NFT status updated")

	return &NFTStatusResult{
		Success:   true,
		TokenID:   tokenID,
		NewStatus: status,
		Metadata:  meta,
	}, nil
}
