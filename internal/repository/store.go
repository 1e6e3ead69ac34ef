// Package repository is the gorm-backed persistence for transactions,
// postback logs and the read-only reference tables.
package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"cashback-service/internal/affiliate"
	"cashback-service/internal/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

type TransactionFilter struct {
	UserID     string
	Status     string
	Network    string
	OnlyMinted bool
	Limit      int
	Offset     int
}

type PostbackLogFilter struct {
	Network   string
	Processed *bool
	Limit     int
	Offset    int
}

type TransactionStats struct {
	TotalTransactions     int64           `json:"totalTransactions"`
	TotalSales            decimal.Decimal `json:"totalSales"`
	TotalCashback         decimal.Decimal `json:"totalCashback"`
	ConfirmedTransactions int64           `json:"confirmedTransactions"`
	PendingTransactions   int64           `json:"pendingTransactions"`
	AwinTransactions      int64           `json:"awinTransactions"`
	RakutenTransactions   int64           `json:"rakutenTransactions"`
}

type GormStore struct {
	DB *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{DB: db}
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	}
	return err
}

func (s *GormStore) FindTransaction(ctx context.Context, network affiliate.Network, transactionID string) (*models.AffiliateTransaction, error) {
	var t models.AffiliateTransaction
	err := s.DB.WithContext(ctx).
		Where("affiliate_network = ? AND transaction_id = ?", string(network), transactionID).
		First(&t).Error
	if err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

func (s *GormStore) GetTransaction(ctx context.Context, id string) (*models.AffiliateTransaction, error) {
	var t models.AffiliateTransaction
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&t).Error; err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

func (s *GormStore) GetTransactionByTokenID(ctx context.Context, tokenID string) (*models.AffiliateTransaction, error) {
	var t models.AffiliateTransaction
	err := s.DB.WithContext(ctx).
		Preload("Partner").
		Where("nft_token_id = ?", tokenID).
		First(&t).Error
	if err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

// CreateTransaction returns ErrDuplicate when (network, transaction_id) already exists.
func (s *GormStore) CreateTransaction(ctx context.Context, t *models.AffiliateTransaction) error {
	return translate(s.DB.WithContext(ctx).Omit("Partner").Create(t).Error)
}

func (s *GormStore) UpdateTransaction(ctx context.Context, id string, updates map[string]interface{}) error {
	return translate(s.DB.WithContext(ctx).
		Model(&models.AffiliateTransaction{}).
		Where("id = ?", id).
		Updates(updates).Error)
}

func (s *GormStore) ListTransactionViews(ctx context.Context, f TransactionFilter) ([]models.TransactionView, error) {
	q := s.DB.WithContext(ctx).Model(&models.TransactionView{}).Where("user_id = ?", f.UserID)
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Network != "" {
		q = q.Where("affiliate_network = ?", f.Network)
	}
	if f.OnlyMinted {
		q = q.Where("nft_token_id IS NOT NULL")
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit).Offset(f.Offset)
	}

	var rows []models.TransactionView
	if err := q.Order("transaction_date DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListTransactionsByWallet returns the wallet's transactions newest first, with partners loaded.
func (s *GormStore) ListTransactionsByWallet(ctx context.Context, wallet string) ([]models.AffiliateTransaction, error) {
	var rows []models.AffiliateTransaction
	err := s.DB.WithContext(ctx).
		Preload("Partner").
		Where("LOWER(wallet_address) = ?", strings.ToLower(wallet)).
		Order("transaction_date DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ListPendingMints returns transactions whose NFT was never minted, oldest first.
func (s *GormStore) ListPendingMints(ctx context.Context, limit int) ([]models.AffiliateTransaction, error) {
	var rows []models.AffiliateTransaction
	err := s.DB.WithContext(ctx).
		Where("nft_mint_status = ? AND nft_token_id IS NULL", models.MintStatusPendingContractUpdate).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *GormStore) UserStats(ctx context.Context, userID string) (TransactionStats, error) {
	var stats TransactionStats
	err := s.DB.WithContext(ctx).
		Model(&models.AffiliateTransaction{}).
		Select(`COUNT(*) AS total_transactions,
			COALESCE(SUM(sale_amount), 0) AS total_sales,
			COALESCE(SUM(cashback_amount), 0) AS total_cashback,
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS confirmed_transactions,
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS pending_transactions,
			COALESCE(SUM(CASE WHEN affiliate_network = ? THEN 1 ELSE 0 END), 0) AS awin_transactions,
			COALESCE(SUM(CASE WHEN affiliate_network = ? THEN 1 ELSE 0 END), 0) AS rakuten_transactions`,
			models.StatusConfirmed, models.StatusPending, string(affiliate.NetworkAwin), string(affiliate.NetworkRakuten)).
		Where("user_id = ?", userID).
		Scan(&stats).Error
	return stats, err
}

func (s *GormStore) GetUser(ctx context.Context, id string) (*models.WalletUser, error) {
	var u models.WalletUser
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *GormStore) GetPartner(ctx context.Context, id string) (*models.Partner, error) {
	var p models.Partner
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (s *GormStore) FindPartnerByAdvertiser(ctx context.Context, network affiliate.Network, advertiserID string) (*models.Partner, error) {
	column := "awin_advertiser_id"
	if network == affiliate.NetworkRakuten {
		column = "rakuten_advertiser_id"
	}

	var p models.Partner
	if err := s.DB.WithContext(ctx).Where(column+" = ?", advertiserID).First(&p).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

// FindPartnerByDomain matches partners whose url contains domain, case-insensitively.
func (s *GormStore) FindPartnerByDomain(ctx context.Context, domain string) (*models.Partner, error) {
	var p models.Partner
	err := s.DB.WithContext(ctx).
		Where("LOWER(url) LIKE ?", "%"+strings.ToLower(domain)+"%").
		First(&p).Error
	if err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (s *GormStore) ListPartners(ctx context.Context, limit int) ([]models.Partner, error) {
	var rows []models.Partner
	if err := s.DB.WithContext(ctx).Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *GormStore) GetFanToken(ctx context.Context, id string) (*models.FanToken, error) {
	var ft models.FanToken
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&ft).Error; err != nil {
		return nil, translate(err)
	}
	return &ft, nil
}

func (s *GormStore) CreateStoreClick(ctx context.Context, c *models.StoreClick) error {
	return translate(s.DB.WithContext(ctx).Create(c).Error)
}

func (s *GormStore) CreatePostbackLog(ctx context.Context, l *models.PostbackLog) error {
	return translate(s.DB.WithContext(ctx).Create(l).Error)
}

func (s *GormStore) ListPostbackLogs(ctx context.Context, f PostbackLogFilter) ([]models.PostbackLog, error) {
	q := s.DB.WithContext(ctx).Model(&models.PostbackLog{})
	if f.Network != "" {
		q = q.Where("affiliate_network = ?", f.Network)
	}
	if f.Processed != nil {
		q = q.Where("processed = ?", *f.Processed)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit).Offset(f.Offset)
	}

	var rows []models.PostbackLog
	if err := q.Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
