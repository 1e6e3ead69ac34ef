package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusRejected  = "rejected"
	StatusCancelled = "cancelled"
)

const (
	MintStatusPendingContractUpdate = "pending_contract_update"
	MintStatusMinted                = "minted"
)

func init() {
	// Money columns are emitted as JSON numbers, matching what API clients already parse.
	decimal.MarshalJSONWithoutQuotes = true
}

// AffiliateTransaction is the canonical record of one affiliate sale.
// (affiliate_network, transaction_id) is unique.
type AffiliateTransaction struct {
	ID               string          `gorm:"primaryKey;column:id;size:36" json:"id"`
	UserID           string          `gorm:"column:user_id;size:36;not null;index" json:"user_id"`
	WalletAddress    string          `gorm:"column:wallet_address;size:64;index" json:"wallet_address"`
	PartnerID        string          `gorm:"column:partner_id;size:36;not null;index" json:"partner_id"`
	Partner          *Partner        `gorm:"foreignKey:PartnerID" json:"partners,omitempty"`
	FanTokenID       *string         `gorm:"column:fan_token_id;size:64" json:"fan_token_id"`
	TransactionID    string          `gorm:"column:transaction_id;size:191;not null;uniqueIndex:idx_network_transaction,priority:2" json:"transaction_id"`
	OrderID          *string         `gorm:"column:order_id;size:191" json:"order_id"`
	ClickReference   string          `gorm:"column:click_reference;size:255" json:"click_reference"`
	SaleAmount       decimal.Decimal `gorm:"column:sale_amount;type:decimal(20,8);not null;default:0" json:"sale_amount"`
	CommissionAmount decimal.Decimal `gorm:"column:commission_amount;type:decimal(20,8);not null;default:0" json:"commission_amount"`
	CashbackPercent  decimal.Decimal `gorm:"column:cashback_percent;type:decimal(10,4);not null;default:0" json:"cashback_percent"`
	CashbackAmount   decimal.Decimal `gorm:"column:cashback_amount;type:decimal(20,8);not null;default:0" json:"cashback_amount"`
	Currency         string          `gorm:"column:currency;size:8;not null;default:brl" json:"currency"`
	AffiliateNetwork string          `gorm:"column:affiliate_network;size:32;not null;uniqueIndex:idx_network_transaction,priority:1" json:"affiliate_network"`
	AdvertiserID     string          `gorm:"column:advertiser_id;size:64" json:"advertiser_id"`
	Status           string          `gorm:"column:status;size:16;not null;default:pending;index" json:"status"`
	TransactionDate  time.Time       `gorm:"column:transaction_date;index" json:"transaction_date"`
	ConfirmationDate *time.Time      `gorm:"column:confirmation_date" json:"confirmation_date"`

	NFTTokenID         *string        `gorm:"column:nft_token_id;size:78;index" json:"nft_token_id"`
	NFTContractAddress *string        `gorm:"column:nft_contract_address;size:64" json:"nft_contract_address"`
	NFTTransactionHash *string        `gorm:"column:nft_transaction_hash;size:80" json:"nft_transaction_hash"`
	NFTMetadata        datatypes.JSON `gorm:"column:nft_metadata" json:"nft_metadata"`
	NFTMintStatus      *string        `gorm:"column:nft_mint_status;size:32;index" json:"nft_mint_status"`

	RawData    datatypes.JSON `gorm:"column:raw_data" json:"raw_data"`
	AdminNotes *string        `gorm:"column:admin_notes;type:text" json:"admin_notes"`
	CreatedAt  time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (AffiliateTransaction) TableName() string {
	return "affiliate_transactions"
}

func (t *AffiliateTransaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// TransactionView is a row of v_affiliate_transactions: a transaction plus
// partner display fields and the owning user's wallet.
type TransactionView struct {
	AffiliateTransaction
	PartnerName       *string          `gorm:"column:partner_name" json:"partner_name"`
	PartnerLogo       *string          `gorm:"column:partner_logo" json:"partner_logo"`
	PartnerURL        *string          `gorm:"column:partner_url" json:"partner_url"`
	PartnerBaseRate   *decimal.Decimal `gorm:"column:partner_base_rate" json:"partner_base_rate"`
	UserWalletAddress *string          `gorm:"column:user_wallet_address" json:"user_wallet_address"`
}

func (TransactionView) TableName() string {
	return "v_affiliate_transactions"
}
