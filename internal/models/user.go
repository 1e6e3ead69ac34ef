package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type WalletUser struct {
	ID              string    `gorm:"primaryKey;column:id;size:36" json:"id"`
	WalletAddress   string    `gorm:"column:wallet_address;size:64;not null;uniqueIndex" json:"wallet_address"`
	Email           string    `gorm:"column:email;size:255;not null" json:"email"`
	Name            *string   `gorm:"column:name;size:255" json:"name"`
	FirstName       *string   `gorm:"column:first_name;size:255" json:"first_name"`
	LastName        *string   `gorm:"column:last_name;size:255" json:"last_name"`
	DefaultCurrency *string   `gorm:"column:default_currency;size:8" json:"default_currency"`
	StakingLevel    *string   `gorm:"column:staking_level;size:32" json:"staking_level"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (WalletUser) TableName() string {
	return "wallet_users"
}

func (u *WalletUser) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

type FanToken struct {
	ID             string    `gorm:"primaryKey;column:id;size:64" json:"id"`
	Name           string    `gorm:"column:name;size:255;not null" json:"name"`
	Symbol         string    `gorm:"column:symbol;size:32;not null" json:"symbol"`
	Category       string    `gorm:"column:category;size:64" json:"category"`
	Logo           *string   `gorm:"column:logo;size:512" json:"logo"`
	Description    *string   `gorm:"column:description;type:text" json:"description"`
	ChilizContract *string   `gorm:"column:chiliz_contract;size:64" json:"chiliz_contract"`
	CoingeckoID    *string   `gorm:"column:coingecko_id;size:64" json:"coingecko_id"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (FanToken) TableName() string {
	return "fan_tokens"
}

// StoreClick records one generated tracking link.
type StoreClick struct {
	ID            string    `gorm:"primaryKey;column:id;size:36" json:"id"`
	WalletAddress string    `gorm:"column:wallet_address;size:64;not null;index" json:"wallet_address"`
	PartnerID     string    `gorm:"column:partner_id;size:36;not null;index" json:"partner_id"`
	ClickedAt     time.Time `gorm:"column:clicked_at;autoCreateTime" json:"clicked_at"`
}

func (StoreClick) TableName() string {
	return "store_clicks"
}

func (c *StoreClick) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}
