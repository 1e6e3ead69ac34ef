package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Partner struct {
	ID                  string          `gorm:"primaryKey;column:id;size:36" json:"id"`
	Name                string          `gorm:"column:name;size:255;not null" json:"name"`
	Logo                string          `gorm:"column:logo;size:512" json:"logo"`
	URL                 string          `gorm:"column:url;size:512" json:"url"`
	BaseRate            decimal.Decimal `gorm:"column:base_rate;type:decimal(10,4);not null;default:0" json:"base_rate"`
	AwinAdvertiserID    *string         `gorm:"column:awin_advertiser_id;size:64;index" json:"awin_advertiser_id"`
	RakutenAdvertiserID *string         `gorm:"column:rakuten_advertiser_id;size:64;index" json:"rakuten_advertiser_id"`
	Category            *string         `gorm:"column:category;size:64" json:"category"`
	CashbackByCategory  datatypes.JSON  `gorm:"column:cashback_by_category" json:"cashback_by_category"`
	Color               *string         `gorm:"column:color;size:32" json:"color"`
	Country             *string         `gorm:"column:country;size:8" json:"country"`
	Featured            bool            `gorm:"column:featured;default:false" json:"featured"`
	CreatedAt           time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Partner) TableName() string {
	return "partners"
}

func (p *Partner) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
