package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PostbackLog is the audit row written once per inbound affiliate webhook.
type PostbackLog struct {
	ID               string         `gorm:"primaryKey;column:id;size:36" json:"id"`
	AffiliateNetwork string         `gorm:"column:affiliate_network;size:32;not null;index" json:"affiliate_network"`
	RawPayload       datatypes.JSON `gorm:"column:raw_payload" json:"raw_payload"`
	Processed        bool           `gorm:"column:processed;default:false;index" json:"processed"`
	ErrorMessage     *string        `gorm:"column:error_message;type:text" json:"error_message"`
	TransactionID    *string        `gorm:"column:transaction_id;size:36" json:"transaction_id"`
	CreatedAt        time.Time      `gorm:"column:created_at;autoCreateTime;index" json:"created_at"`
}

func (PostbackLog) TableName() string {
	return "postback_logs"
}

func (l *PostbackLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}
