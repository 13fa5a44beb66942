package models

import (
	"time"

	"github.com/google/uuid"
)

// MerchantAccount is the top-level tenant. Policy fields here are the
// account-wide defaults that business profiles may override.
type MerchantAccount struct {
	ID                       uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name                     string     `gorm:"column:name;not null"`
	APIKeyHash               string     `gorm:"column:api_key_hash;not null;unique"`
	ReturnURL                *string    `gorm:"column:return_url"`
	Force3DSChallenge        bool       `gorm:"column:force_3ds_challenge;not null;default:false"`
	IsAutoRetriesEnabled     bool       `gorm:"column:is_auto_retries_enabled;not null;default:false"`
	MaxAutoRetries           int        `gorm:"column:max_auto_retries;not null;default:0"`
	ConnectorAgnosticMIT     bool       `gorm:"column:is_connector_agnostic_mit_enabled;not null;default:false"`
	IsClickToPayEnabled      bool       `gorm:"column:is_click_to_pay_enabled;not null;default:false"`
	AuthenticationProductIDs *string    `gorm:"column:authentication_product_ids"`
	LastActiveAt             *time.Time `gorm:"column:last_active_at"`
	CreatedAt                time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt                time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
