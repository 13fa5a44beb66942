package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/velopay/payswitch-backend/pkg/types"
)

// BusinessProfile scopes connector configuration and policy overrides under a
// merchant account. Nullable policy fields fall back to the account defaults.
// ConnectorVersion guards connector activation with a compare-and-swap.
type BusinessProfile struct {
	ID                             uuid.UUID                             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	MerchantAccountID              uuid.UUID                             `gorm:"column:merchant_account_id;type:uuid;not null;index"`
	Name                           string                                `gorm:"column:name;not null"`
	ReturnURL                      *string                               `gorm:"column:return_url"`
	Force3DSChallenge              *bool                                 `gorm:"column:force_3ds_challenge"`
	IsAutoRetriesEnabled           *bool                                 `gorm:"column:is_auto_retries_enabled"`
	MaxAutoRetries                 *int                                  `gorm:"column:max_auto_retries"`
	ConnectorAgnosticMIT           *bool                                 `gorm:"column:is_connector_agnostic_mit_enabled"`
	IsClickToPayEnabled            *bool                                 `gorm:"column:is_click_to_pay_enabled"`
	AuthenticationConnectorDetails *types.AuthenticationConnectorDetails `gorm:"column:authentication_connector_details;type:jsonb"`
	WebhookDetails                 *types.WebhookDetails                 `gorm:"column:webhook_details;type:jsonb"`
	ConnectorVersion               int                                   `gorm:"column:connector_version;not null;default:0"`
	CreatedAt                      time.Time                             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt                      time.Time                             `gorm:"column:updated_at;autoUpdateTime"`
}
