package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/velopay/payswitch-backend/pkg/enums"
)

// ConnectorConfig is one configured connector under a business profile.
// CredentialRef is an opaque handle into the secret store; the raw credential
// is never persisted. At most one active, non-disabled authentication
// connector may exist per profile at any time.
type ConnectorConfig struct {
	ID                uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProfileID         uuid.UUID               `gorm:"column:profile_id;type:uuid;not null;index"`
	MerchantAccountID uuid.UUID               `gorm:"column:merchant_account_id;type:uuid;not null;index"`
	ConnectorName     string                  `gorm:"column:connector_name;not null"`
	ConnectorType     enums.ConnectorType     `gorm:"column:connector_type;type:connector_type;not null"`
	AuthType          enums.ConnectorAuthType `gorm:"column:auth_type;type:connector_auth_type;not null"`
	CredentialRef     string                  `gorm:"column:credential_ref;not null"`
	Metadata          json.RawMessage         `gorm:"column:metadata;type:jsonb"`
	TestMode          bool                    `gorm:"column:test_mode;not null;default:false"`
	Disabled          bool                    `gorm:"column:disabled;not null;default:false"`
	Status            enums.ConnectorStatus   `gorm:"column:status;type:connector_status;not null;default:'inactive'"`
	CreatedAt         time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
