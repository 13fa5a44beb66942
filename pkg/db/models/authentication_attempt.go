package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/velopay/payswitch-backend/pkg/enums"
)

// AuthenticationAttempt is one pass through the 3DS state machine for a
// payment. Attempts in a terminal status are append-only history; a retry or
// resumed challenge always lands on a row that is still in flight.
type AuthenticationAttempt struct {
	ID                uuid.UUID                  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PaymentID         uuid.UUID                  `gorm:"column:payment_id;type:uuid;not null;index"`
	ConnectorName     string                     `gorm:"column:connector_name;not null"`
	Status            enums.AuthenticationStatus `gorm:"column:status;type:authentication_status;not null;default:'not_started'"`
	RequestPayload    json.RawMessage            `gorm:"column:request_payload;type:jsonb"`
	ConnectorAuthID   *string                    `gorm:"column:connector_auth_id"`
	Cavv              *string                    `gorm:"column:cavv"`
	ECI               *string                    `gorm:"column:eci"`
	ThreeDSVersion    *string                    `gorm:"column:three_ds_version"`
	ContinuationToken *string                    `gorm:"column:continuation_token"`
	ChallengeURL      *string                    `gorm:"column:challenge_url"`
	ErrorCode         *string                    `gorm:"column:error_code"`
	ErrorMessage      *string                    `gorm:"column:error_message"`
	AttemptNumber     int                        `gorm:"column:attempt_number;not null;default:1"`
	CreatedAt         time.Time                  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time                  `gorm:"column:updated_at;autoUpdateTime"`
}
