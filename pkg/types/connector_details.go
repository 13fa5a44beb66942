package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// AuthenticationConnectorDetails configures the ordered authentication
// connector preference for a business profile, persisted as JSONB.
type AuthenticationConnectorDetails struct {
	AuthenticationConnectors []string `json:"authentication_connectors"`
	ThreeDSRequestorURL      string   `json:"three_ds_requestor_url"`
	ThreeDSRequestorAppURL   *string  `json:"three_ds_requestor_app_url,omitempty"`
}

// Value marshals the details into JSON for Postgres.
func (d AuthenticationConnectorDetails) Value() (driver.Value, error) {
	buf, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// Scan decodes JSONB into the struct.
func (d *AuthenticationConnectorDetails) Scan(value interface{}) error {
	return scanJSON(value, d, "authentication_connector_details")
}

// WebhookDetails holds the merchant's outbound webhook endpoint settings.
type WebhookDetails struct {
	WebhookURL      string  `json:"webhook_url"`
	WebhookUsername *string `json:"webhook_username,omitempty"`
	WebhookPassword *string `json:"webhook_password,omitempty"`
}

// Value marshals the details into JSON for Postgres.
func (d WebhookDetails) Value() (driver.Value, error) {
	buf, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// Scan decodes JSONB into the struct.
func (d *WebhookDetails) Scan(value interface{}) error {
	return scanJSON(value, d, "webhook_details")
}

func scanJSON(value interface{}, dest interface{}, label string) error {
	if value == nil {
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("%s: unsupported scan type %T", label, value)
	}

	return json.Unmarshal(raw, dest)
}
