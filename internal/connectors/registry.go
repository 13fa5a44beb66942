package connectors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	pkgerrors "github.com/velopay/payswitch-backend/pkg/errors"
)

// Config is the runtime configuration handed to a connector constructor. The
// credential is already resolved from its handle by the caller.
type Config struct {
	Name       string
	Credential string
	Metadata   json.RawMessage
	TestMode   bool
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

func (c Config) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

type authenticatorCtor func(Config) (Authenticator, error)

type processorCtor func(Config) (Processor, error)

var authenticatorCtors = map[string]authenticatorCtor{}

var processorCtors = map[string]processorCtor{}

// RegisterAuthenticator installs a constructor under a connector name.
// Called from connector package init functions.
func RegisterAuthenticator(name string, ctor authenticatorCtor) {
	authenticatorCtors[name] = ctor
}

// RegisterProcessor installs a constructor under a connector name.
func RegisterProcessor(name string, ctor processorCtor) {
	processorCtors[name] = ctor
}

// NewAuthenticator builds the authenticator registered under cfg.Name.
func NewAuthenticator(cfg Config) (Authenticator, error) {
	ctor, ok := authenticatorCtors[cfg.Name]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeConnectorNotConfigured,
			fmt.Sprintf("unknown authentication connector %q", cfg.Name))
	}
	return ctor(cfg)
}

// NewProcessor builds the processor registered under cfg.Name.
func NewProcessor(cfg Config) (Processor, error) {
	ctor, ok := processorCtors[cfg.Name]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeConnectorNotConfigured,
			fmt.Sprintf("unknown payment connector %q", cfg.Name))
	}
	return ctor(cfg)
}
