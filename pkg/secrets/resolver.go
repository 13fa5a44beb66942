package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"

	pkgerrors "github.com/velopay/payswitch-backend/pkg/errors"
)

// Resolver exchanges an opaque credential handle for the raw secret. Connector
// configs only ever store the handle; the secret itself lives in an external
// store and is resolved at call time.
type Resolver interface {
	Resolve(ctx context.Context, handle string) (string, error)
}

// EnvResolver resolves handles of the form "env:NAME" against the process
// environment. Production deployments swap in a vault-backed implementation.
type EnvResolver struct{}

func NewEnvResolver() *EnvResolver {
	return &EnvResolver{}
}

func (r *EnvResolver) Resolve(_ context.Context, handle string) (string, error) {
	name, ok := strings.CutPrefix(handle, "env:")
	if !ok {
		return "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported credential handle scheme %q", schemeOf(handle)))
	}
	value := os.Getenv(name)
	if value == "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("credential %q not available", name))
	}
	return value, nil
}

func schemeOf(handle string) string {
	if idx := strings.IndexByte(handle, ':'); idx >= 0 {
		return handle[:idx]
	}
	return handle
}

// Static is a fixed-map resolver for tests.
type Static map[string]string

func (s Static) Resolve(_ context.Context, handle string) (string, error) {
	if value, ok := s[handle]; ok {
		return value, nil
	}
	return "", pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("credential %q not available", handle))
}
