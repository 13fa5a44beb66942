package connectors

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	pkgerrors "github.com/velopay/payswitch-backend/pkg/errors"
)

const maxResponseBytes = 1 << 20

// postJSON performs one JSON round trip. Transport failures, timeouts and 5xx
// responses come back as CONNECTOR_ERROR so the orchestrator can retry them;
// 4xx responses are returned to the caller for domain interpretation.
func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, body, out any) (int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding connector request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building connector request")
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeConnectorError, err, "connector call failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, pkgerrors.Wrap(pkgerrors.CodeConnectorError, err, "reading connector response")
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return resp.StatusCode, pkgerrors.New(pkgerrors.CodeConnectorError,
			fmt.Sprintf("connector returned %d", resp.StatusCode))
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return resp.StatusCode, pkgerrors.Wrap(pkgerrors.CodeConnectorError, err, "decoding connector response")
		}
	}
	return resp.StatusCode, nil
}
