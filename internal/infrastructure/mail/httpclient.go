package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sngm3741/contact-form-services/api/internal/contact/domain"
)

const maxErrorBody = 1 << 16

// apiResponse is the captured outcome of one provider call.
type apiResponse struct {
	StatusCode int
	Body       []byte
}

// postJSON sends payload and reads at most maxErrorBody bytes of the reply.
func postJSON(ctx context.Context, client *http.Client, endpoint string, headers map[string]string, payload any) (*apiResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	res, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
	return &apiResponse{StatusCode: res.StatusCode, Body: raw}, nil
}

// reasonForStatus maps an HTTP status from a mail provider to a failure reason.
func reasonForStatus(status int) domain.FailureReason {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return domain.ReasonUnauthorized
	case status == http.StatusRequestTimeout || status == http.StatusTooManyRequests:
		return domain.ReasonUnavailable
	case status >= 500:
		return domain.ReasonUnavailable
	case status >= 400:
		return domain.ReasonRejected
	}
	return domain.ReasonUnknown
}

func statusError(res *apiResponse) error {
	return fmt.Errorf("status=%d body=%s", res.StatusCode, strings.TrimSpace(string(res.Body)))
}

func defaultHTTPClient(client *http.Client) *http.Client {
	if client != nil {
		return client
	}
	return &http.Client{Timeout: 10 * time.Second}
}
