package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/washbay-server/washbay-server-pro/internal/core"
	"github.com/washbay-server/washbay-server-pro/internal/models"
)

// DefaultTimeout bounds every backend call
const DefaultTimeout = 5 * time.Second

// HTTPClient talks to the device-management backend over HTTP.
// It implements core.BackendClient.
type HTTPClient struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPClient creates a backend client. A zero timeout falls back to
// DefaultTimeout.
func NewHTTPClient(baseURL, token string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

type verifyResponse struct {
	Verified bool   `json:"verified"`
	Message  string `json:"message"`
}

// Verify runs the registration handshake
func (c *HTTPClient) Verify(ctx context.Context, req core.VerifyRequest) (bool, string, error) {
	var resp verifyResponse
	status, body, err := c.post(ctx, "/api/devices/verify/", req, &resp)
	if err != nil {
		return false, "", &core.CommunicationError{Op: "verify", Err: err}
	}
	if status != http.StatusOK {
		return false, fmt.Sprintf("backend returned error: %d - %s", status, body), nil
	}
	return resp.Verified, resp.Message, nil
}

type configurationRequest struct {
	DeviceID      string           `json:"device_id"`
	Configuration models.Variables `json:"configuration"`
}

type configurationResponse struct {
	Accepted bool   `json:"accepted"`
	Message  string `json:"message"`
}

// SendConfiguration pushes a configuration document for a device
func (c *HTTPClient) SendConfiguration(ctx context.Context, deviceID string, configuration models.Variables) (bool, string, error) {
	req := configurationRequest{DeviceID: deviceID, Configuration: configuration}

	var resp configurationResponse
	status, body, err := c.post(ctx, "/api/devices/configuration/", req, &resp)
	if err != nil {
		return false, "", &core.CommunicationError{Op: "send configuration", Err: err}
	}
	if status != http.StatusOK {
		return false, fmt.Sprintf("backend returned error: %d - %s", status, body), nil
	}
	return resp.Accepted, resp.Message, nil
}

type statusResponse struct {
	Online bool   `json:"online"`
	Status string `json:"status"`
}

// CheckStatus asks the backend whether a device is reachable
func (c *HTTPClient) CheckStatus(ctx context.Context, deviceID string) (bool, string, error) {
	url := fmt.Sprintf("%s/api/devices/%s/status/", c.baseURL, deviceID)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, "", &core.CommunicationError{Op: "check status", Err: err}
	}
	c.setHeaders(httpReq)

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return false, "", &core.CommunicationError{Op: "check status", Err: err}
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(httpResp.Body, 4096))
		return false, fmt.Sprintf("backend returned error: %d - %s", httpResp.StatusCode, body), nil
	}

	var resp statusResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return false, "", &core.CommunicationError{Op: "check status", Err: err}
	}

	return resp.Online, resp.Status, nil
}

func (c *HTTPClient) post(ctx context.Context, path string, payload, out interface{}) (int, string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, "", err
	}
	c.setHeaders(httpReq)

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return 0, "", err
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return 0, "", err
	}

	if httpResp.StatusCode == http.StatusOK {
		if err := json.Unmarshal(raw, out); err != nil {
			return 0, "", err
		}
	}

	return httpResp.StatusCode, strings.TrimSpace(string(raw)), nil
}

func (c *HTTPClient) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}
