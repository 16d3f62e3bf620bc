package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alfredjeanlab/schoolline/internal/model"
)

// HTTPClient implements Client against the schoolline HTTP API.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewHTTPClient creates a new HTTP client targeting the given base URL
// (e.g. "http://localhost:8080"). When token is non-empty, an Authorization
// header is set on every request.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
	}
}

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

// Dial posts turn to the webhook as a gateway form and returns the reply
// body verbatim.
func (c *HTTPClient) Dial(ctx context.Context, turn model.InboundTurn) (string, error) {
	form := url.Values{}
	form.Set("sessionId", turn.SessionID)
	form.Set("serviceCode", turn.ServiceCode)
	form.Set("phoneNumber", turn.PhoneNumber)
	form.Set("text", turn.Text)
	if turn.NetworkCode != "" {
		form.Set("networkCode", turn.NetworkCode)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/ussd/webhook", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	status, body, err := c.do(req)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", apiError(status, body)
	}
	return string(body), nil
}

// Register posts reg to /ussd. A rejected registration is returned as a
// response with Success=false rather than an error.
func (c *HTTPClient) Register(ctx context.Context, reg *model.Registration) (*RegisterResponse, error) {
	var resp RegisterResponse
	if err := c.doJSON(ctx, http.MethodPost, "/ussd", reg, &resp, http.StatusBadRequest); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) Health(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.doJSON(ctx, http.MethodGet, "/v1/health", nil, &resp, http.StatusServiceUnavailable); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) ListTurns(ctx context.Context, req *ListTurnsRequest) ([]*model.TurnRecord, error) {
	q := url.Values{}
	if req != nil {
		if req.Limit > 0 {
			q.Set("limit", strconv.Itoa(req.Limit))
		}
		if !req.Since.IsZero() {
			q.Set("since", req.Since.UTC().Format(time.RFC3339))
		}
	}
	path := "/v1/turns"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp struct {
		Turns []*model.TurnRecord `json:"turns"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Turns, nil
}

// --- internal helpers ---

// APIError represents an error response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

func apiError(status int, body []byte) *APIError {
	var errResp struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
		return &APIError{StatusCode: status, Message: errResp.Error}
	}
	return &APIError{StatusCode: status, Message: strings.TrimSpace(string(body))}
}

func (c *HTTPClient) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *HTTPClient) do(req *http.Request) (int, []byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("reading response: %w", err)
	}
	return resp.StatusCode, body, nil
}

// doJSON performs an HTTP request with optional JSON body and decodes the
// JSON response into result. Statuses of 400 and above are errors unless
// listed in accept, in which case the body is decoded like a success.
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body, result any, accept ...int) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := c.newRequest(ctx, method, path, bodyReader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	status, respBody, err := c.do(req)
	if err != nil {
		return err
	}

	// 204 No Content: success with no body.
	if status == http.StatusNoContent {
		return nil
	}

	if status >= 400 && !accepted(status, accept) {
		return apiError(status, respBody)
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			if status >= 400 {
				return apiError(status, respBody)
			}
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}

func accepted(status int, accept []int) bool {
	for _, a := range accept {
		if a == status {
			return true
		}
	}
	return false
}
