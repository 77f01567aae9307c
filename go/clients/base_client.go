package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/numduel/go/internal/apperr"
	"github.com/mcdev12/numduel/go/internal/auth"
	"github.com/rs/zerolog/log"
)

const (
	RequestIDHeader     = "X-Request-ID"
	AuthorizationHeader = "Authorization"
)

// BaseClient is a JSON HTTP client that attaches the caller's bearer token
// and classifies every failure with apperr.
type BaseClient struct {
	baseURL string
	client  *http.Client
	headers map[string]string
	tokens  auth.TokenSource
}

func NewBaseClient(baseURL string, tokens auth.TokenSource) *BaseClient {
	return &BaseClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		headers: map[string]string{
			"Content-Type": "application/json",
			"Accept":       "application/json",
		},
		tokens: tokens,
	}
}

func (c *BaseClient) SetHeader(key, value string) {
	c.headers[key] = value
}

func (c *BaseClient) SetTimeout(timeout time.Duration) {
	c.client.Timeout = timeout
}

// SetHTTPClient swaps the underlying transport (tests use httptest clients).
func (c *BaseClient) SetHTTPClient(client *http.Client) {
	c.client = client
}

// errorBody is the backend's error envelope.
type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// MakeRequest sends body (JSON-encoded when non-nil) and returns the raw
// response body. op names the action for error reporting. The token is
// resolved before anything touches the network.
func (c *BaseClient) MakeRequest(ctx context.Context, op, method, endpoint string, body any) ([]byte, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, &apperr.Error{Kind: apperr.KindUnauthenticated, Op: op, Err: err}
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create request: %w", op, err)
	}

	for key, value := range c.headers {
		req.Header.Set(key, value)
	}
	requestID := uuid.New().String()
	req.Header.Set(RequestIDHeader, requestID)
	req.Header.Set(AuthorizationHeader, "Bearer "+token)

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, apperr.Transport(op, err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Transport(op, fmt.Errorf("failed to read response body: %w", err))
	}

	log.Debug().
		Str("op", op).
		Str("method", method).
		Str("endpoint", endpoint).
		Str("request_id", requestID).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("api request completed")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, classifyStatus(op, resp.StatusCode, responseBody)
	}

	return responseBody, nil
}

func classifyStatus(op string, status int, body []byte) error {
	message := strings.TrimSpace(string(body))
	var envelope errorBody
	if err := json.Unmarshal(body, &envelope); err == nil {
		switch {
		case envelope.Message != "":
			message = envelope.Message
		case envelope.Error != "":
			message = envelope.Error
		}
	}

	switch {
	case status == http.StatusUnauthorized:
		return &apperr.Error{Kind: apperr.KindUnauthenticated, Op: op, Status: status, Message: message}
	case status >= 500:
		return &apperr.Error{Kind: apperr.KindTransport, Op: op, Status: status, Message: message}
	default:
		return apperr.Rejected(op, status, message)
	}
}

// DoJSON performs a request and decodes the response into out.
func (c *BaseClient) DoJSON(ctx context.Context, op, method, endpoint string, body, out any) error {
	raw, err := c.MakeRequest(ctx, op, method, endpoint, body)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		var appErr *apperr.Error
		if errors.As(err, &appErr) {
			return err
		}
		return apperr.Malformed(op, fmt.Sprintf("decode response: %v", err))
	}
	return nil
}

func (c *BaseClient) Get(ctx context.Context, op, endpoint string, out any) error {
	return c.DoJSON(ctx, op, http.MethodGet, endpoint, nil, out)
}

func (c *BaseClient) Post(ctx context.Context, op, endpoint string, body, out any) error {
	return c.DoJSON(ctx, op, http.MethodPost, endpoint, body, out)
}

func (c *BaseClient) Put(ctx context.Context, op, endpoint string, body, out any) error {
	return c.DoJSON(ctx, op, http.MethodPut, endpoint, body, out)
}

func (c *BaseClient) Delete(ctx context.Context, op, endpoint string) error {
	return c.DoJSON(ctx, op, http.MethodDelete, endpoint, nil, nil)
}
