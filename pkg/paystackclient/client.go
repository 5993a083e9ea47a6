/**
 * @description
 * This package provides a client for interacting with the Paystack API.
 * It encapsulates the logic for making authenticated HTTP requests to Paystack's
 * endpoints, handling request body construction, and parsing responses.
 *
 * @dependencies
 * - bytes, context, encoding/json, fmt, net/http, time: Standard Go libraries.
 */
package paystackclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// DefaultBaseURL is the production Paystack API endpoint.
const DefaultBaseURL = "https://api.paystack.co"

// Client is a client for the Paystack API.
type Client struct {
	BaseURL    string
	SecretKey  string
	HTTPClient *http.Client
}

// NewClient creates a new Paystack API client.
func NewClient(baseURL, secretKey string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		BaseURL:   baseURL,
		SecretKey: secretKey,
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// InitializeRequest represents the payload for a transaction initialization.
type InitializeRequest struct {
	Email  string `json:"email"`
	Amount int64  `json:"amount"`
}

// InitializeResponse is the envelope returned by the initialize endpoint.
type InitializeResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	} `json:"data"`
}

// InitializedTransaction is the subset of the initialize response the service
// consumes.
type InitializedTransaction struct {
	Reference        string
	AuthorizationURL string
}

// APIError represents an error from the Paystack API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("paystack api error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("paystack api error (status %d)", e.StatusCode)
}

// InitializeTransaction registers a pending charge with Paystack and returns
// the gateway's reference together with the hosted checkout URL.
func (c *Client) InitializeTransaction(ctx context.Context, email string, amount int64) (*InitializedTransaction, error) {
	body, err := json.Marshal(InitializeRequest{Email: email, Amount: amount})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal initialize request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/transaction/initialize", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create initialize request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.SecretKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute initialize request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read initialize response: %w", err)
	}

	var envelope InitializeResponse
	if err := json.Unmarshal(bodyBytes, &envelope); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			log.Printf("level=warn component=paystack_client op=initialize status=%d msg=\"non-2xx response (unparsable body)\"", resp.StatusCode)
			return nil, &APIError{StatusCode: resp.StatusCode}
		}
		return nil, fmt.Errorf("failed to decode initialize response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !envelope.Status {
		log.Printf("level=warn component=paystack_client op=initialize status=%d message=%q", resp.StatusCode, envelope.Message)
		return nil, &APIError{StatusCode: resp.StatusCode, Message: envelope.Message}
	}

	return &InitializedTransaction{
		Reference:        envelope.Data.Reference,
		AuthorizationURL: envelope.Data.AuthorizationURL,
	}, nil
}
