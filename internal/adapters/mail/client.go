// Package mail delivers transactional email through a Plunk-compatible REST
// API. Template rendering happens upstream; this adapter only ships an
// already-rendered HTML body and classifies delivery failures.
package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Categorized delivery failures. Callers decide retry policy; the adapter
// itself only retries transport-level 5xx responses.
var (
	ErrSendFailed         = errors.New("email send failed")
	ErrServiceUnavailable = errors.New("email service unavailable")
	ErrRateLimited        = errors.New("email rate limit exceeded")
	ErrInvalidRecipient   = errors.New("invalid recipient or configuration")
)

type Message struct {
	To       string
	From     string
	Subject  string
	HTMLBody string
}

type SendResult struct {
	ID      string
	Success bool
}

type Dispatcher interface {
	Send(ctx context.Context, msg Message) (*SendResult, error)
}

type httpDispatcher struct {
	apiURL string
	apiKey string
	client *http.Client
}

func NewHTTPDispatcher(apiURL, apiKey string, timeout time.Duration) Dispatcher {
	return &httpDispatcher{apiURL: apiURL, apiKey: apiKey, client: &http.Client{Timeout: timeout}}
}

type sendRequest struct {
	To      string `json:"to"`
	From    string `json:"from"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type sendResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Emails  []struct {
		ID string `json:"id"`
	} `json:"emails,omitempty"`
}

func (d *httpDispatcher) Send(ctx context.Context, msg Message) (*SendResult, error) {
	body, err := json.Marshal(sendRequest{To: msg.To, From: msg.From, Subject: msg.Subject, Body: msg.HTMLBody})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSendFailed, err)
	}

	var result *SendResult
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.apiURL, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+d.apiKey)

		res, err := d.client.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
		}
		defer res.Body.Close()

		var payload sendResponse
		if err := json.NewDecoder(res.Body).Decode(&payload); err != nil && res.StatusCode < 500 {
			return backoff.Permanent(fmt.Errorf("%w: malformed response", ErrSendFailed))
		}

		switch {
		case res.StatusCode >= 500:
			return ErrServiceUnavailable
		case res.StatusCode == http.StatusTooManyRequests:
			return backoff.Permanent(ErrRateLimited)
		case res.StatusCode == http.StatusBadRequest, res.StatusCode == http.StatusUnprocessableEntity:
			return backoff.Permanent(ErrInvalidRecipient)
		case res.StatusCode >= 400 || !payload.Success:
			return backoff.Permanent(fmt.Errorf("%w: %s", ErrSendFailed, payload.Error))
		}

		id := "unknown"
		if len(payload.Emails) > 0 {
			id = payload.Emails[0].ID
		}
		result = &SendResult{ID: id, Success: true}
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, err
	}
	return result, nil
}

// NoopDispatcher drops every message. Used when outbound mail is disabled.
type NoopDispatcher struct{}

func (NoopDispatcher) Send(context.Context, Message) (*SendResult, error) {
	return &SendResult{ID: "noop", Success: true}, nil
}
