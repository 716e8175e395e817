package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/shineum/app-infra/internal/email"
)

// Config holds the settings for creating a Transport. Sender is the mailbox
// the Graph sendMail endpoint is addressed to; messages pass it as From as
// well.
type Config struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	Sender       string
}

// maxRetries is the maximum number of retry attempts for transient failures.
const maxRetries = 3

// baseRetryDelay is the initial delay for exponential backoff.
const baseRetryDelay = 1 * time.Second

// Transport delivers messages through the Microsoft Graph sendMail endpoint
// of the configured sender mailbox, authenticating with OAuth2 client
// credentials.
type Transport struct {
	sendURL    string
	httpClient *http.Client
	creds      *clientCredentials
}

// New creates a Transport with the given configuration.
func New(cfg Config) *Transport {
	tokenURL := fmt.Sprintf(
		"https://login.microsoftonline.com/%s/oauth2/v2.0/token",
		cfg.TenantID,
	)

	client := &http.Client{Timeout: 30 * time.Second}

	return &Transport{
		sendURL:    fmt.Sprintf("https://graph.microsoft.com/v1.0/users/%s/sendMail", cfg.Sender),
		httpClient: client,
		creds:      newClientCredentials(tokenURL, cfg.ClientID, cfg.ClientSecret, client),
	}
}

// newWithOverrides creates a Transport with custom URLs and HTTP client,
// used for testing.
func newWithOverrides(cfg Config, sendURL, tokenURL string, client *http.Client) *Transport {
	return &Transport{
		sendURL:    sendURL,
		httpClient: client,
		creds:      newClientCredentials(tokenURL, cfg.ClientID, cfg.ClientSecret, client),
	}
}

// Send delivers a message via the Microsoft Graph API. It retries transient
// failures with exponential backoff, honors Retry-After on HTTP 429, and
// refreshes the token once on HTTP 401.
func (t *Transport) Send(ctx context.Context, msg *email.Message) error {
	payload, err := json.Marshal(buildSendMailRequest(msg))
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	var lastErr error
	refreshed := false

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			slog.Debug("retrying Graph API request",
				"attempt", attempt,
				"max_retries", maxRetries,
			)
		}

		err := t.postSendMail(ctx, payload)
		if err == nil {
			return nil
		}

		lastErr = err

		apiErr, ok := err.(*apiError)
		if !ok {
			return err
		}

		switch {
		case apiErr.permanent:
			return apiErr
		case apiErr.status == http.StatusUnauthorized && !refreshed:
			// Refresh token once and retry immediately
			slog.Info("refreshing Graph API token after 401")
			if _, refreshErr := t.creds.Refresh(); refreshErr != nil {
				return fmt.Errorf("token refresh failed: %w", refreshErr)
			}
			refreshed = true
			continue
		case apiErr.status == http.StatusTooManyRequests:
			delay := retryAfterDelay(apiErr.retryAfter, attempt)
			slog.Info("rate limited by Graph API",
				"retry_after", delay,
			)
			if err := sleepWithContext(ctx, delay); err != nil {
				return fmt.Errorf("context cancelled during retry wait: %w", err)
			}
			continue
		case apiErr.transient:
			delay := backoffDelay(attempt)
			slog.Info("transient Graph API error, retrying",
				"status", apiErr.status,
				"delay", delay,
			)
			if err := sleepWithContext(ctx, delay); err != nil {
				return fmt.Errorf("context cancelled during retry wait: %w", err)
			}
			continue
		default:
			return apiErr
		}
	}

	return fmt.Errorf("Graph API request failed after %d retries: %w", maxRetries, lastErr)
}

// Name returns the transport name.
func (t *Transport) Name() string {
	return "msgraph"
}

// postSendMail performs a single HTTP request to the sendMail endpoint.
func (t *Transport) postSendMail(ctx context.Context, payload []byte) error {
	token, err := t.creds.Token()
	if err != nil {
		return fmt.Errorf("failed to get access token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.sendURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return &apiError{
			message:   fmt.Sprintf("HTTP request failed: %v", err),
			transient: true,
		}
	}
	defer resp.Body.Close()

	// HTTP 202 Accepted is success for sendMail
	if resp.StatusCode == http.StatusAccepted || resp.StatusCode == http.StatusOK {
		return nil
	}

	body, _ := io.ReadAll(resp.Body)

	var errResp graphErrorResponse
	if jsonErr := json.Unmarshal(body, &errResp); jsonErr == nil && errResp.Error.Message != "" {
		return classifyError(resp.StatusCode, errResp.Error.Message, resp.Header.Get("Retry-After"))
	}

	return classifyError(resp.StatusCode, string(body), resp.Header.Get("Retry-After"))
}

// apiError represents an error from the Graph API send operation with
// classification for retry logic.
type apiError struct {
	message    string
	status     int
	permanent  bool
	transient  bool
	retryAfter string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("Graph API error (HTTP %d): %s", e.status, e.message)
}

// classifyError categorizes an HTTP error response for retry decisions.
func classifyError(status int, message, retryAfter string) *apiError {
	err := &apiError{
		message:    message,
		status:     status,
		retryAfter: retryAfter,
	}

	switch {
	case status == http.StatusBadRequest || status == http.StatusForbidden:
		err.permanent = true
	case status == http.StatusUnauthorized:
		err.transient = true
	case status == http.StatusTooManyRequests:
		err.transient = true
	case status >= 500:
		err.transient = true
	default:
		err.permanent = true
	}

	return err
}

// retryAfterDelay parses a Retry-After header value, falling back to
// exponential backoff when the header is missing or unparseable.
func retryAfterDelay(retryAfter string, attempt int) time.Duration {
	if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return backoffDelay(attempt)
}

// backoffDelay returns the exponential backoff delay for the given attempt number.
// Delays are: 1s, 2s, 4s
func backoffDelay(attempt int) time.Duration {
	delay := baseRetryDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
	}
	return delay
}

// sleepWithContext waits for the specified duration or until the context is cancelled.
func sleepWithContext(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
