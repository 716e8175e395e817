package graph

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// graphScope is the OAuth2 scope for application-permission Graph calls.
const graphScope = "https://graph.microsoft.com/.default"

// expirySkew shortens the cached token lifetime so a token is never handed
// out moments before the service rejects it.
const expirySkew = 5 * time.Minute

// clientCredentials acquires Graph API access tokens with the OAuth2
// client credentials grant and caches them until shortly before expiry.
// Safe for concurrent use.
type clientCredentials struct {
	tokenURL   string
	id         string
	secret     string
	httpClient *http.Client

	mu      sync.Mutex
	current string
	expiry  time.Time
}

func newClientCredentials(tokenURL, id, secret string, httpClient *http.Client) *clientCredentials {
	return &clientCredentials{
		tokenURL:   tokenURL,
		id:         id,
		secret:     secret,
		httpClient: httpClient,
	}
}

// Token returns the cached access token, fetching a new one when the cache
// is empty or stale.
func (c *clientCredentials) Token() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != "" && time.Now().Before(c.expiry) {
		return c.current, nil
	}
	return c.obtain()
}

// Refresh drops the cached token and fetches a new one. Used when the API
// rejects the current token with a 401.
func (c *clientCredentials) Refresh() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.current = ""
	return c.obtain()
}

// obtain fetches a token and updates the cache. The caller must hold c.mu.
func (c *clientCredentials) obtain() (string, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.id)
	form.Set("client_secret", c.secret)
	form.Set("scope", graphScope)

	resp, err := c.httpClient.PostForm(c.tokenURL, form)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", fmt.Errorf("failed to parse token response: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("token response missing access_token")
	}

	c.current = tok.AccessToken
	c.expiry = time.Now().Add(time.Duration(tok.ExpiresIn)*time.Second - expirySkew)
	return c.current, nil
}
