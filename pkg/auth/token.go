package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/marketingops/sfmc-inventory/pkg/log"
	"github.com/marketingops/sfmc-inventory/pkg/types"
)

const (
	// Tokens are treated as expired this long before their real expiry so
	// in-flight requests never ride a token that dies mid-call.
	expirySkew = 60 * time.Second

	// Fallback when the token response omits expires_in.
	defaultExpiresIn = 1200

	maxConsecutiveFailures = 3
)

// Config holds the client-credentials grant inputs.
type Config struct {
	TokenURL     string // full URL of the /v2/token endpoint
	ClientID     string
	ClientSecret string
	AccountID    int
}

// Manager caches an OAuth2 access token and refreshes it on demand.
// Concurrent callers share a single refresh; a 401 downstream calls
// Invalidate so the next Token call fetches a fresh one.
type Manager struct {
	cfg    Config
	client *http.Client

	mu        sync.RWMutex
	token     string
	expiresAt time.Time
	failures  int

	group singleflight.Group
}

// NewManager creates a token manager. httpClient may be nil, in which case a
// client with a 30s timeout is used.
func NewManager(cfg Config, httpClient *http.Client) *Manager {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Manager{cfg: cfg, client: httpClient}
}

// Token returns a valid access token, refreshing if the cached one is absent
// or within the expiry skew. Concurrent refreshes are collapsed into one
// request.
func (m *Manager) Token(ctx context.Context) (string, error) {
	m.mu.RLock()
	token, ok := m.token, m.valid()
	m.mu.RUnlock()
	if ok {
		return token, nil
	}

	v, err, _ := m.group.Do("token", func() (interface{}, error) {
		// Another waiter may have refreshed while we queued.
		m.mu.RLock()
		token, ok := m.token, m.valid()
		m.mu.RUnlock()
		if ok {
			return token, nil
		}
		return m.refresh(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate drops the cached token. Transports call this when the API
// rejects a request with 401.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	m.token = ""
	m.expiresAt = time.Time{}
	m.mu.Unlock()
}

// valid must be called with at least a read lock held.
func (m *Manager) valid() bool {
	return m.token != "" && time.Now().Before(m.expiresAt.Add(-expirySkew))
}

type tokenRequest struct {
	GrantType    string `json:"grant_type"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	AccountID    int    `json:"account_id,omitempty"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
	RestURL     string `json:"rest_instance_url"`
	SOAPURL     string `json:"soap_instance_url"`
}

func (m *Manager) refresh(ctx context.Context) (string, error) {
	logger := log.WithComponent("auth")

	body, err := json.Marshal(tokenRequest{
		GrantType:    "client_credentials",
		ClientID:     m.cfg.ClientID,
		ClientSecret: m.cfg.ClientSecret,
		AccountID:    m.cfg.AccountID,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.TokenURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return "", m.recordFailure(fmt.Errorf("token request failed: %w", err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", m.recordFailure(fmt.Errorf("failed to read token response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return "", m.recordFailure(fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, truncate(data, 200)))
	}

	var tr tokenResponse
	if err := json.Unmarshal(data, &tr); err != nil {
		return "", m.recordFailure(fmt.Errorf("failed to parse token response: %w", err))
	}
	if tr.AccessToken == "" {
		return "", m.recordFailure(fmt.Errorf("token response missing access_token"))
	}

	expiresIn := tr.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = defaultExpiresIn
	}

	m.mu.Lock()
	m.token = tr.AccessToken
	m.expiresAt = time.Now().Add(time.Duration(expiresIn) * time.Second)
	m.failures = 0
	m.mu.Unlock()

	logger.Debug().Int("expires_in", expiresIn).Msg("token refreshed")
	return tr.AccessToken, nil
}

func (m *Manager) recordFailure(cause error) error {
	m.mu.Lock()
	m.failures++
	failures := m.failures
	m.mu.Unlock()

	if failures >= maxConsecutiveFailures {
		return types.WrapError(types.ErrAuthFailed,
			fmt.Sprintf("authentication failed after %d attempts", failures), cause)
	}
	return cause
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
