package tokenprov

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const metadataTokenPath = "/computeMetadata/v1/instance/service-accounts/default/token"

// ComputeMetadata fetches access tokens for the default service account from
// a compute instance metadata endpoint.
type ComputeMetadata struct {
	host   string
	client *http.Client
}

// NewComputeMetadata targets the metadata endpoint at host. A nil client
// selects http.DefaultClient.
func NewComputeMetadata(host string, client *http.Client) *ComputeMetadata {
	if client == nil {
		client = http.DefaultClient
	}
	return &ComputeMetadata{host: host, client: client}
}

// Fetch requests a token from the metadata endpoint.
func (m *ComputeMetadata) Fetch(ctx context.Context) (Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+m.host+metadataTokenPath, nil)
	if err != nil {
		return Token{}, fmt.Errorf("tokenprov: metadata request failed: %w", err)
	}
	req.Header.Set("Metadata-Flavor", "Google")

	resp, err := m.client.Do(req)
	if err != nil {
		return Token{}, fmt.Errorf("tokenprov: metadata request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Token{}, fmt.Errorf("tokenprov: metadata endpoint returned status %d", resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
		TokenType   string `json:"token_type"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Token{}, fmt.Errorf("tokenprov: invalid metadata token response: %w", err)
	}
	if body.AccessToken == "" {
		return Token{}, fmt.Errorf("tokenprov: metadata token response has no access_token")
	}

	tok := Token{AccessToken: body.AccessToken}
	if body.ExpiresIn > 0 {
		tok.Expiry = time.Now().Add(time.Duration(body.ExpiresIn) * time.Second)
	}
	return tok, nil
}

// Reachable probes the metadata endpoint. It is used by default-credential
// resolution to decide whether the process runs on a compute instance.
func (m *ComputeMetadata) Reachable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+m.host+"/", nil)
	if err != nil {
		return false
	}
	req.Header.Set("Metadata-Flavor", "Google")

	resp, err := m.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.Header.Get("Metadata-Flavor") == "Google"
}
