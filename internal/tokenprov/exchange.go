package tokenprov

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// GoogleTokenURL is the token-exchange endpoint used by refresh-token
// credentials unless overridden.
const GoogleTokenURL = "https://oauth2.googleapis.com/token"

// refreshTokenFile is the JSON shape of an authorized-user credential file.
type refreshTokenFile struct {
	Type         string `json:"type"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	RefreshToken string `json:"refresh_token"`
}

// RefreshExchanger exchanges a long-lived refresh token for short-lived
// access tokens at an OAuth2 token endpoint.
type RefreshExchanger struct {
	cfg          *oauth2.Config
	refreshToken string
}

// NewRefreshExchanger parses jsonRefreshToken (client_id, client_secret,
// refresh_token) and prepares the exchange against tokenURL. An empty
// tokenURL selects GoogleTokenURL.
func NewRefreshExchanger(jsonRefreshToken []byte, tokenURL string) (*RefreshExchanger, error) {
	var rt refreshTokenFile
	if err := json.Unmarshal(jsonRefreshToken, &rt); err != nil {
		return nil, fmt.Errorf("tokenprov: invalid refresh token JSON: %w", err)
	}
	if rt.ClientID == "" || rt.ClientSecret == "" {
		return nil, errors.New("tokenprov: refresh token JSON is missing client_id or client_secret")
	}
	if rt.RefreshToken == "" {
		return nil, errors.New("tokenprov: refresh token JSON is missing refresh_token")
	}
	if rt.Type != "" && rt.Type != "authorized_user" {
		return nil, fmt.Errorf("tokenprov: unexpected credential type %q", rt.Type)
	}

	if tokenURL == "" {
		tokenURL = GoogleTokenURL
	}

	return &RefreshExchanger{
		cfg: &oauth2.Config{
			ClientID:     rt.ClientID,
			ClientSecret: rt.ClientSecret,
			Endpoint:     oauth2.Endpoint{TokenURL: tokenURL},
		},
		refreshToken: rt.RefreshToken,
	}, nil
}

// Fetch performs one token exchange.
func (r *RefreshExchanger) Fetch(ctx context.Context) (Token, error) {
	src := r.cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: r.refreshToken})
	tok, err := src.Token()
	if err != nil {
		return Token{}, fmt.Errorf("tokenprov: refresh token exchange failed: %w", err)
	}
	return Token{AccessToken: tok.AccessToken, Expiry: tok.Expiry}, nil
}

// ClientCredentials fetches tokens via the OAuth2 client-credentials flow.
type ClientCredentials struct {
	cfg *clientcredentials.Config
}

// NewClientCredentials prepares a client-credentials flow against tokenURL.
// scopes is a space-separated scope list.
func NewClientCredentials(tokenURL, clientID, clientSecret, scopes string) (*ClientCredentials, error) {
	if tokenURL == "" {
		return nil, errors.New("tokenprov: token URL is required")
	}
	if clientID == "" {
		return nil, errors.New("tokenprov: client ID is required")
	}
	if clientSecret == "" {
		return nil, errors.New("tokenprov: client secret is required")
	}

	return &ClientCredentials{
		cfg: &clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     tokenURL,
			Scopes:       strings.Fields(scopes),
		},
	}, nil
}

// Fetch requests a fresh token.
func (c *ClientCredentials) Fetch(ctx context.Context) (Token, error) {
	tok, err := c.cfg.Token(ctx)
	if err != nil {
		return Token{}, fmt.Errorf("tokenprov: client credentials exchange failed: %w", err)
	}
	return Token{AccessToken: tok.AccessToken, Expiry: tok.Expiry}, nil
}
