// Package identity models the external identity provider boundary. The
// application only ever needs the verified subject behind a bearer token;
// token issuance, refresh and claims management stay with the provider.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

var ErrInvalidToken = errors.New("invalid token")

type User struct {
	ID    string `json:"userId"`
	Email string `json:"email,omitempty"`
	Admin bool   `json:"admin,omitempty"`
}

// Verifier resolves a bearer token to the user it was issued for.
type Verifier interface {
	Verify(ctx context.Context, token string) (User, error)
}

// HTTPVerifier asks the identity provider's introspection endpoint.
type HTTPVerifier struct {
	baseURL *url.URL
	client  *http.Client
}

func NewHTTPVerifier(baseURL string, client *http.Client) (*HTTPVerifier, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid identity base url %q: %w", baseURL, err)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPVerifier{baseURL: u, client: client}, nil
}

func (v *HTTPVerifier) Verify(ctx context.Context, token string) (User, error) {
	u := v.baseURL.ResolveReference(&url.URL{Path: "/v1/tokens/verify"})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), nil)
	if err != nil {
		return User{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := v.client.Do(req)
	if err != nil {
		return User{}, fmt.Errorf("verify token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return User{}, ErrInvalidToken
	}
	if resp.StatusCode != http.StatusOK {
		return User{}, fmt.Errorf("verify token: unexpected status %d", resp.StatusCode)
	}

	var user User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return User{}, fmt.Errorf("decode identity response: %w", err)
	}
	if user.ID == "" {
		return User{}, ErrInvalidToken
	}
	return user, nil
}

// StaticVerifier maps fixed tokens to users. Dev and test use only.
type StaticVerifier map[string]User

func (v StaticVerifier) Verify(ctx context.Context, token string) (User, error) {
	if user, ok := v[token]; ok {
		return user, nil
	}
	return User{}, ErrInvalidToken
}

// FromAuthHeader extracts the bearer token from an Authorization header.
func FromAuthHeader(header string) (string, bool) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}
