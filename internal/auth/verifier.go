package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Identity is the minimal user record the game engine needs from the
// external identity provider. Account management lives elsewhere.
type Identity struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

type Verifier interface {
	Verify(ctx context.Context, accessToken string) (Identity, error)
}

// HTTPVerifier validates bearer tokens against a GoTrue-compatible
// identity endpoint.
type HTTPVerifier struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client
}

func NewHTTPVerifier(baseURL, anonKey string) *HTTPVerifier {
	return &HTTPVerifier{
		baseURL: strings.TrimRight(baseURL, "/"),
		anonKey: anonKey,
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

func (v *HTTPVerifier) Verify(ctx context.Context, accessToken string) (Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return Identity{}, err
	}
	req.Header.Set("apikey", v.anonKey)
	req.Header.Set("Authorization", "Bearer "+accessToken)
	resp, err := v.httpClient.Do(req)
	if err != nil {
		return Identity{}, fmt.Errorf("verify token: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return Identity{}, fmt.Errorf("verify token status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var out struct {
		ID       string `json:"id"`
		Email    string `json:"email"`
		Metadata struct {
			Username string `json:"username"`
		} `json:"user_metadata"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Identity{}, fmt.Errorf("decode user: %w", err)
	}
	ident := Identity{ID: out.ID, Email: out.Email, Username: out.Metadata.Username}
	if ident.Username == "" {
		ident.Username = usernameFromEmail(ident.Email)
	}
	return ident, nil
}

func usernameFromEmail(email string) string {
	email = strings.TrimSpace(strings.ToLower(email))
	parts := strings.Split(email, "@")
	if len(parts) == 0 || parts[0] == "" {
		return "player"
	}
	return parts[0]
}
