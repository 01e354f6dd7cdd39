package calendar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/tartampluch/go-hebsync/internal/config"
	"github.com/tartampluch/go-hebsync/internal/hebdate"
	"github.com/tartampluch/go-hebsync/internal/model"
	"github.com/tartampluch/go-hebsync/internal/store"
)

// StoreCredentials implements CredentialProvider on top of the record store,
// refreshing expired access tokens against the service's token endpoint. A
// revoked refresh token clears the stored credential so the owner is forced
// to reconnect.
type StoreCredentials struct {
	Store         store.Store
	Clock         hebdate.Clock
	Client        *http.Client
	TokenEndpoint string
}

// NewStoreCredentials wires the provider with configured timeouts.
func NewStoreCredentials(s store.Store, clk hebdate.Clock, tokenEndpoint string) *StoreCredentials {
	return &StoreCredentials{
		Store:         s,
		Clock:         clk,
		Client:        &http.Client{Timeout: config.HTTPTimeout},
		TokenEndpoint: tokenEndpoint,
	}
}

// ValidAccessToken implements CredentialProvider.
func (p *StoreCredentials) ValidAccessToken(ctx context.Context, ownerID string) (string, error) {
	var cred model.Credential
	err := p.Store.FindByID(ctx, config.CollectionCredentials, ownerID, &cred)
	if errors.Is(err, store.ErrNotFound) {
		return "", fmt.Errorf("%w: no stored credential", ErrCredentialRevoked)
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", config.ErrCredentialFetch, err)
	}

	nowMillis := p.Clock.Now().UnixMilli()
	if cred.AccessToken != "" && nowMillis < cred.ExpiresAt-config.TokenMinValidity.Milliseconds() {
		return cred.AccessToken, nil
	}

	slog.Info(config.MsgTokenRefreshing,
		config.LogKeyComponent, config.CompCreds,
		config.LogKeyOwner, ownerID,
	)

	if cred.RefreshToken == "" {
		return "", fmt.Errorf("%w: no refresh token", ErrCredentialRevoked)
	}
	return p.refresh(ctx, ownerID, cred.RefreshToken)
}

// refresh exchanges the refresh token for a new access token and persists it.
func (p *StoreCredentials) refresh(ctx context.Context, ownerID, refreshToken string) (string, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.TokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("%s: %w", config.ErrTokenRefresh, err)
	}
	req.Header.Set(config.HeaderContentType, "application/x-www-form-urlencoded")
	req.Header.Set(config.HeaderUserAgent, config.UserAgent)

	resp, err := p.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCredentialTemporary, err)
	}
	defer func() { _ = resp.Body.Close() }()

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
		Error       string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("%w: %v", ErrCredentialTemporary, err)
	}

	// invalid_grant means the owner revoked access: drop the dead credential
	// so every caller gets a terminal answer instead of a retry loop.
	if payload.Error == "invalid_grant" {
		slog.Warn(config.MsgTokenRevoked,
			config.LogKeyComponent, config.CompCreds,
			config.LogKeyOwner, ownerID,
		)
		_ = p.Store.Update(ctx, config.CollectionCredentials, ownerID, map[string]any{
			"access_token":  "",
			"refresh_token": "",
		})
		return "", fmt.Errorf("%w: refresh rejected", ErrCredentialRevoked)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 || payload.AccessToken == "" {
		return "", fmt.Errorf("%w: token endpoint status %d", ErrCredentialTemporary, resp.StatusCode)
	}

	expiresAt := p.Clock.Now().UnixMilli() + payload.ExpiresIn*1000
	err = p.Store.Update(ctx, config.CollectionCredentials, ownerID, map[string]any{
		"access_token": payload.AccessToken,
		"expires_at":   expiresAt,
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", config.ErrTokenRefresh, err)
	}
	return payload.AccessToken, nil
}
