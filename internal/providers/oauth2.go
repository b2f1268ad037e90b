package providers

import (
	"context"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/genvault/genvault/internal/events"
	"github.com/genvault/genvault/internal/models"
)

// expirySkew refreshes tokens slightly before their real deadline so an
// in-flight request never lands with a just-expired token.
const expirySkew = 30 * time.Second

// OAuth2Config configures an OAuth2Provider. Only the token-exchange
// contract is modeled here; obtaining the initial refresh token (browser
// redirect flow) happens outside the core.
type OAuth2Config struct {
	Client       ClientConfig `json:"client" mapstructure:"client"`
	TokenURL     string       `json:"token_url" mapstructure:"token_url"`
	ClientID     string       `json:"client_id" mapstructure:"client_id"`
	ClientSecret string       `json:"client_secret" mapstructure:"client_secret"`
	RefreshToken string       `json:"refresh_token" mapstructure:"refresh_token"`
}

// OAuth2Provider talks to a cloud storage API authenticated with bearer
// tokens. The access token is cached and refreshed transparently before
// any operation once it nears expiry.
type OAuth2Provider struct {
	name   string
	cfg    OAuth2Config
	client *resty.Client
	logger *events.Logger

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
}

// NewOAuth2Provider creates an OAuth2 provider.
func NewOAuth2Provider(name string, cfg OAuth2Config, logger *events.Logger) *OAuth2Provider {
	return &OAuth2Provider{
		name:   name,
		cfg:    cfg,
		client: newRestyClient(cfg.Client, logger),
		logger: logger.WithField("provider", name),
	}
}

// Name implements Provider.
func (p *OAuth2Provider) Name() string { return p.name }

// IsAuthenticated reports whether a refresh token is configured.
func (p *OAuth2Provider) IsAuthenticated(ctx context.Context) bool {
	if p.cfg.RefreshToken == "" {
		return false
	}
	_, err := p.token(ctx)
	return err == nil
}

// UploadVault implements Provider.
func (p *OAuth2Provider) UploadVault(ctx context.Context, data models.VaultSyncData) (*UploadResult, error) {
	token, err := p.token(ctx)
	if err != nil {
		return nil, err
	}

	var result UploadResult
	resp, err := p.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetHeader("Content-Type", "application/json").
		SetBody(data).
		SetResult(&result).
		Put("/v1/vaults/" + data.VaultID)
	if err != nil {
		return nil, transportError(p.name, err)
	}
	if resp.IsError() {
		return nil, statusError(p.name, resp.StatusCode(), resp.String())
	}

	return &result, nil
}

// DownloadVault implements Provider.
func (p *OAuth2Provider) DownloadVault(ctx context.Context, fileID string) (*models.VaultSyncData, error) {
	token, err := p.token(ctx)
	if err != nil {
		return nil, err
	}

	var data models.VaultSyncData
	resp, err := p.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetResult(&data).
		Get("/v1/files/" + fileID)
	if err != nil {
		return nil, transportError(p.name, err)
	}
	if resp.IsError() {
		return nil, statusError(p.name, resp.StatusCode(), resp.String())
	}

	return &data, nil
}

// ListVaults implements Provider.
func (p *OAuth2Provider) ListVaults(ctx context.Context) ([]Metadata, error) {
	token, err := p.token(ctx)
	if err != nil {
		return nil, err
	}

	var list []Metadata
	resp, err := p.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetResult(&list).
		Get("/v1/vaults")
	if err != nil {
		return nil, transportError(p.name, err)
	}
	if resp.IsError() {
		return nil, statusError(p.name, resp.StatusCode(), resp.String())
	}

	return list, nil
}

// DeleteVault implements Provider.
func (p *OAuth2Provider) DeleteVault(ctx context.Context, fileID string) error {
	token, err := p.token(ctx)
	if err != nil {
		return err
	}

	resp, err := p.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		Delete("/v1/files/" + fileID)
	if err != nil {
		return transportError(p.name, err)
	}
	if resp.IsError() {
		return statusError(p.name, resp.StatusCode(), resp.String())
	}

	return nil
}

// token returns a valid access token, refreshing it if the cached one is
// missing or near expiry.
func (p *OAuth2Provider) token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.accessToken != "" && time.Now().Before(p.expiresAt.Add(-expirySkew)) {
		return p.accessToken, nil
	}

	return p.refreshAccessToken(ctx)
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// refreshAccessToken exchanges the refresh token for a new access token.
// Callers hold p.mu.
func (p *OAuth2Provider) refreshAccessToken(ctx context.Context) (string, error) {
	if p.cfg.RefreshToken == "" {
		return "", &models.ProviderError{
			Kind:     models.ProviderAuthExpired,
			Provider: p.name,
			Message:  "no refresh token configured",
		}
	}

	p.logger.Debug("Refreshing access token")

	var tok tokenResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"grant_type":    "refresh_token",
			"refresh_token": p.cfg.RefreshToken,
			"client_id":     p.cfg.ClientID,
			"client_secret": p.cfg.ClientSecret,
		}).
		SetResult(&tok).
		Post(p.cfg.TokenURL)
	if err != nil {
		return "", transportError(p.name, err)
	}
	if resp.IsError() {
		// A rejected refresh token is an auth failure regardless of the
		// exact status the server chose.
		return "", &models.ProviderError{
			Kind:       models.ProviderAuthExpired,
			Provider:   p.name,
			StatusCode: resp.StatusCode(),
			Message:    resp.String(),
		}
	}

	if tok.AccessToken == "" {
		return "", &models.ProviderError{
			Kind:     models.ProviderAuthExpired,
			Provider: p.name,
			Message:  "token response missing access_token",
		}
	}

	p.accessToken = tok.AccessToken
	p.expiresAt = tokenExpiry(tok)

	p.logger.WithField("expires_at", p.expiresAt).Debug("Access token refreshed")
	return p.accessToken, nil
}

// tokenExpiry determines when an access token expires: expires_in when the
// server provides it, otherwise the exp claim of a JWT-shaped token. The
// claim is read unverified; it only schedules the next refresh, it grants
// nothing.
func tokenExpiry(tok tokenResponse) time.Time {
	if tok.ExpiresIn > 0 {
		return time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	}

	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(tok.AccessToken, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time
		}
	}

	// Opaque token without expiry hint: refresh conservatively.
	return time.Now().Add(5 * time.Minute)
}
