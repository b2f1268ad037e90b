package providers

import (
	"context"

	"github.com/go-resty/resty/v2"

	"github.com/genvault/genvault/internal/events"
	"github.com/genvault/genvault/internal/models"
)

// BasicAuthConfig configures a BasicAuthProvider.
type BasicAuthConfig struct {
	Client   ClientConfig `json:"client" mapstructure:"client"`
	Username string       `json:"username" mapstructure:"username"`
	Password string       `json:"password" mapstructure:"password"`
}

// BasicAuthProvider talks to a self-hosted vault storage server (WebDAV
// style) with credentials encoded on every request. It holds no token
// state.
type BasicAuthProvider struct {
	name   string
	cfg    BasicAuthConfig
	client *resty.Client
	logger *events.Logger
}

// NewBasicAuthProvider creates a basic-auth provider.
func NewBasicAuthProvider(name string, cfg BasicAuthConfig, logger *events.Logger) *BasicAuthProvider {
	return &BasicAuthProvider{
		name:   name,
		cfg:    cfg,
		client: newRestyClient(cfg.Client, logger),
		logger: logger.WithField("provider", name),
	}
}

// Name implements Provider.
func (p *BasicAuthProvider) Name() string { return p.name }

// IsAuthenticated reports whether credentials are configured.
func (p *BasicAuthProvider) IsAuthenticated(ctx context.Context) bool {
	return p.cfg.Username != "" && p.cfg.Password != ""
}

func (p *BasicAuthProvider) request(ctx context.Context) *resty.Request {
	return p.client.R().
		SetContext(ctx).
		SetBasicAuth(p.cfg.Username, p.cfg.Password)
}

// UploadVault implements Provider.
func (p *BasicAuthProvider) UploadVault(ctx context.Context, data models.VaultSyncData) (*UploadResult, error) {
	var result UploadResult
	resp, err := p.request(ctx).
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
func (p *BasicAuthProvider) DownloadVault(ctx context.Context, fileID string) (*models.VaultSyncData, error) {
	var data models.VaultSyncData
	resp, err := p.request(ctx).
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
func (p *BasicAuthProvider) ListVaults(ctx context.Context) ([]Metadata, error) {
	var list []Metadata
	resp, err := p.request(ctx).
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
func (p *BasicAuthProvider) DeleteVault(ctx context.Context, fileID string) error {
	resp, err := p.request(ctx).
		Delete("/v1/files/" + fileID)
	if err != nil {
		return transportError(p.name, err)
	}
	if resp.IsError() {
		return statusError(p.name, resp.StatusCode(), resp.String())
	}

	return nil
}
