package google

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
)

// TokenProvider is an interface for providing OAuth tokens for Google APIs.
// This abstraction allows different token sources (file-based, service
// account, etc.)
type TokenProvider interface {
	// GetTokenForAccount retrieves an OAuth token for the specified account
	GetTokenForAccount(ctx context.Context, account string) (*oauth2.Token, error)

	// HasTokenForAccount checks if a token exists for the specified account
	HasTokenForAccount(account string) bool
}

// FileTokenProvider provides tokens from disk files (for STDIO transport)
type FileTokenProvider struct{}

// NewFileTokenProvider creates a new file-based token provider
func NewFileTokenProvider() *FileTokenProvider {
	return &FileTokenProvider{}
}

// GetTokenForAccount retrieves a token from disk for the specified account
func (p *FileTokenProvider) GetTokenForAccount(ctx context.Context, account string) (*oauth2.Token, error) {
	ts, err := GetTokenSourceForAccount(ctx, account)
	if err != nil {
		return nil, err
	}

	token, err := ts.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to get token from file: %w", err)
	}
	return token, nil
}

// HasTokenForAccount checks if a token file exists for the specified account
func (p *FileTokenProvider) HasTokenForAccount(account string) bool {
	return HasTokenForAccount(account)
}

// ServiceAccountTokenProvider mints tokens from a service account
// credentials file, ignoring the account argument.
type ServiceAccountTokenProvider struct {
	CredentialsFile string
}

// NewServiceAccountTokenProvider creates a provider backed by the given
// credentials JSON file.
func NewServiceAccountTokenProvider(credentialsFile string) *ServiceAccountTokenProvider {
	return &ServiceAccountTokenProvider{CredentialsFile: credentialsFile}
}

// GetTokenForAccount mints a fresh token from the service account.
func (p *ServiceAccountTokenProvider) GetTokenForAccount(ctx context.Context, _ string) (*oauth2.Token, error) {
	ts, err := ServiceAccountTokenSource(ctx, p.CredentialsFile)
	if err != nil {
		return nil, err
	}
	token, err := ts.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to mint service account token: %w", err)
	}
	return token, nil
}

// HasTokenForAccount reports whether the credentials file is readable.
func (p *ServiceAccountTokenProvider) HasTokenForAccount(string) bool {
	_, err := ServiceAccountTokenSource(context.Background(), p.CredentialsFile)
	return err == nil
}
