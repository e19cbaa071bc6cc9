package google

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
)

// TokenProvider yields the OAuth token that authorizes calendar access
// for a backend account. The abstraction covers both stored token files
// and tokens handed in by HTTP callers.
type TokenProvider interface {
	// GetTokenForAccount returns the account's current OAuth token
	GetTokenForAccount(ctx context.Context, account string) (*oauth2.Token, error)

	// HasTokenForAccount reports whether a token is stored for the account
	HasTokenForAccount(account string) bool
}

// FileTokenProvider reads tokens stored on disk by "tablebook auth
// login". The stdio transport resolves its credentials this way.
type FileTokenProvider struct{}

// NewFileTokenProvider creates a file-based token provider.
func NewFileTokenProvider() *FileTokenProvider {
	return &FileTokenProvider{}
}

// GetTokenForAccount reads and refreshes the account's stored token.
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

// HasTokenForAccount reports whether a token file exists for the account.
func (p *FileTokenProvider) HasTokenForAccount(account string) bool {
	return HasTokenForAccount(account)
}
