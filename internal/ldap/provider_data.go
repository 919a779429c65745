package ldap

import (
	"context"
	"errors"
	"sync"
)

// ErrClientUnavailable is returned by ProviderData.Do once the shared client
// has been closed or was never configured.
var ErrClientUnavailable = errors.New("LDAP client is not initialized")

// ProviderData is the value the provider hands to its data sources and
// resources. It owns the single shared Client and serialises access to it,
// since a Client keeps per-connection state between calls.
type ProviderData struct {
	mu     sync.Mutex
	client *Client
}

// NewProviderData wraps client for sharing.
func NewProviderData(client *Client) *ProviderData {
	return &ProviderData{client: client}
}

// Do runs fn with exclusive use of the shared client.
func (pd *ProviderData) Do(ctx context.Context, fn func(*Client) error) error {
	pd.mu.Lock()
	defer pd.mu.Unlock()

	if pd.client == nil {
		return ErrClientUnavailable
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(pd.client)
}

// Close closes the shared client. Later calls to Do fail with ErrClientUnavailable.
func (pd *ProviderData) Close() error {
	pd.mu.Lock()
	defer pd.mu.Unlock()

	if pd.client == nil {
		return nil
	}
	err := pd.client.Close()
	pd.client = nil
	return err
}
