package ldap

import (
	"context"
	"time"

	"github.com/go-ldap/ldap/v3"
)

// Conn is the part of an LDAP connection the client relies on.
// *ldap.Conn from go-ldap satisfies it.
type Conn interface {
	Bind(username, password string) error
	UnauthenticatedBind(username string) error
	Search(req *ldap.SearchRequest) (*ldap.SearchResult, error)
	Modify(req *ldap.ModifyRequest) error
	SetTimeout(timeout time.Duration)
	Close() error
}

// gssapiConn is implemented by connections able to perform a SASL GSSAPI bind.
type gssapiConn interface {
	GSSAPIBind(client ldap.GSSAPIClient, servicePrincipal, authzid string) error
}

// Dialer opens a connection for the given configuration.
type Dialer func(ctx context.Context, cfg *Config) (Conn, error)

var _ Conn = (*ldap.Conn)(nil)
var _ gssapiConn = (*ldap.Conn)(nil)

// Option customises a Client at construction time.
type Option func(*Client)

// WithDialer replaces the go-ldap dialer, mainly for tests.
func WithDialer(d Dialer) Option {
	return func(c *Client) {
		c.dial = d
	}
}

// WithLogger replaces the default tflog logger.
func WithLogger(l Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}
