package ldap

import (
	"context"
	"errors"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"
)

// protocolVersion is the only LDAP protocol version go-ldap speaks.
const protocolVersion = 3

// Client wraps a single LDAP connection together with its configuration and
// the result of the most recent search.
//
// A Client is not safe for concurrent use. Share one through ProviderData,
// which serialises access, or give each goroutine its own Client.
type Client struct {
	config     *Config
	conn       Conn
	dial       Dialer
	logger     Logger
	logContext context.Context

	entries []*ldap.Entry
	boundDN string
}

// NewClient validates config, opens a connection to config.Host:config.Port
// and returns a client owning it. The caller must Close the client.
//
// It fails with a *ConfigurationError when required settings are missing,
// with an *UnsupportedEnvironmentError when no usable LDAP connection can be
// obtained from the dialer, and with an *LDAPError when dialing fails.
func NewClient(ctx context.Context, config *Config, opts ...Option) (*Client, error) {
	if config == nil {
		return nil, NewConfigurationError("", "configuration is required")
	}

	cfg, err := config.clone()
	if err != nil {
		return nil, NewConfigurationError("", err.Error())
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		config:     cfg,
		dial:       DialGoLDAP,
		logger:     NewTFLogger(Subsystem),
		logContext: ctx,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.dial == nil {
		return nil, NewUnsupportedEnvironmentError("dialer", errors.New("no LDAP dialer configured"))
	}

	fields := map[string]any{
		"url":             cfg.URL(),
		"start_tls":       cfg.StartTLS,
		"timeout":         cfg.Timeout.String(),
		"dn_policy":       string(cfg.DNPolicy),
		"validation":      string(cfg.Validation),
		"read_attributes": cfg.ReadAttributes,
	}
	c.logger.Debug(ctx, "Opening LDAP connection", fields)

	start := time.Now()
	conn, err := c.dial(ctx, cfg)
	fields["duration_ms"] = time.Since(start).Milliseconds()

	if err != nil {
		if IsUnsupportedEnvironmentError(err) || IsConfigurationError(err) {
			return nil, err
		}
		ldapErr := NewLDAPError("connect", "", err)
		logLDAPError(ctx, c.logger, "connect", ldapErr, fields)
		return nil, ldapErr
	}

	if conn == nil {
		return nil, NewUnsupportedEnvironmentError("connection", errors.New("dialer returned no connection"))
	}

	conn.SetTimeout(cfg.Timeout)
	c.conn = conn

	fields["protocol_version"] = protocolVersion
	c.logger.Info(ctx, "LDAP connection established", fields)

	return c, nil
}

// Config returns a copy of the client configuration, or nil once the client is closed.
func (c *Client) Config() *Config {
	if c.config == nil {
		return nil
	}
	out := *c.config
	out.ReadAttributes = slices.Clone(c.config.ReadAttributes)
	return &out
}

// UserDN composes a relative DN with the configured base DN.
//
// A non-empty dn becomes "dn,<base DN>". An empty dn becomes the base DN under
// UserDNBaseFallback and stays empty under UserDNStrict.
func (c *Client) UserDN(dn string) string {
	if c.config == nil {
		return dn
	}

	if dn != "" {
		if c.config.UserDN == "" {
			return dn
		}
		return dn + "," + c.config.UserDN
	}

	if c.config.DNPolicy == UserDNStrict {
		return ""
	}
	return c.config.UserDN
}

// BoundDN returns the DN of the last successful authenticated bind, or ""
// when the connection is bound anonymously or not bound at all.
func (c *Client) BoundDN() string {
	return c.boundDN
}

// ready reports whether an operation may touch the connection.
func (c *Client) ready(ctx context.Context, operation string) bool {
	if c.conn == nil {
		c.logger.Warn(ctx, "LDAP client is closed", map[string]any{"operation": operation})
		return false
	}
	if err := ctx.Err(); err != nil {
		c.logger.Warn(ctx, "LDAP operation cancelled", map[string]any{
			"operation":     operation,
			"context_error": err.Error(),
		})
		return false
	}
	return true
}

// Bind binds the connection and reports whether the server accepted it.
//
// When isUser is true dn is composed with the base DN (see UserDN). The bind
// is authenticated only when both the resulting DN and password are
// non-empty; otherwise the connection is bound anonymously and dn is ignored.
// Failures are logged and reported as false, never as an error.
func (c *Client) Bind(ctx context.Context, dn, password string, isUser bool) bool {
	if !c.ready(ctx, "bind") {
		return false
	}

	bindDN := dn
	if isUser {
		bindDN = c.UserDN(dn)
	}

	authenticated := bindDN != "" && password != ""
	fields := map[string]any{
		"bind_dn":       bindDN,
		"is_user":       isUser,
		"authenticated": authenticated,
	}

	if !authenticated && bindDN != "" {
		c.logger.Warn(ctx, "Empty password, binding anonymously and ignoring the bind DN", fields)
	}

	err := logOperation(ctx, c.logger, "bind", fields, func() error {
		if authenticated {
			return wrapOperationError("bind", bindDN, c.conn.Bind(bindDN, password))
		}
		return wrapOperationError("anonymous_bind", "", c.conn.UnauthenticatedBind(""))
	})
	if err != nil {
		c.boundDN = ""
		return false
	}

	if authenticated {
		c.boundDN = bindDN
	} else {
		c.boundDN = ""
	}
	return true
}

// BindWithAdmin binds with the configured admin DN and password. The admin
// DN is used verbatim.
func (c *Client) BindWithAdmin(ctx context.Context) bool {
	if c.config == nil {
		return false
	}
	return c.Bind(ctx, c.config.AdminDN, c.config.AdminPassword, false)
}

// Search runs filter, wrapped in parentheses, over the base DN subtree and
// caches the returned entries, replacing any earlier result. An empty filter
// or a failed search leaves the cache empty.
func (c *Client) Search(ctx context.Context, filter string) {
	c.entries = nil

	if filter == "" || !c.ready(ctx, "search") {
		return
	}

	fields := map[string]any{
		"base_dn":    c.config.UserDN,
		"filter":     filter,
		"attributes": c.config.ReadAttributes,
	}

	req := ldap.NewSearchRequest(
		c.config.UserDN,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		0, 0, false,
		"("+filter+")",
		slices.Clone(c.config.ReadAttributes),
		nil,
	)

	var result *ldap.SearchResult
	err := logOperation(ctx, c.logger, "search", fields, func() error {
		var searchErr error
		result, searchErr = c.conn.Search(req)
		return wrapOperationError("search", c.config.UserDN, searchErr)
	})
	if err != nil || result == nil {
		return
	}

	c.entries = result.Entries
	c.logger.Debug(ctx, "Search result cached", map[string]any{
		"entries_found": len(result.Entries),
	})
}

// Entries returns the entries cached by the last Search.
func (c *Client) Entries() []*ldap.Entry {
	return slices.Clone(c.entries)
}

// firstAttribute returns the named attribute of the first cached entry.
func (c *Client) firstAttribute(name string) *ldap.EntryAttribute {
	if name == "" || len(c.entries) == 0 || c.entries[0] == nil {
		return nil
	}

	for _, attr := range c.entries[0].Attributes {
		if strings.EqualFold(attr.Name, name) {
			return attr
		}
	}
	return nil
}

// GetAttribute returns the first value of name on the first cached entry.
// The second result is false when there is no such value.
func (c *Client) GetAttribute(name string) (string, bool) {
	attr := c.firstAttribute(name)
	if attr == nil || len(attr.Values) == 0 {
		return "", false
	}
	return attr.Values[0], true
}

// GetRawAttribute is GetAttribute for binary attributes.
func (c *Client) GetRawAttribute(name string) ([]byte, bool) {
	attr := c.firstAttribute(name)
	if attr == nil || len(attr.ByteValues) == 0 {
		return nil, false
	}
	return attr.ByteValues[0], true
}

// Replace overwrites attributes on the entry named by dn, composed with the
// base DN, and reports whether the server accepted the change.
func (c *Client) Replace(ctx context.Context, dn string, attributes map[string][]string) bool {
	if !c.ready(ctx, "replace") {
		return false
	}

	target := c.UserDN(dn)
	names := slices.Sorted(maps.Keys(attributes))
	fields := map[string]any{
		"dn":         target,
		"attributes": names,
	}

	if len(names) == 0 {
		c.logger.Warn(ctx, "Modify-replace requested without attributes", fields)
		return false
	}

	req := ldap.NewModifyRequest(target, nil)
	for _, name := range names {
		req.Replace(name, attributes[name])
	}

	err := logOperation(ctx, c.logger, "replace", fields, func() error {
		return wrapOperationError("replace", target, c.conn.Modify(req))
	})
	return err == nil
}

// ChangePassword replaces userPassword on dn with the {SHA} encoding of password.
func (c *Client) ChangePassword(ctx context.Context, dn, password string) bool {
	return c.Replace(ctx, dn, map[string][]string{
		"userPassword": {EncodeSHAPassword(password)},
	})
}

// Close releases the connection and drops the cached configuration and
// search result. It is safe to call more than once; errors from an already
// broken connection are logged and ignored.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}

	conn := c.conn
	c.conn = nil
	c.config = nil
	c.entries = nil
	c.boundDN = ""

	if err := conn.Close(); err != nil {
		c.logger.Debug(c.logContext, "Ignoring error while closing LDAP connection", map[string]any{
			"error": err.Error(),
		})
		return nil
	}

	c.logger.Debug(c.logContext, "LDAP connection closed", nil)
	return nil
}

func wrapOperationError(operation, dn string, err error) error {
	if err == nil {
		return nil
	}
	return NewLDAPError(operation, dn, err)
}
