package ldap

import (
	"fmt"
	"net"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
)

// DefaultPort is the standard LDAP port used when a caller does not supply one.
const DefaultPort = 389

// UserDNPolicy controls how an empty relative DN is composed with the base DN.
type UserDNPolicy string

const (
	// UserDNBaseFallback composes an empty relative DN to the base DN itself.
	UserDNBaseFallback UserDNPolicy = "base_fallback"
	// UserDNStrict leaves an empty relative DN empty, which leads to an anonymous bind.
	UserDNStrict UserDNPolicy = "strict"
)

// UserDNPolicies lists the accepted values of UserDNPolicy.
var UserDNPolicies = []string{string(UserDNBaseFallback), string(UserDNStrict)}

// ValidationPolicy controls how much checking NewClient does on a Config.
type ValidationPolicy string

const (
	// ValidationStrict rejects a Config without a host or port.
	ValidationStrict ValidationPolicy = "strict"
	// ValidationTrusted accepts a Config that the caller has already validated.
	ValidationTrusted ValidationPolicy = "trusted"
)

// Config is the immutable configuration record of a Client.
type Config struct {
	Host           string   // LDAP server host name
	Port           int      // LDAP server port
	UserDN         string   // Base DN; relative user DNs are appended to it
	AdminDN        string   // DN used verbatim by BindWithAdmin
	AdminPassword  string   // Password used by BindWithAdmin
	ReadAttributes []string // Attributes requested by Search

	Timeout            time.Duration `default:"30s"`
	UseTLS             bool          // Dial ldaps:// instead of ldap://
	StartTLS           bool          // Upgrade a plain connection with StartTLS
	InsecureSkipVerify bool

	DNPolicy   UserDNPolicy     `default:"base_fallback"`
	Validation ValidationPolicy `default:"strict"`

	// Kerberos settings for BindWithKerberos
	KerberosRealm    string
	KerberosUsername string
	KerberosPassword string
	KerberosKeytab   string
	KerberosConfig   string
	KerberosCCache   string
	KerberosSPN      string
}

// DefaultConfig returns a configuration for localhost on the standard port.
func DefaultConfig() *Config {
	cfg := &Config{Host: "localhost", Port: DefaultPort}
	_ = defaults.Set(cfg)
	return cfg
}

// clone returns a deep copy with defaults applied.
func (c *Config) clone() (*Config, error) {
	out := *c
	out.ReadAttributes = slices.Clone(c.ReadAttributes)
	if err := defaults.Set(&out); err != nil {
		return nil, fmt.Errorf("failed to apply configuration defaults: %w", err)
	}
	return &out, nil
}

// Validate checks the configuration according to its validation policy.
func (c *Config) Validate() error {
	switch c.Validation {
	case ValidationTrusted:
		return nil
	case ValidationStrict, "":
	default:
		return NewConfigurationError("validation", fmt.Sprintf("unknown validation policy %q", c.Validation))
	}

	if strings.TrimSpace(c.Host) == "" {
		return NewConfigurationError("host", "LDAP host is required")
	}

	if c.Port <= 0 || c.Port > 65535 {
		return NewConfigurationError("port", fmt.Sprintf("LDAP port must be between 1 and 65535, got %d", c.Port))
	}

	switch c.DNPolicy {
	case UserDNBaseFallback, UserDNStrict, "":
	default:
		return NewConfigurationError("dn_policy", fmt.Sprintf("unknown DN policy %q", c.DNPolicy))
	}

	if c.UseTLS && c.StartTLS {
		return NewConfigurationError("start_tls", "StartTLS cannot be combined with an ldaps:// connection")
	}

	return nil
}

// HasAdminCredentials reports whether BindWithAdmin can perform an authenticated bind.
func (c *Config) HasAdminCredentials() bool {
	return c.AdminDN != "" && c.AdminPassword != ""
}

// HasKerberos reports whether a GSSAPI bind is configured.
func (c *Config) HasKerberos() bool {
	return c.KerberosRealm != "" && (c.KerberosKeytab != "" || c.KerberosCCache != "" || c.KerberosUsername != "")
}

// URL returns the LDAP URL the client dials.
func (c *Config) URL() string {
	scheme := "ldap"
	if c.UseTLS {
		scheme = "ldaps"
	}
	return scheme + "://" + net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
