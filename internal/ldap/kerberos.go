package ldap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-ldap/ldap/v3"
	"github.com/go-ldap/ldap/v3/gssapi"
	krb5client "github.com/jcmturner/gokrb5/v8/client"
)

// DefaultKerberosConfig is the krb5.conf used when none is configured.
const DefaultKerberosConfig = "/etc/krb5.conf"

// newGSSAPIClient builds a GSSAPI client for the configured credentials.
// It is replaced in tests.
var newGSSAPIClient = createGSSAPIClient

// BindWithKerberos performs a SASL GSSAPI bind using the Kerberos settings
// of the configuration and reports whether it succeeded.
func (c *Client) BindWithKerberos(ctx context.Context) bool {
	if !c.ready(ctx, "kerberos_bind") {
		return false
	}

	cfg := c.config
	fields := map[string]any{
		"realm":    cfg.KerberosRealm,
		"username": cfg.KerberosUsername,
	}

	conn, ok := c.conn.(gssapiConn)
	if !ok {
		err := NewUnsupportedEnvironmentError("gssapi", errors.New("connection does not support SASL GSSAPI binds"))
		c.logger.Error(ctx, "Kerberos bind unavailable", map[string]any{"error": err.Error()})
		return false
	}

	spn := servicePrincipal(cfg)
	fields["service_principal"] = spn

	err := logOperation(ctx, c.logger, "kerberos_bind", fields, func() error {
		client, err := newGSSAPIClient(cfg)
		if err != nil {
			return err
		}
		defer func() {
			_ = client.DeleteSecContext()
		}()

		return wrapOperationError("kerberos_bind", spn, conn.GSSAPIBind(client, spn, ""))
	})
	if err != nil {
		c.boundDN = ""
		return false
	}

	c.boundDN = kerberosPrincipal(cfg)
	return true
}

// BindServiceAccount binds as the configured service identity: Kerberos when
// configured, otherwise the admin DN and password.
func (c *Client) BindServiceAccount(ctx context.Context) bool {
	if c.config == nil {
		return false
	}
	if c.config.HasKerberos() {
		return c.BindWithKerberos(ctx)
	}
	return c.BindWithAdmin(ctx)
}

// HasServiceAccount reports whether BindServiceAccount authenticates rather
// than falling back to an anonymous bind.
func (c *Client) HasServiceAccount() bool {
	return c.config != nil && (c.config.HasKerberos() || c.config.HasAdminCredentials())
}

// createGSSAPIClient picks credentials in the order ccache, keytab, password.
func createGSSAPIClient(cfg *Config) (ldap.GSSAPIClient, error) {
	if !cfg.HasKerberos() {
		return nil, NewConfigurationError("kerberos_realm", "Kerberos realm and credentials are required")
	}

	krb5conf := cfg.KerberosConfig
	if krb5conf == "" {
		krb5conf = DefaultKerberosConfig
	}
	if !fileExists(krb5conf) {
		return nil, NewConfigurationError("kerberos_config", fmt.Sprintf("Kerberos configuration file not found at %s", krb5conf))
	}

	switch {
	case cfg.KerberosCCache != "":
		return gssapi.NewClientFromCCache(cfg.KerberosCCache, krb5conf, krb5client.DisablePAFXFAST(true))
	case cfg.KerberosKeytab != "":
		return gssapi.NewClientWithKeytab(cfg.KerberosUsername, cfg.KerberosRealm, cfg.KerberosKeytab, krb5conf, krb5client.DisablePAFXFAST(true))
	case cfg.KerberosPassword != "":
		return gssapi.NewClientWithPassword(cfg.KerberosUsername, cfg.KerberosRealm, cfg.KerberosPassword, krb5conf, krb5client.DisablePAFXFAST(true))
	default:
		return nil, NewConfigurationError("kerberos_password", "no ccache, keytab or password configured for Kerberos")
	}
}

// servicePrincipal returns the configured SPN, or ldap/<host>.
func servicePrincipal(cfg *Config) string {
	if cfg.KerberosSPN != "" {
		return cfg.KerberosSPN
	}
	return "ldap/" + cfg.Host
}

func kerberosPrincipal(cfg *Config) string {
	if cfg.KerberosUsername == "" {
		return ""
	}
	if strings.Contains(cfg.KerberosUsername, "@") {
		return cfg.KerberosUsername
	}
	return cfg.KerberosUsername + "@" + cfg.KerberosRealm
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}
