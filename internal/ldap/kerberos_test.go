package ldap

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/go-ldap/ldap/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGSSAPIClient struct {
	deleted bool
}

func (f *fakeGSSAPIClient) InitSecContext(string, []byte) ([]byte, bool, error) {
	return nil, false, nil
}

func (f *fakeGSSAPIClient) InitSecContextWithOptions(string, []byte, []int) ([]byte, bool, error) {
	return nil, false, nil
}

func (f *fakeGSSAPIClient) NegotiateSaslAuth([]byte, string) ([]byte, error) {
	return nil, nil
}

func (f *fakeGSSAPIClient) DeleteSecContext() error {
	f.deleted = true
	return nil
}

func kerberosConfig() *Config {
	cfg := testConfig()
	cfg.KerberosRealm = "EXAMPLE.ORG"
	cfg.KerberosUsername = "svc-terraform"
	cfg.KerberosKeytab = "/etc/krb5.keytab"
	return cfg
}

func stubGSSAPIClient(t *testing.T, client ldap.GSSAPIClient, err error) {
	t.Helper()

	orig := newGSSAPIClient
	newGSSAPIClient = func(*Config) (ldap.GSSAPIClient, error) {
		return client, err
	}
	t.Cleanup(func() { newGSSAPIClient = orig })
}

func TestClient_BindWithKerberos(t *testing.T) {
	t.Run("default service principal", func(t *testing.T) {
		gss := &fakeGSSAPIClient{}
		stubGSSAPIClient(t, gss, nil)

		conn := &fakeGSSAPIConn{}
		client, _ := newTestClient(t, kerberosConfig(), conn)

		require.True(t, client.BindWithKerberos(t.Context()))
		assert.Equal(t, 1, conn.gssUsed)
		assert.Equal(t, "ldap/ldap.example.org", conn.spn)
		assert.Equal(t, "svc-terraform@EXAMPLE.ORG", client.BoundDN())
		assert.True(t, gss.deleted)
	})

	t.Run("explicit service principal", func(t *testing.T) {
		stubGSSAPIClient(t, &fakeGSSAPIClient{}, nil)

		cfg := kerberosConfig()
		cfg.KerberosSPN = "ldap/dc1.example.org"
		conn := &fakeGSSAPIConn{}
		client, _ := newTestClient(t, cfg, conn)

		require.True(t, client.BindWithKerberos(t.Context()))
		assert.Equal(t, "ldap/dc1.example.org", conn.spn)
	})

	t.Run("server rejects the ticket", func(t *testing.T) {
		stubGSSAPIClient(t, &fakeGSSAPIClient{}, nil)

		conn := &fakeGSSAPIConn{gssErr: ldap.NewError(ldap.LDAPResultInvalidCredentials, errors.New("bad ticket"))}
		client, _ := newTestClient(t, kerberosConfig(), conn)

		assert.False(t, client.BindWithKerberos(t.Context()))
		assert.Equal(t, "", client.BoundDN())
	})

	t.Run("credentials unavailable", func(t *testing.T) {
		stubGSSAPIClient(t, nil, NewConfigurationError("kerberos_config", "missing"))

		conn := &fakeGSSAPIConn{}
		client, _ := newTestClient(t, kerberosConfig(), conn)

		assert.False(t, client.BindWithKerberos(t.Context()))
		assert.Zero(t, conn.gssUsed)
	})

	t.Run("connection without gssapi", func(t *testing.T) {
		conn := &fakeConn{}
		client, logger := newTestClient(t, kerberosConfig(), conn)

		assert.False(t, client.BindWithKerberos(t.Context()))
		assert.True(t, logger.has("error", "Kerberos bind unavailable"))
	})
}

func TestCreateGSSAPIClient_ConfigurationErrors(t *testing.T) {
	t.Run("kerberos not configured", func(t *testing.T) {
		_, err := createGSSAPIClient(testConfig())
		assert.True(t, IsConfigurationError(err))
	})

	t.Run("missing krb5.conf", func(t *testing.T) {
		cfg := kerberosConfig()
		cfg.KerberosConfig = filepath.Join(t.TempDir(), "krb5.conf")

		_, err := createGSSAPIClient(cfg)
		var cfgErr *ConfigurationError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "kerberos_config", cfgErr.Field)
	})
}

func TestKerberosPrincipal(t *testing.T) {
	cfg := kerberosConfig()
	assert.Equal(t, "svc-terraform@EXAMPLE.ORG", kerberosPrincipal(cfg))

	cfg.KerberosUsername = "admin@OTHER.ORG"
	assert.Equal(t, "admin@OTHER.ORG", kerberosPrincipal(cfg))

	cfg.KerberosUsername = ""
	assert.Equal(t, "", kerberosPrincipal(cfg))
}

func TestClient_BindServiceAccount(t *testing.T) {
	t.Run("kerberos takes precedence", func(t *testing.T) {
		stubGSSAPIClient(t, &fakeGSSAPIClient{}, nil)

		conn := &fakeGSSAPIConn{}
		client, _ := newTestClient(t, kerberosConfig(), conn)

		require.True(t, client.HasServiceAccount())
		require.True(t, client.BindServiceAccount(t.Context()))
		assert.Equal(t, 1, conn.gssUsed)
		assert.Empty(t, conn.binds)
	})

	t.Run("admin credentials", func(t *testing.T) {
		conn := &fakeConn{}
		client, _ := newTestClient(t, testConfig(), conn)

		require.True(t, client.HasServiceAccount())
		require.True(t, client.BindServiceAccount(t.Context()))
		assert.Equal(t, []bindCall{{dn: "cn=admin,dc=example,dc=org", password: "secret", authenticated: true}}, conn.binds)
	})

	t.Run("no credentials binds anonymously", func(t *testing.T) {
		cfg := testConfig()
		cfg.AdminDN = ""
		cfg.AdminPassword = ""
		conn := &fakeConn{}
		client, _ := newTestClient(t, cfg, conn)

		assert.False(t, client.HasServiceAccount())
		require.True(t, client.BindServiceAccount(t.Context()))
		assert.Equal(t, []bindCall{{}}, conn.binds)
	})

	t.Run("closed client", func(t *testing.T) {
		client, _ := newTestClient(t, testConfig(), &fakeConn{})
		require.NoError(t, client.Close())

		assert.False(t, client.HasServiceAccount())
		assert.False(t, client.BindServiceAccount(t.Context()))
	})
}
