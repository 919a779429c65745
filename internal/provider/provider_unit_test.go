package provider_test

import (
	"context"
	"errors"
	"testing"

	"github.com/hashicorp/terraform-plugin-framework/provider"
	"github.com/hashicorp/terraform-plugin-framework/providerserver"
	"github.com/hashicorp/terraform-plugin-framework/tfsdk"
	"github.com/hashicorp/terraform-plugin-go/tftypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ldapclient "github.com/isometry/terraform-provider-ldap/internal/ldap"
	this "github.com/isometry/terraform-provider-ldap/internal/provider"
)

// TestProviderMetadata tests the provider metadata.
func TestProviderMetadata(t *testing.T) {
	p := &this.LDAPProvider{Version: "test"}

	req := provider.MetadataRequest{}
	resp := &provider.MetadataResponse{}

	p.Metadata(t.Context(), req, resp)

	if resp.TypeName != "ldap" {
		t.Errorf("Expected TypeName 'ldap', got %s", resp.TypeName)
	}

	if resp.Version != "test" {
		t.Errorf("Expected Version 'test', got %s", resp.Version)
	}
}

// TestProviderSchema tests the provider schema.
func TestProviderSchema(t *testing.T) {
	p := &this.LDAPProvider{}

	req := provider.SchemaRequest{}
	resp := &provider.SchemaResponse{}

	p.Schema(t.Context(), req, resp)

	if resp.Diagnostics.HasError() {
		t.Fatalf("Schema creation failed: %v", resp.Diagnostics)
	}

	expectedAttributes := []string{
		"host", "port", "user_dn", "admin_dn", "admin_password", "read_attributes", "bind_admin",
		"use_tls", "start_tls", "skip_tls_verify", "connect_timeout", "dn_policy",
		"kerberos_realm", "kerberos_username", "kerberos_password", "kerberos_keytab",
		"kerberos_config", "kerberos_ccache", "kerberos_spn",
	}

	for _, attr := range expectedAttributes {
		if _, exists := resp.Schema.Attributes[attr]; !exists {
			t.Errorf("Expected attribute %s not found in schema", attr)
		}
	}

	for _, sensitive := range []string{"admin_password", "kerberos_password"} {
		assert.True(t, resp.Schema.Attributes[sensitive].IsSensitive(), "%s should be sensitive", sensitive)
	}
}

// TestProviderResourcesAndDataSources tests the registered components.
func TestProviderResourcesAndDataSources(t *testing.T) {
	p := &this.LDAPProvider{}

	resources := p.Resources(t.Context())
	assert.Len(t, resources, 2)
	for i, resourceFunc := range resources {
		assert.NotNil(t, resourceFunc(), "resource function %d returned nil", i)
	}

	dataSources := p.DataSources(t.Context())
	assert.Len(t, dataSources, 2)
	for i, dataSourceFunc := range dataSources {
		assert.NotNil(t, dataSourceFunc(), "data source function %d returned nil", i)
	}

	assert.NotEmpty(t, p.ConfigValidators(t.Context()))
}

// TestNewProvider tests the New provider function.
func TestNewProvider(t *testing.T) {
	for _, version := range []string{"test", "dev", "1.0.0", ""} {
		t.Run(version, func(t *testing.T) {
			ldapProvider, ok := this.New(version)().(*this.LDAPProvider)
			require.True(t, ok, "Provider is not of type *LDAPProvider")
			assert.Equal(t, version, ldapProvider.Version)
		})
	}
}

// TestProviderServer tests provider server creation.
func TestProviderServer(t *testing.T) {
	server, err := providerserver.NewProtocol6WithError(this.New("test")())()
	require.NoError(t, err)
	assert.NotNil(t, server)
}

func configureProvider(t *testing.T, p provider.Provider, values map[string]tftypes.Value) *provider.ConfigureResponse {
	t.Helper()

	schemaResp := &provider.SchemaResponse{}
	p.Schema(t.Context(), provider.SchemaRequest{}, schemaResp)
	require.False(t, schemaResp.Diagnostics.HasError())

	req := provider.ConfigureRequest{
		Config: tfsdk.Config{
			Schema: schemaResp.Schema,
			Raw:    objectValue(t, schemaResp.Schema.Type(), values),
		},
	}
	resp := &provider.ConfigureResponse{}

	p.Configure(t.Context(), req, resp)
	return resp
}

func clearLDAPEnv(t *testing.T) {
	for _, name := range []string{
		"LDAP_HOST", "LDAP_PORT", "LDAP_USER_DN", "LDAP_ADMIN_DN", "LDAP_ADMIN_PASSWORD",
		"LDAP_READ_ATTRIBUTES", "LDAP_USE_TLS", "LDAP_START_TLS", "LDAP_SKIP_TLS_VERIFY",
		"LDAP_CONNECT_TIMEOUT", "LDAP_DN_POLICY", "LDAP_BIND_ADMIN", "LDAP_KERBEROS_REALM",
		"LDAP_KERBEROS_USERNAME", "LDAP_KERBEROS_PASSWORD", "LDAP_KERBEROS_KEYTAB",
		"LDAP_KERBEROS_CONFIG", "LDAP_KERBEROS_CCACHE", "LDAP_KERBEROS_SPN",
	} {
		t.Setenv(name, "")
	}
}

func TestProviderConfigure(t *testing.T) {
	clearLDAPEnv(t)

	conn := &fakeConn{}
	var dialed *ldapclient.Config
	dialer := func(_ context.Context, cfg *ldapclient.Config) (ldapclient.Conn, error) {
		dialed = cfg
		return conn, nil
	}

	resp := configureProvider(t, this.New("test", ldapclient.WithDialer(dialer))(), map[string]tftypes.Value{
		"host":            str("ldap.example.org"),
		"user_dn":         str("ou=people,dc=example,dc=org"),
		"admin_dn":        str("cn=admin,dc=example,dc=org"),
		"admin_password":  str("secret"),
		"read_attributes": stringList("cn", "mail"),
	})
	require.False(t, resp.Diagnostics.HasError(), "unexpected diagnostics: %v", resp.Diagnostics)

	pd, ok := resp.DataSourceData.(*ldapclient.ProviderData)
	require.True(t, ok)
	assert.Same(t, pd, resp.ResourceData)
	t.Cleanup(func() { _ = pd.Close() })

	require.NotNil(t, dialed)
	assert.Equal(t, ldapclient.DefaultPort, dialed.Port)
	assert.Equal(t, []string{"cn", "mail"}, dialed.ReadAttributes)
	assert.Equal(t, ldapclient.UserDNBaseFallback, dialed.DNPolicy)

	assert.Equal(t, []bindCall{{DN: "cn=admin,dc=example,dc=org", Authenticated: true}}, conn.binds)
}

func TestProviderConfigure_EnvironmentFallback(t *testing.T) {
	clearLDAPEnv(t)
	t.Setenv("LDAP_HOST", "env.example.org")
	t.Setenv("LDAP_PORT", "1389")
	t.Setenv("LDAP_READ_ATTRIBUTES", "cn, mail ,,uid")
	t.Setenv("LDAP_DN_POLICY", "strict")
	t.Setenv("LDAP_CONNECT_TIMEOUT", "5")

	var dialed *ldapclient.Config
	dialer := func(_ context.Context, cfg *ldapclient.Config) (ldapclient.Conn, error) {
		dialed = cfg
		return &fakeConn{}, nil
	}

	resp := configureProvider(t, this.New("test", ldapclient.WithDialer(dialer))(), map[string]tftypes.Value{
		"port": number(10389),
	})
	require.False(t, resp.Diagnostics.HasError(), "unexpected diagnostics: %v", resp.Diagnostics)
	t.Cleanup(func() { _ = resp.DataSourceData.(*ldapclient.ProviderData).Close() })

	require.NotNil(t, dialed)
	assert.Equal(t, "env.example.org", dialed.Host)
	assert.Equal(t, 10389, dialed.Port, "configuration takes precedence over the environment")
	assert.Equal(t, []string{"cn", "mail", "uid"}, dialed.ReadAttributes)
	assert.Equal(t, ldapclient.UserDNStrict, dialed.DNPolicy)
	assert.Equal(t, "5s", dialed.Timeout.String())
}

func TestProviderConfigure_Errors(t *testing.T) {
	testCases := []struct {
		name        string
		conn        *fakeConn
		dialErr     error
		values      map[string]tftypes.Value
		wantSummary string
	}{
		{
			name:        "missing host",
			conn:        &fakeConn{},
			values:      map[string]tftypes.Value{},
			wantSummary: "Invalid LDAP Configuration",
		},
		{
			name:        "unreachable server",
			dialErr:     errors.New("dial tcp 192.0.2.1:389: connection refused"),
			values:      map[string]tftypes.Value{"host": str("192.0.2.1")},
			wantSummary: "Unable to Connect to LDAP Server",
		},
		{
			name: "rejected admin credentials",
			conn: &fakeConn{rejectDN: map[string]bool{"cn=admin,dc=example,dc=org": true}},
			values: map[string]tftypes.Value{
				"host":           str("ldap.example.org"),
				"admin_dn":       str("cn=admin,dc=example,dc=org"),
				"admin_password": str("wrong"),
			},
			wantSummary: "Authentication Failed",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			clearLDAPEnv(t)

			dialer := func(context.Context, *ldapclient.Config) (ldapclient.Conn, error) {
				if tc.dialErr != nil {
					return nil, tc.dialErr
				}
				return tc.conn, nil
			}

			resp := configureProvider(t, this.New("test", ldapclient.WithDialer(dialer))(), tc.values)

			require.True(t, resp.Diagnostics.HasError())
			assert.Equal(t, tc.wantSummary, resp.Diagnostics.Errors()[0].Summary())
			assert.Nil(t, resp.DataSourceData)
			if tc.conn != nil && len(tc.conn.binds) > 0 {
				assert.Equal(t, 1, tc.conn.closed, "client must be closed after a failed bind")
			}
		})
	}
}

func TestProviderConfigure_WithoutAdminBind(t *testing.T) {
	clearLDAPEnv(t)

	conn := &fakeConn{}
	resp := configureProvider(t, this.New("test", ldapclient.WithDialer(dialerFor(conn)))(), map[string]tftypes.Value{
		"host":           str("ldap.example.org"),
		"admin_dn":       str("cn=admin,dc=example,dc=org"),
		"admin_password": str("secret"),
		"bind_admin":     boolean(false),
	})
	require.False(t, resp.Diagnostics.HasError(), "unexpected diagnostics: %v", resp.Diagnostics)
	t.Cleanup(func() { _ = resp.DataSourceData.(*ldapclient.ProviderData).Close() })

	assert.Empty(t, conn.binds)
}

func TestProviderConfigure_AdminDNWithoutPassword(t *testing.T) {
	clearLDAPEnv(t)

	conn := &fakeConn{}
	resp := configureProvider(t, this.New("test", ldapclient.WithDialer(dialerFor(conn)))(), map[string]tftypes.Value{
		"host":     str("ldap.example.org"),
		"admin_dn": str("cn=admin,dc=example,dc=org"),
	})
	require.False(t, resp.Diagnostics.HasError(), "unexpected diagnostics: %v", resp.Diagnostics)
	t.Cleanup(func() { _ = resp.DataSourceData.(*ldapclient.ProviderData).Close() })

	assert.Len(t, resp.Diagnostics.Warnings(), 1)
	assert.Equal(t, []bindCall{{DN: ""}}, conn.binds, "admin DN without password binds anonymously")
}
