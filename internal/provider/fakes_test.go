package provider_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/hashicorp/terraform-plugin-framework/attr"
	"github.com/hashicorp/terraform-plugin-go/tftypes"
	"github.com/stretchr/testify/require"

	ldapclient "github.com/isometry/terraform-provider-ldap/internal/ldap"
)

var errInvalidCredentials = ldap.NewError(ldap.LDAPResultInvalidCredentials, errors.New("invalid credentials"))

type bindCall struct {
	DN            string
	Authenticated bool
}

// fakeConn is an in-memory stand-in for a directory connection.
type fakeConn struct {
	binds    []bindCall
	filters  []string
	modifies []*ldap.ModifyRequest
	closed   int

	rejectDN  map[string]bool
	modifyErr error
	entries   []*ldap.Entry
}

func (f *fakeConn) Bind(username, _ string) error {
	f.binds = append(f.binds, bindCall{DN: username, Authenticated: true})
	if f.rejectDN[username] {
		return errInvalidCredentials
	}
	return nil
}

func (f *fakeConn) UnauthenticatedBind(username string) error {
	f.binds = append(f.binds, bindCall{DN: username})
	return nil
}

func (f *fakeConn) Search(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
	f.filters = append(f.filters, req.Filter)
	return &ldap.SearchResult{Entries: f.entries}, nil
}

func (f *fakeConn) Modify(req *ldap.ModifyRequest) error {
	f.modifies = append(f.modifies, req)
	return f.modifyErr
}

func (f *fakeConn) SetTimeout(time.Duration) {}

func (f *fakeConn) Close() error {
	f.closed++
	return nil
}

func testClientConfig() *ldapclient.Config {
	return &ldapclient.Config{
		Host:           "ldap.example.org",
		Port:           ldapclient.DefaultPort,
		UserDN:         "ou=people,dc=example,dc=org",
		AdminDN:        "cn=admin,dc=example,dc=org",
		AdminPassword:  "secret",
		ReadAttributes: []string{"cn", "mail"},
	}
}

func dialerFor(conn *fakeConn) ldapclient.Dialer {
	return func(context.Context, *ldapclient.Config) (ldapclient.Conn, error) {
		return conn, nil
	}
}

// newProviderData wraps a client over conn the way Configure does.
func newProviderData(t *testing.T, conn *fakeConn) *ldapclient.ProviderData {
	t.Helper()

	client, err := ldapclient.NewClient(t.Context(), testClientConfig(), ldapclient.WithDialer(dialerFor(conn)))
	require.NoError(t, err)

	pd := ldapclient.NewProviderData(client)
	t.Cleanup(func() { _ = pd.Close() })
	return pd
}

// objectValue builds a value of the schema's object type, leaving every
// attribute not in values null.
func objectValue(t *testing.T, schemaType attr.Type, values map[string]tftypes.Value) tftypes.Value {
	t.Helper()

	objType, ok := schemaType.TerraformType(t.Context()).(tftypes.Object)
	require.True(t, ok, "schema type is not an object")

	all := make(map[string]tftypes.Value, len(objType.AttributeTypes))
	for name, typ := range objType.AttributeTypes {
		if v, ok := values[name]; ok {
			all[name] = v
			continue
		}
		all[name] = tftypes.NewValue(typ, nil)
	}
	return tftypes.NewValue(objType, all)
}

func str(s string) tftypes.Value {
	return tftypes.NewValue(tftypes.String, s)
}

func boolean(b bool) tftypes.Value {
	return tftypes.NewValue(tftypes.Bool, b)
}

func number(n int64) tftypes.Value {
	return tftypes.NewValue(tftypes.Number, n)
}

func stringList(values ...string) tftypes.Value {
	elems := make([]tftypes.Value, 0, len(values))
	for _, v := range values {
		elems = append(elems, str(v))
	}
	return tftypes.NewValue(tftypes.List{ElementType: tftypes.String}, elems)
}
