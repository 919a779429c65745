package ldap

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/stretchr/testify/require"
)

type bindCall struct {
	dn            string
	password      string
	authenticated bool
}

// fakeConn records the requests a Client sends.
type fakeConn struct {
	binds    []bindCall
	searches []*ldap.SearchRequest
	modifies []*ldap.ModifyRequest
	timeout  time.Duration
	closed   int

	bindErr   error
	searchErr error
	modifyErr error
	closeErr  error
	result    *ldap.SearchResult
}

func (f *fakeConn) Bind(username, password string) error {
	f.binds = append(f.binds, bindCall{dn: username, password: password, authenticated: true})
	return f.bindErr
}

func (f *fakeConn) UnauthenticatedBind(username string) error {
	f.binds = append(f.binds, bindCall{dn: username})
	return f.bindErr
}

func (f *fakeConn) Search(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
	f.searches = append(f.searches, req)
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	if f.result == nil {
		return &ldap.SearchResult{}, nil
	}
	return f.result, nil
}

func (f *fakeConn) Modify(req *ldap.ModifyRequest) error {
	f.modifies = append(f.modifies, req)
	return f.modifyErr
}

func (f *fakeConn) SetTimeout(timeout time.Duration) {
	f.timeout = timeout
}

func (f *fakeConn) Close() error {
	f.closed++
	return f.closeErr
}

// fakeGSSAPIConn adds SASL GSSAPI support to fakeConn.
type fakeGSSAPIConn struct {
	fakeConn
	spn     string
	gssErr  error
	gssUsed int
}

func (f *fakeGSSAPIConn) GSSAPIBind(_ ldap.GSSAPIClient, servicePrincipal, _ string) error {
	f.gssUsed++
	f.spn = servicePrincipal
	return f.gssErr
}

type logEntry struct {
	level  string
	msg    string
	fields map[string]any
}

// recordingLogger keeps every log event for inspection.
type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *recordingLogger) record(level, msg string, fields map[string]any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg, fields: SanitizeFields(fields)})
}

func (l *recordingLogger) Trace(_ context.Context, msg string, fields map[string]any) {
	l.record("trace", msg, fields)
}

func (l *recordingLogger) Debug(_ context.Context, msg string, fields map[string]any) {
	l.record("debug", msg, fields)
}

func (l *recordingLogger) Info(_ context.Context, msg string, fields map[string]any) {
	l.record("info", msg, fields)
}

func (l *recordingLogger) Warn(_ context.Context, msg string, fields map[string]any) {
	l.record("warn", msg, fields)
}

func (l *recordingLogger) Error(_ context.Context, msg string, fields map[string]any) {
	l.record("error", msg, fields)
}

func (l *recordingLogger) has(level, msg string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.level == level && e.msg == msg {
			return true
		}
	}
	return false
}

func staticDialer(conn Conn) Dialer {
	return func(context.Context, *Config) (Conn, error) {
		return conn, nil
	}
}

func testConfig() *Config {
	return &Config{
		Host:           "ldap.example.org",
		Port:           DefaultPort,
		UserDN:         "ou=people,dc=example,dc=org",
		AdminDN:        "cn=admin,dc=example,dc=org",
		AdminPassword:  "secret",
		ReadAttributes: []string{"cn", "mail"},
	}
}

// newTestClient builds a Client over conn, closed when the test ends.
func newTestClient(t *testing.T, cfg *Config, conn Conn) (*Client, *recordingLogger) {
	t.Helper()

	logger := &recordingLogger{}
	client, err := NewClient(t.Context(), cfg, WithDialer(staticDialer(conn)), WithLogger(logger))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return client, logger
}

func entry(dn string, attrs map[string][]string) *ldap.Entry {
	return ldap.NewEntry(dn, attrs)
}
