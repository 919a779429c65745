package ldap

import (
	"errors"
	"testing"

	"github.com/go-ldap/ldap/v3"
	"github.com/stretchr/testify/assert"
)

func TestSanitizeFields(t *testing.T) {
	fields := map[string]any{
		"bind_dn":        "uid=alice,dc=example,dc=org",
		"password":       "hunter2",
		"Admin_Password": "secret",
		"userPassword":   "{SHA}87u9ZqY9S/F0eUBXjsPQEDUw4h0=",
		"filter":         "uid=alice",
		"note":           "password=hunter2",
		"count":          3,
	}

	got := SanitizeFields(fields)

	assert.Equal(t, "uid=alice,dc=example,dc=org", got["bind_dn"])
	assert.Equal(t, "[REDACTED]", got["password"])
	assert.Equal(t, "[REDACTED]", got["Admin_Password"])
	assert.Equal(t, "[REDACTED]", got["userPassword"])
	assert.Equal(t, "uid=alice", got["filter"])
	assert.Equal(t, "[REDACTED]", got["note"])
	assert.Equal(t, 3, got["count"])

	assert.Equal(t, "hunter2", fields["password"], "input must not be modified")
	assert.Nil(t, SanitizeFields(nil))
}

func TestLogOperation(t *testing.T) {
	logger := &recordingLogger{}
	fields := map[string]any{"dn": "uid=alice"}

	err := logOperation(t.Context(), logger, "replace", fields, func() error { return nil })
	assert.NoError(t, err)
	assert.True(t, logger.has("debug", "Starting operation"))
	assert.True(t, logger.has("debug", "Operation completed successfully"))
	assert.NotContains(t, fields, "operation")

	failure := NewLDAPError("replace", "uid=alice", ldap.NewError(ldap.LDAPResultNoSuchObject, errors.New("no such object")))
	err = logOperation(t.Context(), logger, "replace", fields, func() error { return failure })
	assert.Equal(t, failure, err)
	assert.True(t, logger.has("error", "LDAP operation failed"))

	last := logger.entries[len(logger.entries)-1]
	assert.Equal(t, string(ErrorCategoryNotFound), last.fields["category"])
	assert.Equal(t, "no such object", last.fields["ldap_diagnostic_message"])
}
