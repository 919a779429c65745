package ldap

import (
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// EscapeDNValue escapes an attribute value for use in a DN (RFC 4514).
func EscapeDNValue(value string) string {
	if value == "" {
		return value
	}

	var b strings.Builder
	b.Grow(len(value) + 8)

	last := len(value) - 1
	for i := 0; i < len(value); i++ {
		ch := value[i]
		switch {
		case strings.IndexByte(`,+"\<>;=`, ch) >= 0:
			b.WriteByte('\\')
			b.WriteByte(ch)
		case ch == '#' && i == 0:
			b.WriteString(`\#`)
		case ch == ' ' && (i == 0 || i == last):
			b.WriteString(`\ `)
		case ch == 0:
			b.WriteString(`\00`)
		default:
			b.WriteByte(ch)
		}
	}

	return b.String()
}

// RelativeDN builds a single-valued RDN such as uid=jdoe, escaping value.
func RelativeDN(attribute, value string) string {
	return attribute + "=" + EscapeDNValue(value)
}

// EqualityFilter builds an unparenthesised attribute=value filter body for
// Client.Search, escaping value.
func EqualityFilter(attribute, value string) string {
	return attribute + "=" + ldap.EscapeFilter(value)
}

// BinaryEqualityFilter is EqualityFilter for binary values such as
// objectGUID, with every byte escaped.
func BinaryEqualityFilter(attribute string, value []byte) string {
	return attribute + "=" + hexEscape(value)
}

// ValidateDN checks that dn parses as a distinguished name.
func ValidateDN(dn string) error {
	if strings.TrimSpace(dn) == "" {
		return fmt.Errorf("DN cannot be empty")
	}
	if _, err := ldap.ParseDN(dn); err != nil {
		return fmt.Errorf("invalid DN syntax %q: %w", dn, err)
	}
	return nil
}

// ValidateFilterBody checks that filter, once wrapped in parentheses the way
// Client.Search sends it, compiles as an LDAP filter.
func ValidateFilterBody(filter string) error {
	if filter == "" {
		return nil
	}
	if _, err := ldap.CompileFilter("(" + filter + ")"); err != nil {
		return fmt.Errorf("invalid LDAP filter %q: %w", filter, err)
	}
	return nil
}
