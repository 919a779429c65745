/*
Package ldap is a thin LDAP client for simple directory tasks.

A Client owns one connection and the configuration it was built from. It
binds either with an explicit DN and password or with the configured admin
credentials, runs subtree searches under the configured base DN, reads the
first value of an attribute from the first result, replaces attributes and
sets {SHA}-encoded passwords.

# Results

Directory operations report success as a boolean. Failures are classified
into LDAPError values and written to the Logger, which defaults to the
"ldap" tflog subsystem. Only NewClient returns errors:

  - ConfigurationError when the host or port is missing or invalid
  - UnsupportedEnvironmentError when no usable connection can be obtained
  - LDAPError when dialing the server fails

# DN composition

Relative DNs passed to Bind (with isUser set) and Replace are appended to the
base DN, so "uid=alice" becomes "uid=alice,ou=people,dc=example,dc=org". An
empty relative DN resolves to the base DN under UserDNBaseFallback and stays
empty under UserDNStrict.

# Sharing

A Client is not safe for concurrent use. ProviderData wraps one Client for
the Terraform provider and serialises access through ProviderData.Do.
*/
package ldap
