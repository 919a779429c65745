package ldap

import (
	"crypto/sha1" //nolint:gosec // {SHA} is defined in terms of SHA-1
	"encoding/base64"
)

// SHAPasswordScheme is the RFC 2307 prefix of an unsalted SHA-1 password.
const SHAPasswordScheme = "{SHA}"

// EncodeSHAPassword encodes password as "{SHA}" followed by the base64 of
// the SHA-1 digest of its UTF-8 bytes, the form userPassword expects.
func EncodeSHAPassword(password string) string {
	sum := sha1.Sum([]byte(password)) //nolint:gosec
	return SHAPasswordScheme + base64.StdEncoding.EncodeToString(sum[:])
}
